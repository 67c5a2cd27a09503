package mailbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartAlert = "From: BAC Credomatic <notificaciones@baccredomatic.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: =?UTF-8?Q?Notificaci=C3=B3n_de_transacci=C3=B3n?=\r\n" +
	"Date: Tue, 12 Mar 2024 18:45:00 -0600\r\n" +
	"Message-ID: <abc123@baccredomatic.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"BOUNDARY\"\r\n" +
	"\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Comercio: UBER TRIP\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<table><tr><td>Comercio:</td><td>UBER TRIP</td></tr></table>\r\n" +
	"--BOUNDARY--\r\n"

const latin1Alert = "From: alertas@promerica.fi.cr\r\n" +
	"Subject: Alerta\r\n" +
	"Content-Type: text/plain; charset=iso-8859-1\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Compra en CAF=C9 BRITT por US$ 15.99\r\n"

func TestParseRFC822(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantFrom    string
		wantSubject string
		wantBody    string
		wantDate    time.Time
	}{
		{
			name:        "multipart prefers html",
			raw:         multipartAlert,
			wantFrom:    "notificaciones@baccredomatic.com",
			wantSubject: "Notificación de transacción",
			wantBody:    "<td>UBER TRIP</td>",
			wantDate:    time.Date(2024, 3, 13, 0, 45, 0, 0, time.UTC),
		},
		{
			name:        "single part latin1 is decoded",
			raw:         latin1Alert,
			wantFrom:    "alertas@promerica.fi.cr",
			wantSubject: "Alerta",
			wantBody:    "CAFÉ BRITT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseRFC822(strings.NewReader(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, env.From)
			assert.Equal(t, tt.wantSubject, env.Subject)
			assert.Contains(t, env.Body(), tt.wantBody)
			if !tt.wantDate.IsZero() {
				assert.True(t, tt.wantDate.Equal(env.Date), "got %s", env.Date)
			}
		})
	}
}

func TestEnvelope_EventFallsBackToInternalDate(t *testing.T) {
	env, err := ParseRFC822(strings.NewReader(latin1Alert))
	require.NoError(t, err)

	internal := time.Date(2024, 3, 5, 21, 10, 0, 0, time.UTC)
	event := env.Event("m-1", "t-1", internal)
	assert.Equal(t, "m-1", event.ProviderMessageID)
	assert.True(t, internal.Equal(event.ReceivedAt))
}
