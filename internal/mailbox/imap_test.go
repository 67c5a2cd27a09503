package mailbox

import (
	"testing"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIMAPCursor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    imapCursor
		wantErr bool
	}{
		{name: "valid", in: "1700000000:42", want: imapCursor{Validity: 1700000000, LastUID: 42}},
		{name: "zero uid", in: "5:0", want: imapCursor{Validity: 5}},
		{name: "missing separator", in: "42", wantErr: true},
		{name: "non numeric", in: "abc:1", wantErr: true},
		{name: "overflow", in: "1:99999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIMAPCursor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestPendingUIDs(t *testing.T) {
	// "43:*" still returns UID 42 when it is the newest message.
	assert.Equal(t, []uint32{43, 50, 51}, pendingUIDs([]uint32{51, 42, 43, 50}, 42))
	assert.Empty(t, pendingUIDs([]uint32{42}, 42))
}

func TestResumeUID(t *testing.T) {
	requested := []uint32{43, 44, 45}

	tests := []struct {
		name     string
		received map[uint32]bool
		want     uint32
	}{
		{name: "all received", received: map[uint32]bool{43: true, 44: true, 45: true}, want: 45},
		{name: "gap stops progress", received: map[uint32]bool{43: true, 45: true}, want: 43},
		{name: "nothing received", received: map[uint32]bool{}, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resumeUID(requested, tt.received, 42))
		})
	}
}

func TestFilterSenders(t *testing.T) {
	events := []model.MailEvent{
		{ProviderMessageID: "1", Sender: "Notificaciones@BACCredomatic.com"},
		{ProviderMessageID: "2", Sender: "news@shop.example"},
	}

	all := filterSenders(model.MailAccount{}, append([]model.MailEvent(nil), events...))
	assert.Len(t, all, 2)

	kept := filterSenders(model.MailAccount{SenderFilter: []string{"baccredomatic.com"}}, events)
	require.Len(t, kept, 1)
	assert.Equal(t, "1", kept[0].ProviderMessageID)
}
