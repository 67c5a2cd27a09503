package mailbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphItem(id, from string) map[string]any {
	return map[string]any{
		"id":               id,
		"conversationId":   "c-" + id,
		"subject":          "Alerta de compra",
		"receivedDateTime": "2024-03-12T18:45:00Z",
		"from":             map[string]any{"emailAddress": map[string]string{"address": from}},
		"body":             map[string]string{"contentType": "html", "content": "<p>" + id + "</p>"},
	}
}

func TestGraphAdapter_DeltaRound(t *testing.T) {
	var srvURL string
	var prefer []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/me/mailFolders/inbox/messages/delta"):
			prefer = r.Header.Values("Prefer")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []any{
					graphItem("g1", "alertas@bank.example"),
					map[string]any{"id": "g0", "@removed": map[string]string{"reason": "deleted"}},
				},
				"@odata.nextLink": srvURL + "/page2",
			})
		case r.URL.Path == "/page2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []any{
					graphItem("g2", "alertas@bank.example"),
					graphItem("g3", "promo@shop.example"),
				},
				"@odata.deltaLink": srvURL + "/delta-token",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	account := model.MailAccount{ID: "acc-2", SenderFilter: []string{"bank.example"}}
	adapter := NewGraphAdapter(srv.Client(), srv.URL, "", account, testOptions(), nil)

	first, err := adapter.FetchBatch(context.Background(), "", 25)
	require.NoError(t, err)
	assert.True(t, first.More)
	assert.Equal(t, srv.URL+"/page2", first.Cursor)
	require.Len(t, first.Events, 1, "removed items are skipped")
	assert.Equal(t, "g1", first.Events[0].ProviderMessageID)
	assert.Equal(t, "c-g1", first.Events[0].ThreadID)
	assert.Contains(t, prefer, "odata.maxpagesize=25")

	second, err := adapter.FetchBatch(context.Background(), first.Cursor, 25)
	require.NoError(t, err)
	assert.False(t, second.More)
	assert.Equal(t, srv.URL+"/delta-token", second.Cursor)
	require.Len(t, second.Events, 1, "sender filter drops the promotion")
	assert.Equal(t, "g2", second.Events[0].ProviderMessageID)
}

func TestGraphAdapter_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantExpired bool
		wantErr     bool
		wantCalls   int32
	}{
		{name: "gone", status: http.StatusGone, wantExpired: true, wantCalls: 1},
		{name: "sync state not found", status: http.StatusBadRequest, body: `{"error":{"code":"syncStateNotFound"}}`, wantExpired: true, wantCalls: 1},
		{name: "unavailable is retried", status: http.StatusServiceUnavailable, wantErr: true, wantCalls: 2},
		{name: "forbidden is permanent", status: http.StatusForbidden, body: `{"error":{"code":"ErrorAccessDenied"}}`, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			adapter := NewGraphAdapter(srv.Client(), srv.URL, "inbox", model.MailAccount{ID: "acc-2"}, testOptions(), nil)
			batch, err := adapter.FetchBatch(context.Background(), srv.URL+"/delta-token", 25)

			assert.Equal(t, tt.wantExpired, batch.Expired)
			assert.Empty(t, batch.Cursor)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGraphAdapter_UnavailableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := NewGraphAdapter(srv.Client(), srv.URL, "inbox", model.MailAccount{ID: "acc-2"}, testOptions(), nil)
	_, err := adapter.FetchBatch(context.Background(), "", 25)
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}
