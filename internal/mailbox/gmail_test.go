package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return opts
}

func rawMessage(from, subject, body string) string {
	raw := "From: " + from + "\r\nSubject: " + subject + "\r\nDate: Tue, 12 Mar 2024 10:00:00 -0600\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\n" + body + "\r\n"
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// fakeGmail serves the subset of the Gmail API the adapter uses.
type fakeGmail struct {
	messages    map[string]string
	failMessage string
	history     []map[string]any
	historyID   string
	expired     bool
	gets        atomic.Int32
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")

	switch {
	case path == "profile":
		_ = json.NewEncoder(w).Encode(map[string]any{"emailAddress": "me@example.com", "historyId": f.historyID})

	case path == "history":
		if f.expired {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"history": f.history, "historyId": f.historyID})

	case path == "messages":
		var list []map[string]string
		for id := range f.messages {
			list = append(list, map[string]string{"id": id, "threadId": "t-" + id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": list})

	case strings.HasPrefix(path, "messages/"):
		f.gets.Add(1)
		id := strings.TrimPrefix(path, "messages/")
		if id == f.failMessage {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend error"}}`))
			return
		}
		raw, ok := f.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": id, "threadId": "t-" + id, "internalDate": "1710259200000", "raw": raw,
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func historyRecord(id string, messageIDs ...string) map[string]any {
	added := make([]map[string]any, 0, len(messageIDs))
	for _, m := range messageIDs {
		added = append(added, map[string]any{"message": map[string]string{"id": m, "threadId": "t-" + m}})
	}
	return map[string]any{"id": id, "messagesAdded": added}
}

func newTestGmailAdapter(t *testing.T, fake *fakeGmail, account model.MailAccount) *GmailAdapter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewGmailAdapter(svc, account, testOptions(), nil)
}

func TestGmailAdapter_Baseline(t *testing.T) {
	fake := &fakeGmail{
		historyID: "500",
		messages: map[string]string{
			"m1": rawMessage("notificaciones@baccredomatic.com", "Compra", "BAC: compra por CRC 1,000.00"),
			"m2": rawMessage("news@shop.example", "Ofertas", "Descuentos"),
		},
	}
	account := model.MailAccount{ID: "acc-1", SenderFilter: []string{"baccredomatic.com"}}
	adapter := newTestGmailAdapter(t, fake, account)

	batch, err := adapter.FetchBatch(context.Background(), "", 50)
	require.NoError(t, err)
	assert.Equal(t, "500", batch.Cursor)
	assert.False(t, batch.Expired)
	require.Len(t, batch.Events, 1, "sender filter drops the newsletter")
	assert.Equal(t, "m1", batch.Events[0].ProviderMessageID)
	assert.Equal(t, "notificaciones@baccredomatic.com", batch.Events[0].Sender)
	assert.Contains(t, batch.Events[0].Body, "CRC 1,000.00")
}

func TestGmailAdapter_Incremental(t *testing.T) {
	fake := &fakeGmail{
		historyID: "120",
		history:   []map[string]any{historyRecord("101", "m1"), historyRecord("110", "m2", "gone")},
		messages: map[string]string{
			"m1": rawMessage("a@bank.example", "1", "one"),
			"m2": rawMessage("a@bank.example", "2", "two"),
		},
	}
	adapter := newTestGmailAdapter(t, fake, model.MailAccount{ID: "acc-1"})

	batch, err := adapter.FetchBatch(context.Background(), "100", 50)
	require.NoError(t, err)
	assert.Equal(t, "120", batch.Cursor, "a complete page resumes at the mailbox history id")
	assert.False(t, batch.More)
	require.Len(t, batch.Events, 2, "deleted messages are skipped")
	assert.Equal(t, "m1", batch.Events[0].ProviderMessageID)
}

func TestGmailAdapter_Expired(t *testing.T) {
	adapter := newTestGmailAdapter(t, &fakeGmail{expired: true}, model.MailAccount{ID: "acc-1"})

	batch, err := adapter.FetchBatch(context.Background(), "7", 50)
	require.NoError(t, err)
	assert.True(t, batch.Expired)
	assert.Empty(t, batch.Events)

	batch, err = adapter.FetchBatch(context.Background(), "not-a-number", 50)
	require.NoError(t, err)
	assert.True(t, batch.Expired)
}

func TestGmailAdapter_PartialPage(t *testing.T) {
	fake := &fakeGmail{
		historyID:   "120",
		history:     []map[string]any{historyRecord("101", "m1"), historyRecord("110", "m2")},
		failMessage: "m2",
		messages: map[string]string{
			"m1": rawMessage("a@bank.example", "1", "one"),
		},
	}
	adapter := newTestGmailAdapter(t, fake, model.MailAccount{ID: "acc-1"})

	batch, err := adapter.FetchBatch(context.Background(), "100", 50)
	require.Error(t, err)

	var transient *common.TransientProviderError
	assert.ErrorAs(t, err, &transient)
	assert.ErrorIs(t, err, common.ErrMaxRetries)

	require.Len(t, batch.Events, 1)
	assert.Equal(t, "101", batch.Cursor, "cursor resumes after the last complete record")
	assert.EqualValues(t, 3, fake.gets.Load(), "one fetch for m1 and two attempts for m2")
}
