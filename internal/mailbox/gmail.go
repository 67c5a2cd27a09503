package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const gmailUser = "me"

var (
	errCursorExpired  = errors.New("cursor expired")
	errMessageMissing = errors.New("message no longer exists")
)

// GmailAdapter syncs a Gmail mailbox through the history API.
// The cursor is a Gmail history id.
type GmailAdapter struct {
	svc     *gmail.Service
	logger  *slog.Logger
	account model.MailAccount
	opts    Options
}

// NewGmailAdapter creates an adapter over an authenticated Gmail service.
func NewGmailAdapter(svc *gmail.Service, account model.MailAccount, opts Options, logger *slog.Logger) *GmailAdapter {
	return &GmailAdapter{
		svc:     svc,
		account: account,
		opts:    opts,
		logger:  common.LoggerOrDefault(logger),
	}
}

// Provider implements Adapter.
func (g *GmailAdapter) Provider() model.ProviderKind {
	return model.ProviderGmail
}

// FetchBatch implements Adapter. An empty cursor lists a bounded baseline window.
func (g *GmailAdapter) FetchBatch(ctx context.Context, cursor string, pageLimit int) (Batch, error) {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	if cursor == "" {
		return g.baseline(ctx)
	}

	startID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		// A cursor we cannot read is as good as expired.
		g.logger.Warn("Unreadable Gmail cursor, resetting", "account", g.account.ID, "cursor", cursor)
		return Batch{Expired: true}, nil
	}

	var resp *gmail.ListHistoryResponse
	err = g.call(ctx, "history.list", func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.svc.Users.History.List(gmailUser).
			StartHistoryId(startID).
			HistoryTypes("messageAdded").
			MaxResults(int64(pageLimit)).
			Context(ctx).
			Do()
		return callErr
	})
	if errors.Is(err, errCursorExpired) {
		return Batch{Expired: true}, nil
	}
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{}
	for _, record := range resp.History {
		events, err := g.fetchRecord(ctx, record)
		if err != nil {
			// Keep every record fetched so far; resume at the failed one.
			return batch, err
		}
		batch.Events = append(batch.Events, filterSenders(g.account, events)...)
		batch.Cursor = strconv.FormatUint(record.Id, 10)
	}

	if resp.NextPageToken != "" {
		batch.More = true
	} else if resp.HistoryId != 0 {
		batch.Cursor = strconv.FormatUint(resp.HistoryId, 10)
	}
	if batch.Cursor == "" {
		batch.Cursor = cursor
	}
	return batch, nil
}

func (g *GmailAdapter) fetchRecord(ctx context.Context, record *gmail.History) ([]model.MailEvent, error) {
	var events []model.MailEvent
	for _, added := range record.MessagesAdded {
		if added.Message == nil {
			continue
		}
		event, err := g.fetchMessage(ctx, added.Message.Id)
		if errors.Is(err, errMessageMissing) {
			g.logger.Debug("Skipping deleted message", "account", g.account.ID, "message", added.Message.Id)
			continue
		}
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// baseline reads the current history id before listing, so messages that arrive
// during the listing are replayed by the next incremental fetch.
func (g *GmailAdapter) baseline(ctx context.Context) (Batch, error) {
	var profile *gmail.Profile
	if err := g.call(ctx, "users.getProfile", func(ctx context.Context) error {
		var callErr error
		profile, callErr = g.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
		return callErr
	}); err != nil {
		return Batch{}, err
	}

	query := g.baselineQuery()
	limit := g.opts.BaselineLimit
	if limit <= 0 {
		limit = 500
	}

	var ids []string
	pageToken := ""
	for len(ids) < limit {
		var resp *gmail.ListMessagesResponse
		if err := g.call(ctx, "messages.list", func(ctx context.Context) error {
			call := g.svc.Users.Messages.List(gmailUser).MaxResults(int64(min(limit-len(ids), 500))).Context(ctx)
			if query != "" {
				call = call.Q(query)
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var callErr error
			resp, callErr = call.Do()
			return callErr
		}); err != nil {
			return Batch{}, err
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	events := make([]model.MailEvent, 0, len(ids))
	for _, id := range ids {
		event, err := g.fetchMessage(ctx, id)
		if errors.Is(err, errMessageMissing) {
			continue
		}
		if err != nil {
			// A baseline cannot resume part way; the next attempt relists.
			return Batch{}, err
		}
		events = append(events, event)
	}

	g.logger.Info("Gmail baseline listed", "account", g.account.ID, "messages", len(events), "history_id", profile.HistoryId)

	return Batch{
		Events: filterSenders(g.account, events),
		Cursor: strconv.FormatUint(profile.HistoryId, 10),
	}, nil
}

func (g *GmailAdapter) baselineQuery() string {
	parts := []string{}
	if g.opts.BaselineQuery != "" {
		parts = append(parts, g.opts.BaselineQuery)
	}
	if len(g.account.SenderFilter) > 0 {
		from := make([]string, 0, len(g.account.SenderFilter))
		for _, s := range g.account.SenderFilter {
			from = append(from, "from:"+s)
		}
		parts = append(parts, "{"+strings.Join(from, " ")+"}")
	}
	return strings.Join(parts, " ")
}

func (g *GmailAdapter) fetchMessage(ctx context.Context, id string) (model.MailEvent, error) {
	var msg *gmail.Message
	err := g.call(ctx, "messages.get", func(ctx context.Context) error {
		var callErr error
		msg, callErr = g.svc.Users.Messages.Get(gmailUser, id).Format("raw").Context(ctx).Do()
		return callErr
	})
	if errors.Is(err, errCursorExpired) {
		return model.MailEvent{}, errMessageMissing
	}
	if err != nil {
		return model.MailEvent{}, err
	}

	raw, err := decodeGmailRaw(msg.Raw)
	if err != nil {
		return model.MailEvent{}, fmt.Errorf("failed to decode message %s: %w", id, err)
	}

	env, err := ParseRFC822(strings.NewReader(raw))
	if err != nil {
		return model.MailEvent{}, fmt.Errorf("failed to parse message %s: %w", id, err)
	}

	return env.Event(msg.Id, msg.ThreadId, time.UnixMilli(msg.InternalDate)), nil
}

// call runs one Gmail request with a per-call timeout and bounded retry.
// A 404 surfaces as errCursorExpired; 429 and 5xx responses are retried.
func (g *GmailAdapter) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return common.WithRetry(ctx, func() error {
		callCtx := ctx
		if g.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
			defer cancel()
		}
		return classifyGmailError(op, fn(callCtx))
	}, g.opts.Retry)
}

func classifyGmailError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return common.Permanent(errCursorExpired)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return common.NewTransientProviderError(string(model.ProviderGmail), op, err)
		default:
			return common.Permanent(fmt.Errorf("gmail %s: %w", op, err))
		}
	}
	if errors.Is(err, context.Canceled) {
		return common.Permanent(err)
	}
	return common.NewTransientProviderError(string(model.ProviderGmail), op, err)
}

// decodeGmailRaw accepts the URL-safe base64 Gmail uses, with or without padding.
func decodeGmailRaw(raw string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
