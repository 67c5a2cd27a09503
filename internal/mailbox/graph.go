package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// DefaultGraphBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphAdapter syncs an Outlook mailbox folder through Microsoft Graph delta queries.
// The cursor is the next or delta link Graph returned last.
type GraphAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
	account    model.MailAccount
	baseURL    string
	folder     string
	opts       Options
}

// NewGraphAdapter creates an adapter. httpClient must attach Graph credentials,
// typically an oauth2 client.
func NewGraphAdapter(httpClient *http.Client, baseURL, folder string, account model.MailAccount, opts Options, logger *slog.Logger) *GraphAdapter {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if folder == "" {
		folder = "inbox"
	}
	if opts.Timeout > 0 && httpClient.Timeout == 0 {
		httpClient.Timeout = opts.Timeout
	}
	return &GraphAdapter{
		httpClient: httpClient,
		account:    account,
		baseURL:    strings.TrimRight(baseURL, "/"),
		folder:     folder,
		opts:       opts,
		logger:     common.LoggerOrDefault(logger),
	}
}

// Provider implements Adapter.
func (a *GraphAdapter) Provider() model.ProviderKind {
	return model.ProviderOutlook
}

type graphDeltaPage struct {
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
	Value     []graphMessage `json:"value"`
}

type graphMessage struct {
	Removed          *struct{}    `json:"@removed,omitempty"`
	From             graphAddress `json:"from"`
	Body             graphBody    `json:"body"`
	ID               string       `json:"id"`
	ConversationID   string       `json:"conversationId"`
	Subject          string       `json:"subject"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	} `json:"emailAddress"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchBatch implements Adapter. It reads one delta page. An empty cursor starts a
// new delta round over the folder.
func (a *GraphAdapter) FetchBatch(ctx context.Context, cursor string, pageLimit int) (Batch, error) {
	link := cursor
	if link == "" {
		link = a.initialLink()
	}

	var page graphDeltaPage
	err := common.WithRetry(ctx, func() error {
		return a.getPage(ctx, link, pageLimit, &page)
	}, a.opts.Retry)
	if errors.Is(err, errCursorExpired) {
		return Batch{Expired: true}, nil
	}
	if err != nil {
		// The cursor stays at the link that failed.
		return Batch{}, err
	}

	events := make([]model.MailEvent, 0, len(page.Value))
	for _, m := range page.Value {
		if m.Removed != nil || m.ID == "" {
			continue
		}
		events = append(events, model.MailEvent{
			ProviderMessageID: m.ID,
			ThreadID:          m.ConversationID,
			Sender:            m.From.EmailAddress.Address,
			Subject:           m.Subject,
			ReceivedAt:        m.ReceivedDateTime.UTC(),
			Body:              m.Body.Content,
		})
	}

	batch := Batch{Events: filterSenders(a.account, events)}
	switch {
	case page.NextLink != "":
		batch.Cursor = page.NextLink
		batch.More = true
	case page.DeltaLink != "":
		batch.Cursor = page.DeltaLink
	default:
		return Batch{}, common.NewTransientProviderError(string(model.ProviderOutlook), "delta",
			errors.New("response carried neither next nor delta link"))
	}
	return batch, nil
}

func (a *GraphAdapter) initialLink() string {
	q := url.Values{}
	q.Set("$select", "id,conversationId,receivedDateTime,from,subject,body")
	if a.opts.BaselineDays > 0 {
		since := time.Now().UTC().AddDate(0, 0, -a.opts.BaselineDays).Format(time.RFC3339)
		q.Set("$filter", "receivedDateTime ge "+since)
	}
	return fmt.Sprintf("%s/me/mailFolders/%s/messages/delta?%s", a.baseURL, url.PathEscape(a.folder), q.Encode())
}

func (a *GraphAdapter) getPage(ctx context.Context, link string, pageLimit int, page *graphDeltaPage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if pageLimit > 0 {
		req.Header.Set("Prefer", fmt.Sprintf("odata.maxpagesize=%d", pageLimit))
	}
	req.Header.Add("Prefer", `outlook.body-content-type="html"`)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return common.Permanent(err)
		}
		return common.NewTransientProviderError(string(model.ProviderOutlook), "delta", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.NewTransientProviderError(string(model.ProviderOutlook), "delta", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyGraphStatus(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, page); err != nil {
		return common.Permanent(fmt.Errorf("failed to parse delta response: %w", err))
	}
	return nil
}

func classifyGraphStatus(status int, body []byte) error {
	var apiErr graphError
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case status == http.StatusGone,
		apiErr.Error.Code == "syncStateNotFound",
		apiErr.Error.Code == "resyncRequired",
		apiErr.Error.Code == "SyncStateInvalid":
		return common.Permanent(errCursorExpired)
	case status == http.StatusTooManyRequests || status >= 500:
		return common.NewTransientProviderError(string(model.ProviderOutlook), "delta",
			fmt.Errorf("graph API error (status %d): %s", status, apiErr.Error.Code))
	default:
		return common.Permanent(fmt.Errorf("graph API error (status %d): %s %s", status, apiErr.Error.Code, apiErr.Error.Message))
	}
}
