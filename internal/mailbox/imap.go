package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// IMAPConfig holds the connection settings of an IMAP mailbox.
type IMAPConfig struct {
	Host     string
	Username string
	Password string
	Folder   string
	Port     int
	// Insecure disables TLS. Only for local test servers.
	Insecure bool
}

// IMAPAdapter syncs an IMAP folder by UID. The cursor is "uidvalidity:lastuid".
type IMAPAdapter struct {
	logger  *slog.Logger
	account model.MailAccount
	cfg     IMAPConfig
	opts    Options
}

// NewIMAPAdapter creates an adapter. A connection is opened per FetchBatch call.
func NewIMAPAdapter(cfg IMAPConfig, account model.MailAccount, opts Options, logger *slog.Logger) *IMAPAdapter {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Username == "" {
		cfg.Username = account.Address
	}
	return &IMAPAdapter{cfg: cfg, account: account, opts: opts, logger: common.LoggerOrDefault(logger)}
}

// Provider implements Adapter.
func (a *IMAPAdapter) Provider() model.ProviderKind {
	return model.ProviderIMAP
}

// imapCursor is the parsed form of an IMAP sync cursor.
type imapCursor struct {
	Validity uint32
	LastUID  uint32
}

func (c imapCursor) String() string {
	return fmt.Sprintf("%d:%d", c.Validity, c.LastUID)
}

func parseIMAPCursor(s string) (imapCursor, error) {
	validity, last, ok := strings.Cut(s, ":")
	if !ok {
		return imapCursor{}, fmt.Errorf("malformed IMAP cursor %q", s)
	}
	v, err := strconv.ParseUint(validity, 10, 32)
	if err != nil {
		return imapCursor{}, fmt.Errorf("malformed IMAP cursor %q: %w", s, err)
	}
	l, err := strconv.ParseUint(last, 10, 32)
	if err != nil {
		return imapCursor{}, fmt.Errorf("malformed IMAP cursor %q: %w", s, err)
	}
	return imapCursor{Validity: uint32(v), LastUID: uint32(l)}, nil
}

// FetchBatch implements Adapter.
func (a *IMAPAdapter) FetchBatch(ctx context.Context, cursor string, pageLimit int) (Batch, error) {
	if pageLimit <= 0 {
		pageLimit = 100
	}

	var prev *imapCursor
	if cursor != "" {
		c, err := parseIMAPCursor(cursor)
		if err != nil {
			a.logger.Warn("Unreadable IMAP cursor, resetting", "account", a.account.ID, "error", err)
			return Batch{Expired: true}, nil
		}
		prev = &c
	}

	var c *client.Client
	var status *imap.MailboxStatus
	if err := common.WithRetry(ctx, func() error {
		var err error
		c, status, err = a.connect(ctx)
		return err
	}, a.opts.Retry); err != nil {
		return Batch{}, err
	}
	defer func() { _ = c.Logout() }()

	if prev != nil && prev.Validity != status.UidValidity {
		a.logger.Info("IMAP UIDVALIDITY changed", "account", a.account.ID, "was", prev.Validity, "now", status.UidValidity)
		return Batch{Expired: true}, nil
	}

	criteria := imap.NewSearchCriteria()
	var after uint32
	if prev == nil {
		days := a.opts.BaselineDays
		if days <= 0 {
			days = 30
		}
		criteria.Since = time.Now().AddDate(0, 0, -days)
	} else {
		after = prev.LastUID
		criteria.Uid = new(imap.SeqSet)
		criteria.Uid.AddRange(after+1, 0)
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return Batch{}, common.NewTransientProviderError(string(model.ProviderIMAP), "uid search", err)
	}
	uids = pendingUIDs(uids, after)

	if len(uids) == 0 {
		last := after
		if prev == nil && status.UidNext > 0 {
			last = status.UidNext - 1
		}
		return Batch{Cursor: imapCursor{Validity: status.UidValidity, LastUID: last}.String()}, nil
	}

	more := len(uids) > pageLimit
	if more {
		uids = uids[:pageLimit]
	}

	events, received, fetchErr := a.fetch(c, uids)
	resume := resumeUID(uids, received, after)

	kept := make([]model.MailEvent, 0, len(events))
	for _, uid := range uids {
		if uid > resume {
			break
		}
		if e, ok := events[uid]; ok {
			kept = append(kept, e)
		}
	}

	batch := Batch{
		Events: filterSenders(a.account, kept),
		More:   more,
	}
	if resume > after {
		batch.Cursor = imapCursor{Validity: status.UidValidity, LastUID: resume}.String()
	}
	if fetchErr != nil {
		return batch, common.NewTransientProviderError(string(model.ProviderIMAP), "uid fetch", fetchErr)
	}
	return batch, nil
}

func (a *IMAPAdapter) connect(ctx context.Context) (*client.Client, *imap.MailboxStatus, error) {
	addr := net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port))
	dialer := &net.Dialer{Timeout: a.opts.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var c *client.Client
	var err error
	if a.cfg.Insecure {
		c, err = client.DialWithDialer(dialer, addr)
	} else {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: a.cfg.Host, MinVersion: tls.VersionTLS12})
	}
	if err != nil {
		return nil, nil, common.NewTransientProviderError(string(model.ProviderIMAP), "dial", err)
	}
	if a.opts.Timeout > 0 {
		c.Timeout = a.opts.Timeout
	}

	if err := c.Login(a.cfg.Username, a.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, nil, common.Permanent(fmt.Errorf("imap login failed: %w", err))
	}

	status, err := c.Select(a.cfg.Folder, true)
	if err != nil {
		_ = c.Logout()
		return nil, nil, common.NewTransientProviderError(string(model.ProviderIMAP), "select", err)
	}
	return c, status, nil
}

func (a *IMAPAdapter) fetch(c *client.Client, uids []uint32) (map[uint32]model.MailEvent, map[uint32]bool, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	events := make(map[uint32]model.MailEvent, len(uids))
	received := make(map[uint32]bool, len(uids))
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		env, err := ParseRFC822(body)
		if err != nil {
			a.logger.Warn("Skipping unreadable IMAP message", "account", a.account.ID, "uid", msg.Uid, "error", err)
			received[msg.Uid] = true
			continue
		}
		events[msg.Uid] = env.Event(strconv.FormatUint(uint64(msg.Uid), 10), env.MessageID, msg.InternalDate)
		received[msg.Uid] = true
	}

	if err := <-done; err != nil {
		return events, received, err
	}
	return events, received, nil
}

// pendingUIDs returns the sorted UIDs strictly greater than after. A UID range
// "n:*" always matches the newest message, even when its UID is below n.
func pendingUIDs(uids []uint32, after uint32) []uint32 {
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > after {
			out = append(out, uid)
		}
	}
	slices.Sort(out)
	return out
}

// resumeUID returns the highest UID such that every requested UID up to it was received.
func resumeUID(requested []uint32, received map[uint32]bool, after uint32) uint32 {
	resume := after
	for _, uid := range requested {
		if !received[uid] {
			break
		}
		resume = uid
	}
	return resume
}
