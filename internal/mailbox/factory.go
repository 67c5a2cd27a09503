package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Config holds everything needed to build an adapter for any account.
type Config struct {
	Logger       *slog.Logger
	Google       OAuthConfig
	Microsoft    OAuthConfig
	IMAP         IMAPConfig
	TokenDir     string
	GraphBaseURL string
	GraphFolder  string
	Options      Options
}

// TokenFile returns where the OAuth token of account is stored.
func (c Config) TokenFile(account model.MailAccount) string {
	return filepath.Join(c.TokenDir, account.ID+".json")
}

// OAuthFor returns the provider OAuth configuration bound to the account's token file.
func (c Config) OAuthFor(account model.MailAccount) (OAuthConfig, error) {
	var oc OAuthConfig
	switch account.Provider {
	case model.ProviderGmail:
		oc = c.Google
	case model.ProviderOutlook:
		oc = c.Microsoft
	default:
		return OAuthConfig{}, fmt.Errorf("%w: %s does not use OAuth", common.ErrUnsupportedProvider, account.Provider)
	}
	oc.TokenFile = c.TokenFile(account)
	return oc, nil
}

// New selects the adapter for the account's provider kind.
func New(ctx context.Context, account model.MailAccount, cfg Config) (Adapter, error) {
	if account.Status == model.AccountDisabled {
		return nil, fmt.Errorf("account %s: %w", account.ID, common.ErrAccountDisabled)
	}

	switch account.Provider {
	case model.ProviderGmail:
		oc, err := cfg.OAuthFor(account)
		if err != nil {
			return nil, err
		}
		client, err := HTTPClient(ctx, oc)
		if err != nil {
			return nil, err
		}
		if cfg.Options.Timeout > 0 {
			client.Timeout = cfg.Options.Timeout
		}
		svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("unable to create Gmail service: %w", err)
		}
		return NewGmailAdapter(svc, account, cfg.Options, cfg.Logger), nil

	case model.ProviderOutlook:
		oc, err := cfg.OAuthFor(account)
		if err != nil {
			return nil, err
		}
		client, err := HTTPClient(ctx, oc)
		if err != nil {
			return nil, err
		}
		return NewGraphAdapter(client, cfg.GraphBaseURL, cfg.GraphFolder, account, cfg.Options, cfg.Logger), nil

	case model.ProviderIMAP:
		if cfg.IMAP.Host == "" {
			return nil, fmt.Errorf("%w: imap.host", common.ErrMissingConfig)
		}
		return NewIMAPAdapter(cfg.IMAP, account, cfg.Options, cfg.Logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, account.Provider)
	}
}
