// Package notify provides best-effort build status notifications over SMS.
// A missing configuration degrades to a silent no-op; callers never treat a
// notification failure as fatal.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rljarm/AIServer/internal/model"
)

// Notifier sends one human-readable status message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NoopNotifier is used when no credentials are configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }

const defaultAPIBase = "https://api.twilio.com"

// SMSNotifier delivers messages through the Twilio Messages REST API.
type SMSNotifier struct {
	accountSID string
	authToken  string
	from       string
	to         string
	apiBase    string
	client     *http.Client
}

// NewFromConfig resolves credentials from config with TWILIO_* environment
// fallbacks. When any credential is missing it returns a NoopNotifier so
// the pipeline runs unchanged without a notification channel.
func NewFromConfig(cfg model.NotifyConfig) Notifier {
	sid := fallbackEnv(cfg.AccountSID, "TWILIO_ACCOUNT_SID")
	token := fallbackEnv(cfg.AuthToken, "TWILIO_AUTH_TOKEN")
	from := fallbackEnv(cfg.FromNumber, "TWILIO_FROM_NUMBER")
	to := fallbackEnv(cfg.ToNumber, "TWILIO_TO_NUMBER")

	if sid == "" || token == "" || from == "" || to == "" {
		return NoopNotifier{}
	}
	return NewSMSNotifier(sid, token, from, to)
}

func NewSMSNotifier(accountSID, authToken, from, to string) *SMSNotifier {
	return &SMSNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		apiBase:    defaultAPIBase,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// SetAPIBase overrides the API endpoint. Used by tests.
func (n *SMSNotifier) SetAPIBase(base string) {
	n.apiBase = strings.TrimRight(base, "/")
}

func (n *SMSNotifier) Notify(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.apiBase, n.accountSID)

	form := url.Values{}
	form.Set("To", n.to)
	form.Set("From", n.from)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(n.accountSID, n.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func fallbackEnv(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}
