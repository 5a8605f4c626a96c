// Package notify delivers expiry alerts to a Slack webhook.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/certcheck/certcheck/internal/config"
	"github.com/certcheck/certcheck/internal/inventory"
)

const httpTimeout = 10 * time.Second

// StatusLine renders the human-readable expiry status for a finding.
func StatusLine(daysRemaining int) string {
	switch {
	case daysRemaining < 0:
		return "Expired!"
	case daysRemaining == 0:
		return "Expires today!"
	case daysRemaining == 1:
		return "Expires tomorrow!"
	default:
		return fmt.Sprintf("Expires in %d days.", daysRemaining)
	}
}

// Attachment renders a finding as a Slack attachment. The severity
// doubles as the sidebar color.
func Attachment(f inventory.Finding) slack.Attachment {
	return slack.Attachment{
		Color:      string(f.Severity),
		MarkdownIn: []string{"text"},
		Text:       fmt.Sprintf("*%s* `%s`\n%s", f.Record.Source, f.Record.Location, StatusLine(f.DaysRemaining)),
	}
}

// Notifier sends one batched Slack message per scan.
type Notifier struct {
	client *http.Client
	out    io.Writer
	cfg    config.SlackConfig
}

// New creates a Notifier. Delivered attachment texts are echoed to out.
func New(cfg config.SlackConfig, out io.Writer) *Notifier {
	return &Notifier{
		cfg:    cfg,
		out:    out,
		client: &http.Client{Timeout: httpTimeout},
	}
}

// Send posts all alerts as a single webhook message. No message is
// posted when there are no alerts.
func (n *Notifier) Send(ctx context.Context, alerts []inventory.Finding) error {
	if len(alerts) == 0 {
		return nil
	}

	msg := &slack.WebhookMessage{
		Username:  n.cfg.Username,
		Channel:   n.cfg.Channel,
		IconEmoji: n.cfg.IconEmoji,
	}
	for _, f := range alerts {
		msg.Attachments = append(msg.Attachments, Attachment(f))
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, n.cfg.WebhookURL, n.client, msg); err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}

	for i := range msg.Attachments {
		fmt.Fprintln(n.out, msg.Attachments[i].Text) //nolint:errcheck // best-effort output
	}
	return nil
}
