package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/certcheck/certcheck/internal/config"
	"github.com/certcheck/certcheck/internal/inventory"
)

func testSlackConfig(url string) config.SlackConfig {
	return config.SlackConfig{
		WebhookURL: url,
		Channel:    "#platform-alerts",
		Username:   "certificate-check",
		IconEmoji:  ":certificate:",
	}
}

func alert(source, location string, days int, sev inventory.Severity) inventory.Finding {
	return inventory.Finding{
		Record: inventory.Record{
			Source:   source,
			Location: location,
		},
		DaysRemaining: days,
		Severity:      sev,
	}
}

// webhookMessage mirrors the wire shape of a Slack incoming-webhook
// post.
type webhookMessage struct {
	Username    string `json:"username"`
	Channel     string `json:"channel"`
	IconEmoji   string `json:"icon_emoji"`
	Attachments []struct {
		Color      string   `json:"color"`
		Text       string   `json:"text"`
		MarkdownIn []string `json:"mrkdwn_in"`
	} `json:"attachments"`
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		want string
		days int
	}{
		{"Expired!", -30},
		{"Expired!", -1},
		{"Expires today!", 0},
		{"Expires tomorrow!", 1},
		{"Expires in 2 days.", 2},
		{"Expires in 30 days.", 30},
	}
	for _, tt := range tests {
		if got := StatusLine(tt.days); got != tt.want {
			t.Errorf("StatusLine(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestAttachment(t *testing.T) {
	a := Attachment(alert("cf", "properties.ssl.cert", 3, inventory.SeverityDanger))

	if a.Color != "danger" {
		t.Errorf("expected color danger, got %q", a.Color)
	}
	if len(a.MarkdownIn) != 1 || a.MarkdownIn[0] != "text" {
		t.Errorf("expected mrkdwn_in [text], got %v", a.MarkdownIn)
	}
	want := "*cf* `properties.ssl.cert`\nExpires in 3 days."
	if a.Text != want {
		t.Errorf("expected %q, got %q", want, a.Text)
	}
}

func TestNotifier_SendBatchesAlerts(t *testing.T) {
	var mu sync.Mutex
	var received []byte
	callCount := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test helper
		received = body
		callCount++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	n := New(testSlackConfig(srv.URL), &out)

	alerts := []inventory.Finding{
		alert("cf", "properties.ssl.cert", -2, inventory.SeverityDanger),
		alert("AWS IAM ServerCertificate", "prod-cert", 12, inventory.SeverityWarning),
	}
	if err := n.Send(context.Background(), alerts); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if callCount != 1 {
		t.Fatalf("expected a single webhook call, got %d", callCount)
	}

	var msg webhookMessage
	if err := json.Unmarshal(received, &msg); err != nil {
		t.Fatalf("invalid JSON payload: %v", err)
	}
	if msg.Username != "certificate-check" {
		t.Errorf("expected username certificate-check, got %q", msg.Username)
	}
	if msg.Channel != "#platform-alerts" {
		t.Errorf("expected channel #platform-alerts, got %q", msg.Channel)
	}
	if msg.IconEmoji != ":certificate:" {
		t.Errorf("expected icon :certificate:, got %q", msg.IconEmoji)
	}
	if len(msg.Attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(msg.Attachments))
	}
	if msg.Attachments[0].Color != "danger" {
		t.Errorf("expected color danger, got %q", msg.Attachments[0].Color)
	}
	if msg.Attachments[0].Text != "*cf* `properties.ssl.cert`\nExpired!" {
		t.Errorf("unexpected attachment text %q", msg.Attachments[0].Text)
	}
	if msg.Attachments[1].Color != "warning" {
		t.Errorf("expected color warning, got %q", msg.Attachments[1].Color)
	}
	if msg.Attachments[1].Text != "*AWS IAM ServerCertificate* `prod-cert`\nExpires in 12 days." {
		t.Errorf("unexpected attachment text %q", msg.Attachments[1].Text)
	}

	// delivered texts are echoed, one per line
	wantOut := "*cf* `properties.ssl.cert`\nExpired!\n" +
		"*AWS IAM ServerCertificate* `prod-cert`\nExpires in 12 days.\n"
	if out.String() != wantOut {
		t.Errorf("unexpected echo output %q", out.String())
	}
}

func TestNotifier_NoAlertsNoPost(t *testing.T) {
	callCount := 0
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		callCount++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	n := New(testSlackConfig(srv.URL), &out)

	if err := n.Send(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if callCount != 0 {
		t.Errorf("expected no webhook calls, got %d", callCount)
	}
	if out.Len() != 0 {
		t.Errorf("expected no echo output, got %q", out.String())
	}
}

func TestNotifier_DeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out bytes.Buffer
	n := New(testSlackConfig(srv.URL), &out)

	err := n.Send(context.Background(), []inventory.Finding{
		alert("cf", "properties.ssl.cert", 0, inventory.SeverityDanger),
	})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if !strings.Contains(err.Error(), "posting to slack") {
		t.Errorf("expected wrapped delivery error, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be echoed on failure, got %q", out.String())
	}
}

func TestNotifier_Unreachable(t *testing.T) {
	var out bytes.Buffer
	n := New(testSlackConfig("http://127.0.0.1:1"), &out) // connection refused

	err := n.Send(context.Background(), []inventory.Finding{
		alert("cf", "properties.ssl.cert", 0, inventory.SeverityDanger),
	})
	if err == nil {
		t.Fatal("expected delivery error")
	}
}
