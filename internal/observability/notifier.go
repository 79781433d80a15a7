package observability

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// Notifier mirrors feedback and health alerts to an external channel.
type Notifier interface {
	Notify(signals []models.FeedbackSignal) error
	NotifyAlerts(alerts []Alert) error
}

// webhookNotifier posts block messages to an incoming webhook.
type webhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a Notifier that posts to the given webhook URL.
func NewWebhookNotifier(webhookURL string) Notifier {
	return &webhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type blockMessage struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify sends the given feedback signals. It returns nil without making a
// request if the slice is empty.
func (n *webhookNotifier) Notify(signals []models.FeedbackSignal) error {
	if len(signals) == 0 {
		return nil
	}
	lines := make([]string, 0, len(signals))
	for _, s := range signals {
		lines = append(lines, fmt.Sprintf("%s *[%s]* %s\n_%s_",
			signalEmoji(s.Severity), strings.ToUpper(string(s.Severity)), s.Message, s.Channel))
	}
	return n.post(buildMessage("board feedback", lines))
}

// NotifyAlerts sends health alerts. It returns nil without making a request
// if the slice is empty.
func (n *webhookNotifier) NotifyAlerts(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, fmt.Sprintf("%s *[%s]* %s\n_%s_",
			severityEmoji(a.Severity),
			strings.ToUpper(string(a.Severity)),
			a.Message,
			a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
		))
	}
	return n.post(buildMessage("board health", lines))
}

func (n *webhookNotifier) post(msg blockMessage) error {
	body, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling webhook message: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func buildMessage(header string, sections []string) blockMessage {
	blocks := []block{
		{
			Type: "header",
			Text: &blockText{Type: "plain_text", Text: header},
		},
	}

	for i, text := range sections {
		if i > 0 {
			blocks = append(blocks, block{Type: "divider"})
		}
		blocks = append(blocks, block{
			Type: "section",
			Text: &blockText{Type: "mrkdwn", Text: text},
		})
	}

	return blockMessage{Blocks: blocks}
}

func signalEmoji(sev models.Severity) string {
	if sev == models.SeverityError {
		return "❌"
	}
	return "✅"
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
