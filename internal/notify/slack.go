package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sitepulse/sitepulse/internal/domain"
)

// Slack posts high-priority notifications to an incoming webhook.
// Routine checks are skipped; nobody wants a channel full of green.
type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Notify(ctx context.Context, n Notification) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	if n.Kind == KindRoutine {
		return nil
	}

	var title string
	switch n.Kind {
	case KindStatusChange:
		title = "🔴 " + n.URL + " is DOWN"
		if n.Status == domain.StatusUp {
			title = "🟢 " + n.URL + " RECOVERED"
		}
	case KindSuppressed:
		title = "🔇 " + n.URL + " flapping (alert suppressed)"
	default:
		title = "👀 now monitoring " + n.URL
	}

	httpTxt := "n/a"
	if n.HTTPStatus != 0 {
		httpTxt = fmt.Sprintf("%d", n.HTTPStatus)
	}
	text := fmt.Sprintf(
		"URL: %s\nHTTP: %s\nLatency: %.0f ms\nReason: %s\nChecked: %s",
		n.URL, httpTxt, n.LatencyMS, n.Reason, n.CheckedAt.Format(time.RFC3339),
	)
	if n.Kind == KindStatusChange || n.Kind == KindSuppressed {
		text = fmt.Sprintf("Was: %s\n%s", n.Previous, text)
	}
	if n.Kind == KindSuppressed {
		text = fmt.Sprintf("%s\nNext alert in: %s", text, n.RetryAfter.Round(time.Second))
	}

	body, _ := json.Marshal(slackPayload{Text: "*" + title + "*\n" + text})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.New("slack non-2xx")
	}
	return nil
}
