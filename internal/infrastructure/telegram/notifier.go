package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"GiftScout/internal/domain"
	"GiftScout/internal/ports"
)

// Notifier sends run reports to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishReport posts a run summary message to Telegram.
func (n *Notifier) PublishReport(ctx context.Context, report domain.RunReport) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatReport(report))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatReport(r domain.RunReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "GiftScout run %s (%s)\n", r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	if r.Discovered > 0 || r.Accepted > 0 {
		fmt.Fprintf(&sb, "discovered %d | accepted %d | duplicates %d | filtered %d | invalid %d\n",
			r.Discovered, r.Accepted, r.Duplicates, r.FilteredOut, r.Invalid)
	}
	if r.Published > 0 || r.Rejected > 0 || r.Errors > 0 {
		fmt.Fprintf(&sb, "published %d | rejected %d | errors %d\n", r.Published, r.Rejected, r.Errors)
	}
	if r.Delisted > 0 || r.Resurrected > 0 || r.Repriced > 0 {
		fmt.Fprintf(&sb, "delisted %d | resurrected %d | repriced %d\n", r.Delisted, r.Resurrected, r.Repriced)
	}

	return strings.TrimSpace(sb.String())
}
