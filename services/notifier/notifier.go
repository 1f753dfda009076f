// Package notifier delivers a formatted summary of newly-seen deals to a
// Telegram chat and keeps the cross-run history that defines "new".
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"promoscout/promoworker/internal/domain"
	"promoscout/promoworker/logger"
	apperr "promoscout/promoworker/pkg/errors"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends Markdown messages via the Telegram bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	log      *logger.Logger
}

// New creates a notifier. Missing credentials produce a disabled notifier;
// the alert channel is an optional collaborator.
func New(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      logger.ForNotifier(),
	}
}

// Enabled reports whether credentials are configured.
func (n *Notifier) Enabled() bool {
	return n.botToken != "" && n.chatID != ""
}

// NotifyNewDeals formats and sends the new-deal summary. With no new deals a
// short all-clear message goes out instead.
func (n *Notifier) NotifyNewDeals(ctx context.Context, deals []domain.ExtractedDeal) error {
	if !n.Enabled() {
		return apperr.NewValidation("notifier", "telegram credentials not configured")
	}
	return n.send(ctx, FormatSummary(deals))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{
		"chat_id":    {n.chatID},
		"text":       {text},
		"parse_mode": {"Markdown"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperr.NewNotify("telegram", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return apperr.NewNotify("telegram", "send failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperr.NewNotify("telegram", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	n.log.Info().Int("status", resp.StatusCode).Msg("Telegram message sent")
	return nil
}

// FormatSummary renders the Markdown alert body for a set of new deals.
func FormatSummary(deals []domain.ExtractedDeal) string {
	if len(deals) == 0 {
		return "✅ *Deal check complete*:\n_No new deals found this run._"
	}

	var b strings.Builder
	b.WriteString("*🚨 New Deals Alert! 🚨*\n\n")
	for _, d := range deals {
		b.WriteString(fmt.Sprintf("🛒 *%s*\n", d.StoreName))
		if d.Title != "" {
			b.WriteString(fmt.Sprintf(" %s\n", d.Title))
		}
		if line := priceLine(d); line != "" {
			b.WriteString(fmt.Sprintf(" *%s*\n", line))
		}
		b.WriteString(fmt.Sprintf(" %s\n", d.SourceURL))
		b.WriteString("---\n")
	}
	b.WriteString(fmt.Sprintf("\n_Total new deals found: %d_", len(deals)))
	return b.String()
}

func priceLine(d domain.ExtractedDeal) string {
	switch {
	case d.OldPrice != nil && d.NewPrice != nil:
		return fmt.Sprintf("was %.2f, now %.2f", *d.OldPrice, *d.NewPrice)
	case d.NewPrice != nil:
		return fmt.Sprintf("now %.2f", *d.NewPrice)
	case d.DiscountPercent != nil:
		return fmt.Sprintf("%d%% off", *d.DiscountPercent)
	}
	return ""
}
