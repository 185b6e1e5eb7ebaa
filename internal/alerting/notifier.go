package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"momentum-scanner/internal/market"
)

// maxListed caps how many ranked assets a summary message lists.
const maxListed = 5

// Notification carries the outcome of one finished scan.
type Notification struct {
	RunID        string
	FinishedAt   time.Time
	Results      []market.MetricRecord
	ArtifactPath string
	Error        string
}

// Failed reports whether the run ended in error.
func (n Notification) Failed() bool {
	return n.Error != ""
}

// Notifier delivers scan summaries.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts summaries through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with a rendered summary.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("run_id", note.RunID).
		Bool("failed", note.Failed()).
		Int("results", len(note.Results)).
		Msg("scan summary sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Momentum Scan]\n")
	builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	builder.WriteString(fmt.Sprintf("Finished: %s UTC\n", note.FinishedAt.UTC().Format(time.RFC3339)))

	if note.Failed() {
		builder.WriteString(fmt.Sprintf("Status: FAILED\nError: %s\n", note.Error))
		return builder.String()
	}

	bullish := 0
	for _, rec := range note.Results {
		if rec.Trend == market.Bullish {
			bullish++
		}
	}
	builder.WriteString(fmt.Sprintf("Scored: %d (stage 2: %d)\n", len(note.Results), bullish))

	for i, rec := range note.Results {
		if i == maxListed {
			builder.WriteString(fmt.Sprintf("... %d more\n", len(note.Results)-maxListed))
			break
		}
		builder.WriteString(fmt.Sprintf("%d. %s (%s) RSI %s, %s\n",
			i+1,
			rec.Asset,
			rec.Symbol,
			decimal.NewFromFloat(rec.Oscillator).StringFixed(2),
			rec.Trend.Label(),
		))
	}
	if note.ArtifactPath != "" {
		builder.WriteString(fmt.Sprintf("Report: %s\n", filepath.Base(note.ArtifactPath)))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
