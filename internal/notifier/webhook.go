package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier delivers notifications as generic JSON POSTs
type WebhookNotifier struct {
	url      string
	minLevel Level
	client   *http.Client
	loc      *time.Location
	logger   *zap.Logger
}

// NewWebhookNotifier creates a generic JSON webhook channel
func NewWebhookNotifier(url string, minLevel Level, loc *time.Location, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:      url,
		minLevel: minLevel,
		client:   &http.Client{Timeout: defaultTimeout},
		loc:      loc,
		logger:   logger,
	}
}

func (w *WebhookNotifier) Name() string    { return "webhook" }
func (w *WebhookNotifier) MinLevel() Level { return w.minLevel }

type webhookRecord struct {
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"created_at"`
}

type webhookData struct {
	RecordsCount int             `json:"records_count"`
	Records      []webhookRecord `json:"records"`
	HasMore      bool            `json:"has_more,omitempty"`
	TotalRecords int             `json:"total_records,omitempty"`
}

type webhookPayload struct {
	Timestamp string       `json:"timestamp"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Level     string       `json:"level"`
	BotName   string       `json:"bot_name"`
	Data      *webhookData `json:"data,omitempty"`
}

// Send posts the notification as JSON
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	payload := webhookPayload{
		Timestamp: time.Now().In(w.loc).Format(time.RFC3339),
		Title:     n.Title,
		Message:   n.Message,
		Level:     n.Level.String(),
		BotName:   botName,
	}

	if n.Record != nil {
		payload.Data = &webhookData{
			RecordsCount: 1,
			Records: []webhookRecord{{
				Balance:   n.Record.Balance,
				CreatedAt: n.Record.CreatedAt.Format(time.RFC3339),
			}},
		}
	}

	return postJSON(ctx, w.client, w.url, payload)
}

// SendChart is not supported by generic webhooks
func (w *WebhookNotifier) SendChart(ctx context.Context, chartPath, description string) error {
	w.logger.Info("Webhook 不支援圖表發送，跳過", zap.String("description", description))
	return nil
}

// postJSON posts a JSON body and accepts 200/204 responses
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
