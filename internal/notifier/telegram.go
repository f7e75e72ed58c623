package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TelegramNotifier delivers notifications as Markdown messages via the
// Telegram Bot API
type TelegramNotifier struct {
	sendMessageURL string
	sendPhotoURL   string
	chatID         string
	minLevel       Level
	client         *http.Client
	loc            *time.Location
	logger         *zap.Logger
}

// NewTelegramNotifier creates a Telegram bot channel
func NewTelegramNotifier(botToken, chatID string, minLevel Level, loc *time.Location, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sendMessageURL: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken),
		sendPhotoURL:   fmt.Sprintf("https://api.telegram.org/bot%s/sendPhoto", botToken),
		chatID:         chatID,
		minLevel:       minLevel,
		client:         &http.Client{Timeout: defaultTimeout},
		loc:            loc,
		logger:         logger,
	}
}

func (t *TelegramNotifier) Name() string    { return "telegram" }
func (t *TelegramNotifier) MinLevel() Level { return t.minLevel }

// levelEmoji prefixes the message title by severity
func levelEmoji(level Level) string {
	switch level {
	case LevelDebug:
		return "🔍"
	case LevelSuccess:
		return "✅"
	case LevelWarning:
		return "🟡"
	case LevelError:
		return "🔴"
	case LevelCritical:
		return "🚨"
	default:
		return "ℹ️"
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts the notification as a Markdown message
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	parts := []string{
		fmt.Sprintf("%s **%s**", levelEmoji(n.Level), n.Title),
		"",
		n.Message,
	}

	if n.Record != nil {
		parts = append(parts,
			"",
			"**餘額資訊**",
			fmt.Sprintf("餘額: $%.2f NTD", n.Record.Balance),
			fmt.Sprintf("時間: %s", formatRecordTime(n.Record.CreatedAt, t.loc)),
		)
	}

	parts = append(parts,
		"",
		fmt.Sprintf("_%s_", time.Now().In(t.loc).Format("2006-01-02 15:04:05")),
		fmt.Sprintf("_%s_", botName),
	)

	msg := telegramMessage{
		ChatID:    t.chatID,
		Text:      strings.Join(parts, "\n"),
		ParseMode: "Markdown",
	}

	return postJSON(ctx, t.client, t.sendMessageURL, msg)
}

// SendChart uploads a chart image via sendPhoto
func (t *TelegramNotifier) SendChart(ctx context.Context, chartPath, description string) error {
	file, err := os.Open(chartPath)
	if err != nil {
		return fmt.Errorf("opening chart file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", t.chatID); err != nil {
		return fmt.Errorf("writing chat_id field: %w", err)
	}
	if err := writer.WriteField("caption", description); err != nil {
		return fmt.Errorf("writing caption field: %w", err)
	}

	part, err := writer.CreateFormFile("photo", filepath.Base(chartPath))
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copying chart file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.sendPhotoURL, &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	t.logger.Info("Telegram 圖表發送成功", zap.String("description", description))
	return nil
}
