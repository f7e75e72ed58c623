package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DiscordNotifier delivers notifications as Discord webhook embeds
type DiscordNotifier struct {
	webhookURL string
	minLevel   Level
	client     *http.Client
	loc        *time.Location
	logger     *zap.Logger
}

// NewDiscordNotifier creates a Discord webhook channel
func NewDiscordNotifier(webhookURL string, minLevel Level, loc *time.Location, logger *zap.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		minLevel:   minLevel,
		client:     &http.Client{Timeout: defaultTimeout},
		loc:        loc,
		logger:     logger,
	}
}

func (d *DiscordNotifier) Name() string    { return "discord" }
func (d *DiscordNotifier) MinLevel() Level { return d.minLevel }

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Footer      discordFooter  `json:"footer"`
	Fields      []discordField `json:"fields,omitempty"`
	Image       *discordImage  `json:"image,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// embedColor maps a level to the embed side-bar color
func embedColor(level Level) int {
	switch {
	case level == LevelSuccess:
		return 0x00FF00
	case level >= LevelError:
		return 0xFF0000
	case level == LevelWarning:
		return 0xFFAA00
	default:
		return 0x0099FF
	}
}

// Send posts the notification as an embed
func (d *DiscordNotifier) Send(ctx context.Context, n Notification) error {
	embed := discordEmbed{
		Title:       n.Title,
		Description: n.Message,
		Color:       embedColor(n.Level),
		Timestamp:   time.Now().In(d.loc).Format(time.RFC3339),
		Footer:      discordFooter{Text: botName},
	}

	if n.Record != nil {
		embed.Fields = []discordField{{
			Name: "餘額資訊",
			Value: fmt.Sprintf("餘額: $%.2f NTD\n時間: %s",
				n.Record.Balance, formatRecordTime(n.Record.CreatedAt, d.loc)),
			Inline: false,
		}}
	}

	return postJSON(ctx, d.client, d.webhookURL, discordPayload{Embeds: []discordEmbed{embed}})
}

// SendChart uploads a chart image with an embed referencing the attachment
func (d *DiscordNotifier) SendChart(ctx context.Context, chartPath, description string) error {
	file, err := os.Open(chartPath)
	if err != nil {
		return fmt.Errorf("opening chart file: %w", err)
	}
	defer file.Close()

	filename := filepath.Base(chartPath)
	embed := discordEmbed{
		Title:     description,
		Color:     0x00FF00,
		Timestamp: time.Now().In(d.loc).Format(time.RFC3339),
		Footer:    discordFooter{Text: botName},
		Image:     &discordImage{URL: "attachment://" + filename},
	}

	payloadJSON, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copying chart file: %w", err)
	}

	if err := writer.WriteField("payload_json", string(payloadJSON)); err != nil {
		return fmt.Errorf("writing payload field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	d.logger.Info("圖表發送成功", zap.String("description", description))
	return nil
}
