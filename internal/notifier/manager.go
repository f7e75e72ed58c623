package notifier

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/config"
	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	"go.uber.org/zap"
)

// Manager routes events to every configured channel, applying the
// per-channel severity floor, the quiet-hours window, and the
// low-balance threshold. Per-channel delivery failures are logged and
// never affect other channels.
type Manager struct {
	notifiers []Notifier

	startTime string
	endTime   string
	threshold float64
	loc       *time.Location
	logger    *zap.Logger

	nowFn func() time.Time
}

// NewManager builds a Manager with the channels declared in cfg
func NewManager(cfg *config.Config, loc *time.Location, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		startTime: cfg.GetNotificationStartTime(),
		endTime:   cfg.GetNotificationEndTime(),
		threshold: cfg.GetBalanceThreshold(),
		loc:       loc,
		logger:    logger,
		nowFn:     time.Now,
	}

	notif := cfg.Notifications

	if notif.Discord.WebhookURL != "" {
		level := LevelFromString(notif.Discord.MinLevel)
		m.Add(NewDiscordNotifier(notif.Discord.WebhookURL, level, loc, logger))
		logger.Info("已添加 Discord webhook 通知", zap.String("min_level", level.String()))
	}

	if notif.Telegram.BotToken != "" && notif.Telegram.ChatID != "" {
		level := LevelFromString(notif.Telegram.MinLevel)
		m.Add(NewTelegramNotifier(notif.Telegram.BotToken, notif.Telegram.ChatID, level, loc, logger))
		logger.Info("已添加 Telegram 通知", zap.String("min_level", level.String()))
	}

	for _, hook := range notif.Webhooks {
		if hook.URL == "" {
			continue
		}
		level := LevelFromString(hook.MinLevel)
		m.Add(NewWebhookNotifier(hook.URL, level, loc, logger))
		logger.Info("已添加 Webhook 通知", zap.String("min_level", level.String()))
	}

	if notif.MQTT.Broker != "" {
		level := LevelFromString(notif.MQTT.MinLevel)
		mqttNotifier, err := NewMQTTNotifier(
			notif.MQTT.Broker, notif.MQTT.Username, notif.MQTT.Password,
			cfg.GetMQTTTopic(), level, loc, logger)
		if err != nil {
			return nil, fmt.Errorf("creating MQTT notifier: %w", err)
		}
		m.Add(mqttNotifier)
		logger.Info("已添加 MQTT 通知", zap.String("min_level", level.String()))
	}

	return m, nil
}

// Add registers an extra channel
func (m *Manager) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Close releases channels that hold connections
func (m *Manager) Close() {
	for _, n := range m.notifiers {
		if closer, ok := n.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// SendStartup announces that the bot came up
func (m *Manager) SendStartup(ctx context.Context) {
	m.sendToAll(ctx, Notification{
		Title:   "🚀 機器人啟動",
		Message: "NTUT電費帳單機器人已成功啟動，開始執行定時爬取任務",
		Level:   LevelInfo,
	})
}

// SendBalance routes a balance-success alert. It is gated twice: outside
// the configured time window it is dropped, and a balance at or above the
// threshold is suppressed entirely because the alert exists to warn of a
// low balance.
func (m *Manager) SendBalance(ctx context.Context, record *models.ElectricityRecord) {
	title := "💰 購電餘額查詢成功"
	message := fmt.Sprintf("餘額數值：%.2f NTD", record.Balance)

	if !m.withinWindow(m.nowFn().In(m.loc)) {
		m.logger.Info("成功通知已忽略（超出通知時間範圍）",
			zap.String("title", title), zap.String("message", message))
		return
	}

	if record.Balance >= m.threshold {
		m.logger.Info("成功通知已忽略（餘額高於門檻值）",
			zap.Float64("balance", record.Balance), zap.Float64("threshold", m.threshold))
		return
	}

	m.sendToAll(ctx, Notification{
		Title:   title,
		Message: message,
		Level:   LevelSuccess,
		Record:  record,
	})
}

// SendCrawlError routes a crawl failure
func (m *Manager) SendCrawlError(ctx context.Context, errorMessage string, duration float64) {
	m.sendToAll(ctx, Notification{
		Title:   "🔴 電費爬取失敗",
		Message: fmt.Sprintf("爬取過程發生錯誤：%s\n耗時 %.2f 秒", errorMessage, duration),
		Level:   LevelError,
	})
}

// SendPartialSuccess routes a partially successful crawl
func (m *Manager) SendPartialSuccess(ctx context.Context, recordsCount int, duration float64) {
	m.sendToAll(ctx, Notification{
		Title:   "🟡 電費爬取部分成功",
		Message: fmt.Sprintf("爬取到 %d 筆記錄，但可能有遺漏\n耗時 %.2f 秒", recordsCount, duration),
		Level:   LevelWarning,
	})
}

// SendDailySummary routes the daily consumption report, attaching the
// chart when one was rendered. Chart delivery is independent of the
// severity/time/threshold gates.
func (m *Manager) SendDailySummary(ctx context.Context, s models.DailySummary, chartPath string) {
	var message string
	if s.TotalUsage > 0 {
		message = fmt.Sprintf(
			"📅 日期：%s\n💰 總用電金額：$%.2f NTD\n🔋 起始餘額：$%.2f NTD\n🔋 結束餘額：$%.2f NTD\n📈 記錄筆數：%d 筆",
			s.Date, s.TotalUsage, s.StartBalance, s.EndBalance, len(s.HourlyUsage))
		if chartPath != "" {
			message += "\n\n📊 圖表已生成，請查看附檔"
		}
	} else {
		message = fmt.Sprintf(
			"📅 日期：%s\nℹ️ 今日無用電記錄或用電量為零\n\n可能原因：\n• 資料收集不足（少於2筆記錄）\n• 系統維護期間\n• 用電量極少",
			s.Date)
	}

	m.sendToAll(ctx, Notification{
		Title:   "📊 每日用電摘要報告",
		Message: message,
		Level:   LevelInfo,
	})

	if chartPath != "" {
		if _, err := os.Stat(chartPath); err == nil {
			m.sendChartToAll(ctx, chartPath, fmt.Sprintf("%s 用電圖表", s.Date))
		}
	}
}

func (m *Manager) sendToAll(ctx context.Context, n Notification) {
	if len(m.notifiers) == 0 {
		m.logger.Info("無可用的通知服務，跳過發送", zap.String("title", n.Title))
		return
	}

	for _, notifier := range m.notifiers {
		if n.Level < notifier.MinLevel() {
			m.logger.Debug("通知等級低於頻道門檻，跳過",
				zap.String("channel", notifier.Name()),
				zap.String("level", n.Level.String()))
			continue
		}
		if err := notifier.Send(ctx, n); err != nil {
			m.logger.Error("通知發送失敗",
				zap.String("channel", notifier.Name()), zap.Error(err))
			continue
		}
		m.logger.Info("通知發送成功",
			zap.String("channel", notifier.Name()), zap.String("title", n.Title))
	}
}

func (m *Manager) sendChartToAll(ctx context.Context, chartPath, description string) {
	if len(m.notifiers) == 0 {
		m.logger.Info("無可用的通知服務，跳過圖表發送", zap.String("description", description))
		return
	}

	for _, notifier := range m.notifiers {
		if err := notifier.SendChart(ctx, chartPath, description); err != nil {
			m.logger.Error("圖表發送失敗",
				zap.String("channel", notifier.Name()), zap.Error(err))
		}
	}
}

// withinWindow reports whether now falls inside the configured success
// alert window. A window whose start is after its end wraps midnight.
// Malformed configuration fails open: alerts stay enabled.
func (m *Manager) withinWindow(now time.Time) bool {
	start, err := parseClock(m.startTime)
	if err != nil {
		m.logger.Error("通知時間設定格式錯誤", zap.String("start_time", m.startTime), zap.Error(err))
		return true
	}
	end, err := parseClock(m.endTime)
	if err != nil {
		m.logger.Error("通知時間設定格式錯誤", zap.String("end_time", m.endTime), zap.Error(err))
		return true
	}

	current := now.Hour()*60 + now.Minute()

	if start <= end {
		return start <= current && current <= end
	}
	// Wraps midnight, e.g. 23:00 to 06:00
	return current >= start || current <= end
}

// parseClock parses "HH:MM" into minutes since midnight
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
