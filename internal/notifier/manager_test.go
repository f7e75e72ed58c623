package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/config"
	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	name     string
	minLevel Level
	sendErr  error

	sent   []Notification
	charts []string
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) MinLevel() Level { return f.minLevel }

func (f *fakeNotifier) Send(ctx context.Context, n Notification) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) SendChart(ctx context.Context, chartPath, description string) error {
	f.charts = append(f.charts, chartPath)
	return nil
}

func newTestManager(t *testing.T, startTime, endTime string, threshold float64, now time.Time) *Manager {
	t.Helper()
	m := &Manager{
		startTime: startTime,
		endTime:   endTime,
		threshold: threshold,
		loc:       time.UTC,
		logger:    zap.NewNop(),
		nowFn:     func() time.Time { return now },
	}
	return m
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 4, 1, hour, minute, 0, 0, time.UTC)
}

func TestSendBalanceWithinWindow(t *testing.T) {
	m := newTestManager(t, "06:00", "23:00", 100.0, at(12, 0))
	ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
	m.Add(ch)

	m.SendBalance(context.Background(), &models.ElectricityRecord{Balance: 42.5})

	if len(ch.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(ch.sent))
	}
	n := ch.sent[0]
	if n.Level != LevelSuccess {
		t.Errorf("Level = %s, want SUCCESS", n.Level)
	}
	if n.Record == nil || n.Record.Balance != 42.5 {
		t.Errorf("Record = %+v, want balance 42.5", n.Record)
	}
}

func TestSendBalanceOutsideWindow(t *testing.T) {
	m := newTestManager(t, "06:00", "23:00", 100.0, at(3, 30))
	ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
	m.Add(ch)

	m.SendBalance(context.Background(), &models.ElectricityRecord{Balance: 42.5})

	if len(ch.sent) != 0 {
		t.Errorf("sent %d notifications outside the window, want 0", len(ch.sent))
	}
}

func TestSendBalanceWindowWrapsMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before midnight", at(23, 30), true},
		{"after midnight", at(5, 0), true},
		{"midday outside", at(12, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, "23:00", "06:00", 100.0, tt.now)
			ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
			m.Add(ch)

			m.SendBalance(context.Background(), &models.ElectricityRecord{Balance: 10})

			if got := len(ch.sent) == 1; got != tt.want {
				t.Errorf("delivered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendBalanceThreshold(t *testing.T) {
	tests := []struct {
		balance float64
		want    bool
	}{
		{99.99, true},
		{100.0, false},
		{250.0, false},
	}
	for _, tt := range tests {
		m := newTestManager(t, "06:00", "23:00", 100.0, at(12, 0))
		ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
		m.Add(ch)

		m.SendBalance(context.Background(), &models.ElectricityRecord{Balance: tt.balance})

		if got := len(ch.sent) == 1; got != tt.want {
			t.Errorf("balance %v: delivered = %v, want %v", tt.balance, got, tt.want)
		}
	}
}

func TestMalformedWindowFailsOpen(t *testing.T) {
	m := newTestManager(t, "not-a-time", "23:00", 100.0, at(3, 0))
	ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
	m.Add(ch)

	m.SendBalance(context.Background(), &models.ElectricityRecord{Balance: 10})

	if len(ch.sent) != 1 {
		t.Errorf("sent %d notifications with malformed window, want 1 (fail open)", len(ch.sent))
	}
}

func TestSeverityFloorFiltersPerChannel(t *testing.T) {
	m := newTestManager(t, "06:00", "23:00", 100.0, at(12, 0))
	chatty := &fakeNotifier{name: "chatty", minLevel: LevelDebug}
	strict := &fakeNotifier{name: "strict", minLevel: LevelError}
	m.Add(chatty)
	m.Add(strict)

	m.SendPartialSuccess(context.Background(), 0, 1.5)

	if len(chatty.sent) != 1 {
		t.Errorf("chatty channel got %d notifications, want 1", len(chatty.sent))
	}
	if len(strict.sent) != 0 {
		t.Errorf("strict channel got %d notifications, want 0", len(strict.sent))
	}
}

func TestChannelFailureIsolation(t *testing.T) {
	m := newTestManager(t, "06:00", "23:00", 100.0, at(12, 0))
	broken := &fakeNotifier{name: "broken", minLevel: LevelInfo, sendErr: errors.New("boom")}
	healthy := &fakeNotifier{name: "healthy", minLevel: LevelInfo}
	m.Add(broken)
	m.Add(healthy)

	m.SendCrawlError(context.Background(), "登入失敗", 3.2)

	if len(healthy.sent) != 1 {
		t.Errorf("healthy channel got %d notifications after sibling failure, want 1", len(healthy.sent))
	}
}

func TestErrorAndPartialBypassGates(t *testing.T) {
	// Outside the window and irrelevant to the threshold: failure events
	// are never suppressed
	m := newTestManager(t, "06:00", "23:00", 100.0, at(3, 0))
	ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
	m.Add(ch)

	m.SendCrawlError(context.Background(), "登入失敗", 1.0)
	m.SendPartialSuccess(context.Background(), 1, 1.0)

	if len(ch.sent) != 2 {
		t.Errorf("sent %d notifications, want 2 (gates apply only to balance alerts)", len(ch.sent))
	}
}

func TestSendDailySummaryZeroUsageBody(t *testing.T) {
	m := newTestManager(t, "06:00", "23:00", 100.0, at(8, 0))
	ch := &fakeNotifier{name: "test", minLevel: LevelInfo}
	m.Add(ch)

	m.SendDailySummary(context.Background(), models.DailySummary{Date: "2026-04-01"}, "")

	if len(ch.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(ch.sent))
	}
	if ch.sent[0].Level != LevelInfo {
		t.Errorf("Level = %s, want INFO", ch.sent[0].Level)
	}
	if ch.sent[0].Record != nil {
		t.Errorf("summary notification carries a record: %+v", ch.sent[0].Record)
	}
}

func TestNewManagerBuildsConfiguredChannels(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifications.Discord.WebhookURL = "https://discord.test/webhook"
	cfg.Notifications.Telegram.BotToken = "token"
	cfg.Notifications.Telegram.ChatID = "42"
	cfg.Notifications.Webhooks = []config.WebhookConfig{
		{URL: "https://hooks.test/a"},
		{URL: ""},
	}

	m, err := NewManager(cfg, time.UTC, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	// Discord, Telegram, and one webhook; the empty URL is skipped
	if len(m.notifiers) != 3 {
		t.Errorf("built %d channels, want 3", len(m.notifiers))
	}
}
