package notifier

import (
	"context"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
)

// botName appears in every channel's payload footer
const botName = "NTUT電費帳單機器人"

const defaultTimeout = 30 * time.Second

// Notification is one routed event. It is constructed, delivered, and
// discarded; nothing here is persisted.
type Notification struct {
	Title   string
	Message string
	Level   Level
	// Record is the single balance reading attached to balance alerts,
	// nil for everything else
	Record *models.ElectricityRecord
}

// Notifier is one delivery channel. Implementations shape the generic
// notification into their own wire format.
type Notifier interface {
	Name() string
	MinLevel() Level
	Send(ctx context.Context, n Notification) error
	// SendChart attaches a rendered image to an already-decided
	// notification. Channels without file support may no-op.
	SendChart(ctx context.Context, chartPath, description string) error
}

// formatRecordTime renders a reading timestamp in the local timezone
func formatRecordTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "未知時間"
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
