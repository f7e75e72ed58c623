package summary

import (
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
)

// Summarize converts one calendar day's ordered balance readings into a
// consumption report. It is a pure function of its inputs.
//
// The site only ever reports a point-in-time remaining balance, so
// consumption is inferred from the delta between consecutive readings.
// Deltas are clamped at zero: a balance increase is a top-up, not
// negative usage.
func Summarize(date time.Time, loc *time.Location, records []models.ElectricityRecord) models.DailySummary {
	result := models.DailySummary{
		Date:        date.Format("2006-01-02"),
		HourlyUsage: []models.HourlyUsage{},
	}

	// Fewer than two readings is not enough to compute any delta
	if len(records) < 2 {
		return result
	}

	start := records[0].Balance
	end := records[len(records)-1].Balance

	result.StartBalance = start
	result.EndBalance = end
	result.TotalUsage = clampUsage(start - end)

	for i := 1; i < len(records); i++ {
		prev := records[i-1]
		curr := records[i]

		result.HourlyUsage = append(result.HourlyUsage, models.HourlyUsage{
			Time:    curr.CreatedAt.In(loc).Format("15:04"),
			Usage:   clampUsage(prev.Balance - curr.Balance),
			Balance: curr.Balance,
		})
	}

	return result
}

func clampUsage(delta float64) float64 {
	if delta < 0 {
		return 0
	}
	return delta
}
