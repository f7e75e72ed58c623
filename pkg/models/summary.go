package models

// HourlyUsage is the consumption inferred between two consecutive readings,
// attributed to the later reading's timestamp.
type HourlyUsage struct {
	Time    string  `json:"time"` // HH:MM
	Usage   float64 `json:"usage"`
	Balance float64 `json:"balance"`
}

// DailySummary is a derived report for one calendar day, recomputed on
// demand from the day's readings and never persisted on its own.
type DailySummary struct {
	Date         string        `json:"date"` // YYYY-MM-DD
	TotalUsage   float64       `json:"total_usage"`
	StartBalance float64       `json:"start_balance"`
	EndBalance   float64       `json:"end_balance"`
	HourlyUsage  []HourlyUsage `json:"hourly_usage"`
}
