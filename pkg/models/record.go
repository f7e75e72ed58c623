package models

import "time"

// Crawl outcome statuses recorded in crawler_logs.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ElectricityRecord is one timestamped balance observation
type ElectricityRecord struct {
	ID        int       `json:"id,omitempty"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// CrawlerLog records the outcome of a single crawl attempt.
// Rows are append-only and never mutated.
type CrawlerLog struct {
	ID              int       `json:"id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"` // success, partial, error
	RecordsCount    int       `json:"records_count"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
}
