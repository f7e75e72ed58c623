package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewCreatesNestedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "deep", "test.db")
	db, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	db.Close()
}

func TestInsertRecordAssignsIDAndTimestamp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	record := models.ElectricityRecord{Balance: 123.45}
	if err := db.InsertRecord(ctx, &record); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	if record.ID == 0 {
		t.Error("ID not assigned after insert")
	}
	if record.CreatedAt.IsZero() {
		t.Error("zero CreatedAt not filled on insert")
	}
}

func TestLatestBalance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.LatestBalance(ctx); err != nil || ok {
		t.Errorf("LatestBalance on empty db = ok %v, err %v; want false, nil", ok, err)
	}

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, balance := range []float64{500, 490, 480.5} {
		record := models.ElectricityRecord{
			Balance:   balance,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.InsertRecord(ctx, &record); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	balance, ok, err := db.LatestBalance(ctx)
	if err != nil {
		t.Fatalf("LatestBalance: %v", err)
	}
	if !ok || balance != 480.5 {
		t.Errorf("LatestBalance = %v, %v; want 480.5, true", balance, ok)
	}
}

func TestRecordsForDayBoundaries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Fatalf("loading timezone: %v", err)
	}

	// Local midnight 2026-04-02 is 2026-04-01 16:00 UTC: a reading at
	// 23:30 local on April 1 must not leak into April 2
	times := []time.Time{
		time.Date(2026, 4, 1, 23, 30, 0, 0, loc), // April 1 local
		time.Date(2026, 4, 2, 0, 30, 0, 0, loc),  // April 2 local
		time.Date(2026, 4, 2, 12, 0, 0, 0, loc),  // April 2 local
		time.Date(2026, 4, 3, 0, 15, 0, 0, loc),  // April 3 local
	}
	for i, ts := range times {
		record := models.ElectricityRecord{Balance: float64(100 + i), CreatedAt: ts.UTC()}
		if err := db.InsertRecord(ctx, &record); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	day := time.Date(2026, 4, 2, 0, 0, 0, 0, loc)
	records, err := db.RecordsForDay(ctx, day, loc)
	if err != nil {
		t.Fatalf("RecordsForDay: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records for April 2, want 2", len(records))
	}
	if records[0].Balance != 101 || records[1].Balance != 102 {
		t.Errorf("records = %v, %v; want 101, 102 ascending", records[0].Balance, records[1].Balance)
	}
	if !records[0].CreatedAt.Before(records[1].CreatedAt) {
		t.Error("records not in ascending time order")
	}
}

func TestLatestRecordsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		record := models.ElectricityRecord{
			Balance:   float64(i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.InsertRecord(ctx, &record); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	records, err := db.LatestRecords(ctx, 3)
	if err != nil {
		t.Fatalf("LatestRecords: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Balance != 4 || records[2].Balance != 2 {
		t.Errorf("records = %v..%v, want 4..2 descending", records[0].Balance, records[2].Balance)
	}
}

func TestInsertCrawlerLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	entries := []models.CrawlerLog{
		{Status: models.StatusSuccess, RecordsCount: 1, DurationSeconds: 12.3},
		{Status: models.StatusError, ErrorMessage: "登入失敗", DurationSeconds: 30.1},
		{Status: models.StatusPartial, ErrorMessage: "餘額記錄存入資料庫失敗"},
	}
	for i := range entries {
		if err := db.InsertCrawlerLog(ctx, &entries[i]); err != nil {
			t.Fatalf("InsertCrawlerLog(%d): %v", i, err)
		}
	}

	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM crawler_logs`).Scan(&count); err != nil {
		t.Fatalf("counting logs: %v", err)
	}
	if count != 3 {
		t.Errorf("crawler_logs rows = %d, want 3", count)
	}

	var errMsg *string
	if err := db.conn.QueryRow(
		`SELECT error_message FROM crawler_logs WHERE status = ?`, models.StatusSuccess,
	).Scan(&errMsg); err != nil {
		t.Fatalf("reading success row: %v", err)
	}
	if errMsg != nil {
		t.Errorf("success row error_message = %q, want NULL", *errMsg)
	}
}
