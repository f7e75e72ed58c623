package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/scraper"
	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	"go.uber.org/zap"
)

type fakeSource struct {
	loginErr      error
	balanceText   string
	balanceNumber float64
	screenshotErr error

	screenshots []string
	closed      bool
}

func (f *fakeSource) Login() error { return f.loginErr }

func (f *fakeSource) Balance() (string, float64) {
	return f.balanceText, f.balanceNumber
}

func (f *fakeSource) Screenshot(name string) (string, error) {
	f.screenshots = append(f.screenshots, name)
	if f.screenshotErr != nil {
		return "", f.screenshotErr
	}
	return "screenshots/" + name, nil
}

func (f *fakeSource) Close() { f.closed = true }

type fakeStore struct {
	insertRecordErr error
	insertLogErr    error

	records []models.ElectricityRecord
	logs    []models.CrawlerLog
}

func (f *fakeStore) InsertRecord(ctx context.Context, record *models.ElectricityRecord) error {
	if f.insertRecordErr != nil {
		return f.insertRecordErr
	}
	record.ID = len(f.records) + 1
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeStore) InsertCrawlerLog(ctx context.Context, entry *models.CrawlerLog) error {
	if f.insertLogErr != nil {
		return f.insertLogErr
	}
	f.logs = append(f.logs, *entry)
	return nil
}

func factoryFor(source *fakeSource, err error) SessionFactory {
	return func(ctx context.Context) (BalanceSource, error) {
		if err != nil {
			return nil, err
		}
		return source, nil
	}
}

func TestRunSuccess(t *testing.T) {
	source := &fakeSource{balanceText: "1234.5", balanceNumber: 1234.5}
	store := &fakeStore{}
	svc := NewService(factoryFor(source, nil), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusSuccess {
		t.Errorf("Status = %q, want success", result.Status)
	}
	if result.RecordsCount != 1 || len(result.Records) != 1 {
		t.Errorf("RecordsCount = %d, Records = %d, want 1 each", result.RecordsCount, len(result.Records))
	}
	if result.Records[0].Balance != 1234.5 {
		t.Errorf("record balance = %v, want 1234.5", result.Records[0].Balance)
	}
	if result.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", result.ErrorMessage)
	}
	if len(store.records) != 1 {
		t.Errorf("stored %d records, want 1", len(store.records))
	}
	if !source.closed {
		t.Error("session not closed")
	}
}

func TestRunLoginFailed(t *testing.T) {
	source := &fakeSource{loginErr: scraper.ErrLoginFailed}
	store := &fakeStore{}
	svc := NewService(factoryFor(source, nil), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusError {
		t.Errorf("Status = %q, want error", result.Status)
	}
	if result.ErrorMessage != "登入失敗" {
		t.Errorf("ErrorMessage = %q, want 登入失敗", result.ErrorMessage)
	}
	if result.RecordsCount != 0 {
		t.Errorf("RecordsCount = %d, want 0", result.RecordsCount)
	}
	if len(source.screenshots) != 1 || source.screenshots[0] != "login_timeout.png" {
		t.Errorf("screenshots = %v, want [login_timeout.png]", source.screenshots)
	}
	if len(store.records) != 0 {
		t.Errorf("stored %d records on login failure, want 0", len(store.records))
	}
}

func TestRunLoginUnexpectedError(t *testing.T) {
	source := &fakeSource{loginErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	store := &fakeStore{}
	svc := NewService(factoryFor(source, nil), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusError {
		t.Errorf("Status = %q, want error", result.Status)
	}
	if result.ErrorMessage != "net::ERR_CONNECTION_REFUSED" {
		t.Errorf("ErrorMessage = %q, want the verbatim error", result.ErrorMessage)
	}
	if len(source.screenshots) != 1 || source.screenshots[0] != "error_debug.png" {
		t.Errorf("screenshots = %v, want [error_debug.png]", source.screenshots)
	}
}

func TestRunScreenshotFailureDoesNotMaskLoginError(t *testing.T) {
	source := &fakeSource{loginErr: scraper.ErrLoginFailed, screenshotErr: errors.New("no display")}
	store := &fakeStore{}
	svc := NewService(factoryFor(source, nil), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusError || result.ErrorMessage != "登入失敗" {
		t.Errorf("result = %q/%q, want error/登入失敗", result.Status, result.ErrorMessage)
	}
}

func TestRunNoValidBalance(t *testing.T) {
	source := &fakeSource{balanceText: "無法取得餘額", balanceNumber: 0}
	store := &fakeStore{}
	svc := NewService(factoryFor(source, nil), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusPartial {
		t.Errorf("Status = %q, want partial", result.Status)
	}
	if result.ErrorMessage != "未取得有效餘額或資料庫未設定" {
		t.Errorf("ErrorMessage = %q", result.ErrorMessage)
	}
	if len(store.records) != 0 {
		t.Errorf("stored %d records without a valid balance, want 0", len(store.records))
	}
}

func TestRunPersistFailureIsPartial(t *testing.T) {
	source := &fakeSource{balanceText: "500", balanceNumber: 500}
	store := &fakeStore{insertRecordErr: errors.New("database is locked")}
	svc := NewService(factoryFor(source, nil), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusPartial {
		t.Errorf("Status = %q, want partial", result.Status)
	}
	if result.ErrorMessage != "餘額記錄存入資料庫失敗" {
		t.Errorf("ErrorMessage = %q", result.ErrorMessage)
	}
	if result.BalanceNumber != 500 {
		t.Errorf("BalanceNumber = %v, want the value that was read", result.BalanceNumber)
	}
}

func TestRunSessionFactoryFailure(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(factoryFor(nil, errors.New("chrome not found")), store, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusError {
		t.Errorf("Status = %q, want error", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Error("ErrorMessage empty, want the factory error")
	}
}

func TestRunEmitsExactlyOneLogPerInvocation(t *testing.T) {
	tests := []struct {
		name       string
		source     *fakeSource
		factoryErr error
		wantStatus string
	}{
		{"success", &fakeSource{balanceNumber: 100, balanceText: "100"}, nil, models.StatusSuccess},
		{"login failure", &fakeSource{loginErr: scraper.ErrLoginFailed}, nil, models.StatusError},
		{"no balance", &fakeSource{balanceNumber: 0}, nil, models.StatusPartial},
		{"factory failure", nil, errors.New("boom"), models.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewService(factoryFor(tt.source, tt.factoryErr), store, zap.NewNop())

			result := svc.Run(context.Background())

			if len(store.logs) != 1 {
				t.Fatalf("wrote %d log rows, want exactly 1", len(store.logs))
			}
			entry := store.logs[0]
			if entry.Status != tt.wantStatus {
				t.Errorf("log status = %q, want %q", entry.Status, tt.wantStatus)
			}
			if entry.DurationSeconds < 0 {
				t.Errorf("DurationSeconds = %v, want >= 0", entry.DurationSeconds)
			}
			if entry.DurationSeconds != result.DurationSeconds {
				t.Errorf("log duration %v != result duration %v", entry.DurationSeconds, result.DurationSeconds)
			}
		})
	}
}

func TestRunWithoutStoreIsPartial(t *testing.T) {
	source := &fakeSource{balanceText: "800", balanceNumber: 800}
	svc := NewService(factoryFor(source, nil), nil, zap.NewNop())

	result := svc.Run(context.Background())

	if result.Status != models.StatusPartial {
		t.Errorf("Status = %q, want partial without a store", result.Status)
	}
	if result.BalanceNumber != 800 {
		t.Errorf("BalanceNumber = %v, want 800", result.BalanceNumber)
	}
}
