package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/scraper"
	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	"go.uber.org/zap"
)

// BalanceSource is one live page-automation session against the billing
// site. A fresh source is opened per crawl attempt and always closed.
type BalanceSource interface {
	Login() error
	Balance() (text string, numeric float64)
	Screenshot(name string) (string, error)
	Close()
}

// SessionFactory opens a BalanceSource for one attempt
type SessionFactory func(ctx context.Context) (BalanceSource, error)

// Store is the persistence surface the crawler needs
type Store interface {
	InsertRecord(ctx context.Context, record *models.ElectricityRecord) error
	InsertCrawlerLog(ctx context.Context, entry *models.CrawlerLog) error
}

// Result is the outcome contract of one crawl attempt
type Result struct {
	Status          string                     `json:"status"`
	RecordsCount    int                        `json:"records_count"`
	ErrorMessage    string                     `json:"error_message,omitempty"`
	DurationSeconds float64                    `json:"duration_seconds"`
	BalanceText     string                     `json:"balance_text,omitempty"`
	BalanceNumber   float64                    `json:"balance_number"`
	Records         []models.ElectricityRecord `json:"records"`
}

// Service runs the login → extract → persist cycle and classifies the
// attempt as success, partial, or error. It never returns an error:
// every fault is folded into the Result.
type Service struct {
	newSession SessionFactory
	store      Store
	logger     *zap.Logger
}

// NewService creates a crawl service. store may be nil, in which case
// every reading degrades the attempt to partial.
func NewService(newSession SessionFactory, store Store, logger *zap.Logger) *Service {
	return &Service{
		newSession: newSession,
		store:      store,
		logger:     logger,
	}
}

// Run executes one full crawl cycle. Exactly one crawler log row is
// emitted per invocation, on every path.
func (s *Service) Run(ctx context.Context) *Result {
	start := time.Now()
	result := &Result{
		Status:  models.StatusError,
		Records: []models.ElectricityRecord{},
	}

	defer func() {
		result.DurationSeconds = time.Since(start).Seconds()
		s.writeLog(ctx, result)
	}()

	session, err := s.newSession(ctx)
	if err != nil {
		result.ErrorMessage = err.Error()
		s.logger.Error("爬蟲任務執行失敗", zap.Error(err))
		return result
	}
	defer session.Close()

	if err := session.Login(); err != nil {
		if errors.Is(err, scraper.ErrLoginFailed) {
			result.ErrorMessage = "登入失敗"
			s.captureDiagnostic(session, "login_timeout.png")
		} else {
			result.ErrorMessage = err.Error()
			s.captureDiagnostic(session, "error_debug.png")
		}
		s.logger.Error("登入失敗", zap.Error(err))
		return result
	}

	balanceText, balanceNumber := session.Balance()
	result.BalanceText = balanceText
	result.BalanceNumber = balanceNumber
	s.logger.Info("登入成功，已取得餘額",
		zap.String("balance", balanceText), zap.Float64("number", balanceNumber))

	if balanceNumber <= 0 || s.store == nil {
		result.Status = models.StatusPartial
		result.ErrorMessage = "未取得有效餘額或資料庫未設定"
		s.logger.Warn("未取得有效餘額或資料庫未設定")
		return result
	}

	record := models.ElectricityRecord{
		Balance:   balanceNumber,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertRecord(ctx, &record); err != nil {
		// The value was obtained; only persistence failed
		result.Status = models.StatusPartial
		result.ErrorMessage = "餘額記錄存入資料庫失敗"
		s.logger.Error("餘額記錄存入資料庫失敗", zap.Error(err))
		return result
	}

	result.Status = models.StatusSuccess
	result.RecordsCount = 1
	result.Records = []models.ElectricityRecord{record}
	s.logger.Info("餘額記錄已存入資料庫", zap.Float64("balance", balanceNumber))

	return result
}

// captureDiagnostic takes a best-effort screenshot. Its own failure is
// logged and swallowed so it never masks the original fault.
func (s *Service) captureDiagnostic(session BalanceSource, name string) {
	if path, err := session.Screenshot(name); err != nil {
		s.logger.Warn("截圖失敗", zap.Error(err))
	} else {
		s.logger.Info("已儲存診斷截圖", zap.String("path", path))
	}
}

// writeLog appends the crawler log row for this attempt
func (s *Service) writeLog(ctx context.Context, result *Result) {
	if s.store == nil {
		s.logger.Warn("資料庫未設定，跳過爬蟲日誌寫入")
		return
	}

	entry := models.CrawlerLog{
		Timestamp:       time.Now().UTC(),
		Status:          result.Status,
		RecordsCount:    result.RecordsCount,
		ErrorMessage:    result.ErrorMessage,
		DurationSeconds: result.DurationSeconds,
	}
	if err := s.store.InsertCrawlerLog(ctx, &entry); err != nil {
		s.logger.Error("插入爬蟲日誌失敗", zap.Error(err))
	}
}
