package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/database"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/scheduler"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/summary"
	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Server exposes the daemon's state over HTTP. The crawl endpoint runs a
// full cycle synchronously, so its latency is the crawl's latency.
type Server struct {
	sched  *scheduler.Scheduler
	db     *database.DB
	loc    *time.Location
	logger *zap.Logger
	http   *http.Server
}

func NewServer(addr string, sched *scheduler.Scheduler, db *database.DB, loc *time.Location, logger *zap.Logger) *Server {
	s := &Server{
		sched:  sched,
		db:     db,
		loc:    loc,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Generous timeout: /balance drives a real browser session
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/balance", s.handleBalance)
		r.Get("/status", s.handleStatus)
		r.Get("/records", s.handleRecords)
		r.Get("/summary/{date}", s.handleSummary)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("API 伺服器啟動", zap.String("listen", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().In(s.loc).Format(time.RFC3339),
	})
}

// handleBalance runs one crawl cycle and maps the outcome onto the
// response code: success 200, partial 207, error 500.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	result := s.sched.RunCrawl(r.Context())

	code := http.StatusInternalServerError
	switch result.Status {
	case models.StatusSuccess:
		code = http.StatusOK
	case models.StatusPartial:
		code = http.StatusMultiStatus
	}
	s.writeJSON(w, code, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"scheduler": s.sched.Status(),
		"timestamp": time.Now().In(s.loc).Format(time.RFC3339),
	}

	if balance, ok, err := s.db.LatestBalance(r.Context()); err != nil {
		s.logger.Error("查詢最新餘額失敗", zap.Error(err))
	} else if ok {
		body["latest_balance"] = balance
	}

	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.LatestRecords(r.Context(), 24)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "查詢餘額記錄失敗")
		s.logger.Error("查詢餘額記錄失敗", zap.Error(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	day, err := time.ParseInLocation(dateLayout, raw, s.loc)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "日期格式錯誤，請使用 YYYY-MM-DD")
		return
	}

	// Read-only: computes the report without routing notifications
	records, err := s.db.RecordsForDay(r.Context(), day, s.loc)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "產生每日摘要失敗")
		s.logger.Error("產生每日摘要失敗", zap.String("date", raw), zap.Error(err))
		return
	}
	s.writeJSON(w, http.StatusOK, summary.Summarize(day, s.loc, records))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("寫入回應失敗", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
