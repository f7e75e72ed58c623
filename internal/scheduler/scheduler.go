package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/config"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/crawler"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/database"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/notifier"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/summary"
	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ChartRenderer turns a daily summary into an image artifact. Rendering
// is an external collaborator; a nil renderer means summaries go out
// without charts.
type ChartRenderer interface {
	RenderDailyChart(ctx context.Context, s models.DailySummary) (string, error)
}

// Scheduler owns the cron jobs: the periodic crawl and the daily usage
// summary. The process constructs exactly one and hands it to every
// consumer (CLI, HTTP API).
type Scheduler struct {
	cron     *cron.Cron
	crawler  *crawler.Service
	db       *database.DB
	notifier *notifier.Manager
	renderer ChartRenderer
	loc      *time.Location
	logger   *zap.Logger

	crawlCron    string
	summaryCron  string
	runOnStartup bool

	crawlEntry cron.EntryID
	running    bool
	startupWG  sync.WaitGroup
}

// New wires the scheduler's jobs without starting them
func New(
	cfg *config.Config,
	db *database.DB,
	crawlService *crawler.Service,
	manager *notifier.Manager,
	renderer ChartRenderer,
	loc *time.Location,
	logger *zap.Logger,
) (*Scheduler, error) {
	s := &Scheduler{
		crawler:      crawlService,
		db:           db,
		notifier:     manager,
		renderer:     renderer,
		loc:          loc,
		logger:       logger,
		crawlCron:    cfg.GetCrawlCron(),
		summaryCron:  cfg.GetSummaryCron(),
		runOnStartup: cfg.GetRunOnStartup(),
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	s.cron = cron.New(
		cron.WithLocation(loc),
		// At most one concurrent instance per job; an overlapping
		// trigger is skipped, not queued
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	entry, err := s.cron.AddFunc(s.crawlCron, s.scheduledCrawl)
	if err != nil {
		return nil, fmt.Errorf("invalid crawl cron expression %q: %w", s.crawlCron, err)
	}
	s.crawlEntry = entry

	if _, err := s.cron.AddFunc(s.summaryCron, s.scheduledSummary); err != nil {
		return nil, fmt.Errorf("invalid summary cron expression %q: %w", s.summaryCron, err)
	}

	logger.Info("已設定定時任務",
		zap.String("crawl_cron", s.crawlCron),
		zap.String("summary_cron", s.summaryCron))

	return s, nil
}

// Start begins scheduling and announces startup. When run_on_startup is
// set a first crawl fires immediately in the background.
func (s *Scheduler) Start(ctx context.Context) {
	if s.running {
		s.logger.Warn("調度器已在運行中")
		return
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("任務調度器啟動成功")

	s.notifier.SendStartup(ctx)

	if s.runOnStartup {
		s.logger.Info("啟動時執行一次爬取任務")
		s.startupWG.Add(1)
		go func() {
			defer s.startupWG.Done()
			s.scheduledCrawl()
		}()
	}
}

// Stop halts new triggers and waits for any in-flight job to reach its
// terminal state before returning.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.startupWG.Wait()
	s.running = false
	s.logger.Info("任務調度器已停止")
}

// RunCrawl executes one crawl cycle synchronously and routes its outcome
func (s *Scheduler) RunCrawl(ctx context.Context) *crawler.Result {
	s.logger.Info("開始執行爬取任務")
	result := s.crawler.Run(ctx)
	s.routeCrawlResult(ctx, result)
	return result
}

func (s *Scheduler) scheduledCrawl() {
	s.RunCrawl(context.Background())
}

func (s *Scheduler) scheduledSummary() {
	// Summarize yesterday: its readings are complete by the time the
	// morning job fires
	yesterday := time.Now().In(s.loc).AddDate(0, 0, -1)
	if _, err := s.RunDailySummary(context.Background(), yesterday); err != nil {
		s.logger.Error("每日摘要任務失敗", zap.Error(err))
	}
}

// routeCrawlResult sends the outcome-dependent notification. A partial
// outcome never fires the balance alert, even when a value was read:
// only a fully persisted reading is treated as a trustworthy balance.
func (s *Scheduler) routeCrawlResult(ctx context.Context, result *crawler.Result) {
	switch result.Status {
	case models.StatusSuccess:
		s.logger.Info("爬取任務成功完成，餘額已儲存")
		if len(result.Records) > 0 {
			record := result.Records[0]
			s.notifier.SendBalance(ctx, &record)
		}

	case models.StatusPartial:
		s.notifier.SendPartialSuccess(ctx, result.RecordsCount, result.DurationSeconds)

	case models.StatusError:
		s.notifier.SendCrawlError(ctx, result.ErrorMessage, result.DurationSeconds)
	}
}

// RunDailySummary computes the consumption report for one calendar day,
// renders the chart when a renderer is available, and routes the report
func (s *Scheduler) RunDailySummary(ctx context.Context, day time.Time) (models.DailySummary, error) {
	records, err := s.db.RecordsForDay(ctx, day, s.loc)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("querying readings for %s: %w", day.Format("2006-01-02"), err)
	}

	report := summary.Summarize(day, s.loc, records)
	s.logger.Info("每日摘要已計算",
		zap.String("date", report.Date),
		zap.Float64("total_usage", report.TotalUsage),
		zap.Int("hourly_count", len(report.HourlyUsage)))

	var chartPath string
	if s.renderer != nil && len(report.HourlyUsage) > 0 {
		chartPath, err = s.renderer.RenderDailyChart(ctx, report)
		if err != nil {
			// The report still goes out without the artifact
			s.logger.Error("生成圖表失敗", zap.Error(err))
			chartPath = ""
		}
	}

	s.notifier.SendDailySummary(ctx, report, chartPath)
	return report, nil
}

// Status describes the scheduler for the status API
func (s *Scheduler) Status() map[string]any {
	status := map[string]any{
		"is_running": s.running,
		"jobs_count": len(s.cron.Entries()),
	}
	if next := s.cron.Entry(s.crawlEntry).Next; !next.IsZero() {
		status["next_run_time"] = next.In(s.loc).Format(time.RFC3339)
	}
	return status
}
