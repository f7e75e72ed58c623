package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/api"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/config"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/crawler"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/notifier"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/scheduler"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/scraper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runNoAPI   bool
	runVisible bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot daemon",
	Long: `Starts the scheduler (periodic crawl and daily summary jobs) and the
HTTP API, then blocks until SIGINT or SIGTERM. Shutdown waits for an
in-flight crawl to finish.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().BoolVar(&runNoAPI, "no-api", false, "disable the HTTP API server")
	runCmd.Flags().BoolVar(&runVisible, "visible", false, "show browser window (for debugging)")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.NTUT.Username == "" || cfg.NTUT.Password == "" {
		return fmt.Errorf("no credentials configured: set ntut.username/ntut.password in %s or BILLBOT_NTUT_USERNAME/BILLBOT_NTUT_PASSWORD", getConfigPath())
	}

	loc := location(cfg, logger)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	manager, err := notifier.NewManager(cfg, loc, logger.Named("notifier"))
	if err != nil {
		return fmt.Errorf("building notification channels: %w", err)
	}
	defer manager.Close()

	crawlService := crawler.NewService(newSessionFactory(cfg, logger), db, logger.Named("crawler"))

	sched, err := scheduler.New(cfg, db, crawlService, manager, nil, loc, logger.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	errCh := make(chan error, 1)
	var server *api.Server
	if !runNoAPI && cfg.GetAPIEnabled() {
		server = api.NewServer(cfg.GetAPIListen(), sched, db, loc, logger.Named("api"))
		go func() {
			errCh <- server.Start()
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("收到關閉信號", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server: %w", err)
		}
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API 伺服器關閉失敗", zap.Error(err))
		}
	}
	return nil
}

// newSessionFactory binds credentials and browser options into the
// per-crawl session constructor
func newSessionFactory(cfg *config.Config, logger *zap.Logger) crawler.SessionFactory {
	return func(ctx context.Context) (crawler.BalanceSource, error) {
		return scraper.NewSession(ctx, cfg.NTUT.Username, cfg.NTUT.Password,
			logger.Named("scraper"), scraper.WithVisible(runVisible))
	}
}
