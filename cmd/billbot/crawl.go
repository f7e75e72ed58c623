package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/crawler"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/notifier"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	crawlVisible bool
	crawlNotify  bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a single crawl cycle",
	Long: `Logs into the aotech portal, reads the current electricity balance and
stores it in the local SQLite database. With --notify the configured
notification channels receive the outcome as well.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlVisible, "visible", false, "show browser window (for debugging)")
	crawlCmd.Flags().BoolVar(&crawlNotify, "notify", false, "route the outcome to notification channels")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Crawl started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

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
	runVisible = crawlVisible

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	crawlService := crawler.NewService(newSessionFactory(cfg, logger), db, logger.Named("crawler"))

	ctx := context.Background()
	var result *crawler.Result
	if crawlNotify {
		manager, err := notifier.NewManager(cfg, loc, logger.Named("notifier"))
		if err != nil {
			return fmt.Errorf("building notification channels: %w", err)
		}
		defer manager.Close()

		sched, err := scheduler.New(cfg, db, crawlService, manager, nil, loc, logger.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("building scheduler: %w", err)
		}
		result = sched.RunCrawl(ctx)
	} else {
		result = crawlService.Run(ctx)
	}

	fmt.Printf("\nStatus:   %s\n", result.Status)
	fmt.Printf("Duration: %.2fs\n", result.DurationSeconds)
	if result.BalanceText != "" {
		fmt.Printf("Balance:  %s (%.2f)\n", result.BalanceText, result.BalanceNumber)
	}
	if result.ErrorMessage != "" {
		fmt.Printf("Message:  %s\n", result.ErrorMessage)
	}
	return nil
}
