package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/summary"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [date]",
	Short: "Show the daily usage summary for a date",
	Long: `Computes the usage summary (total consumption, start and end balance,
hourly breakdown) for the given date in YYYY-MM-DD form. Without an
argument, yesterday is summarized.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	loc := location(cfg, logger)

	day := time.Now().In(loc).AddDate(0, 0, -1)
	if len(args) == 1 {
		day, err = time.ParseInLocation("2006-01-02", args[0], loc)
		if err != nil {
			return fmt.Errorf("invalid date %q: use YYYY-MM-DD", args[0])
		}
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	records, err := db.RecordsForDay(context.Background(), day, loc)
	if err != nil {
		return fmt.Errorf("querying readings: %w", err)
	}

	report := summary.Summarize(day, loc, records)

	fmt.Printf("\nDaily Summary for %s\n", report.Date)
	fmt.Println("----------------------------------------")
	fmt.Printf("Readings:       %d\n", len(records))
	fmt.Printf("Total usage:    %.2f kWh\n", report.TotalUsage)
	fmt.Printf("Start balance:  %.2f\n", report.StartBalance)
	fmt.Printf("End balance:    %.2f\n", report.EndBalance)

	if len(report.HourlyUsage) == 0 {
		fmt.Println("\nNot enough readings for an hourly breakdown")
		return nil
	}

	fmt.Println("\nHourly breakdown:")
	fmt.Printf("%-8s  %10s  %10s\n", "Time", "Usage", "Balance")
	fmt.Println("----------------------------------------")
	for _, h := range report.HourlyUsage {
		fmt.Printf("%-8s  %10.2f  %10.2f\n", h.Time, h.Usage, h.Balance)
	}
	return nil
}
