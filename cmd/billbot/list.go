package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored balance readings",
	Long:  `Displays the most recent balance readings from the database, newest first.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 24, "maximum number of readings to show")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	loc := location(cfg, logger)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	records, err := db.LatestRecords(context.Background(), listLimit)
	if err != nil {
		return fmt.Errorf("listing readings: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No readings found")
		return nil
	}

	fmt.Println("\nBalance Readings:")
	fmt.Println("----------------------------------------")
	fmt.Printf("%-20s  %10s\n", "Time", "Balance")
	fmt.Println("----------------------------------------")
	for _, record := range records {
		fmt.Printf("%-20s  %10.2f\n", record.CreatedAt.In(loc).Format("2006-01-02 15:04:05"), record.Balance)
	}
	fmt.Printf("\nTotal: %d readings\n", len(records))
	return nil
}
