package main

import (
	"log"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/internal/config"
	"github.com/brianchou452/ntut-electricity-bill-bot/internal/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "billbot",
	Short: "Monitor the NTUT dorm electricity balance",
	Long: `billbot periodically scrapes the NTUT dormitory electricity balance from
the aotech portal, stores readings in a local SQLite database, and routes
notifications (Discord, Telegram, webhooks, MQTT) on every crawl outcome.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file with env overrides applied
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection, creating the schema if needed
func openDB(cfg *config.Config) (*database.DB, error) {
	path := dbPath
	if path == "" {
		path = cfg.GetDBPath()
	}
	return database.New(path)
}

// newLogger builds the process logger
func newLogger() *zap.Logger {
	logConf := zap.NewProductionConfig()
	logConf.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	logConf.DisableCaller = true
	if verbose {
		logConf.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logConf.Build()
	if err != nil {
		log.Fatal("error building zap logger", err)
	}
	return logger
}

// location resolves the configured timezone once per command
func location(cfg *config.Config, logger *zap.Logger) *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("時區設定無效，改用 UTC",
			zap.String("timezone", cfg.GetTimezone()), zap.Error(err))
		return time.UTC
	}
	return loc
}
