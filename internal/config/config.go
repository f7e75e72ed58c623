package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	NTUT          NTUTConfig         `yaml:"ntut"`
	Schedule      ScheduleConfig     `yaml:"schedule,omitempty"`
	Database      DatabaseConfig     `yaml:"database,omitempty"`
	Notifications NotificationConfig `yaml:"notifications,omitempty"`
	API           APIConfig          `yaml:"api,omitempty"`
}

// NTUTConfig holds credentials for the campus billing site
type NTUTConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ScheduleConfig holds the cron schedules and timezone
type ScheduleConfig struct {
	CrawlCron    string `yaml:"crawl_cron,omitempty"`     // default "0 * * * *"
	SummaryCron  string `yaml:"summary_cron,omitempty"`   // default "0 8 * * *"
	RunOnStartup *bool  `yaml:"run_on_startup,omitempty"` // default true
	Timezone     string `yaml:"timezone,omitempty"`       // default "Asia/Taipei"
}

// DatabaseConfig holds the SQLite database location
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"` // default "data/electricity_bot.db"
}

// NotificationConfig holds quiet hours, the low-balance threshold,
// and the configured channels
type NotificationConfig struct {
	StartTime        string          `yaml:"start_time,omitempty"`        // default "06:00"
	EndTime          string          `yaml:"end_time,omitempty"`          // default "23:00"
	BalanceThreshold float64         `yaml:"balance_threshold,omitempty"` // default 100.0
	Discord          DiscordConfig   `yaml:"discord,omitempty"`
	Telegram         TelegramConfig  `yaml:"telegram,omitempty"`
	Webhooks         []WebhookConfig `yaml:"webhooks,omitempty"`
	MQTT             MQTTConfig      `yaml:"mqtt,omitempty"`
}

// DiscordConfig holds a Discord webhook channel
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
	MinLevel   string `yaml:"min_level,omitempty"` // default "info"
}

// TelegramConfig holds a Telegram bot channel
type TelegramConfig struct {
	BotToken string `yaml:"bot_token,omitempty"`
	ChatID   string `yaml:"chat_id,omitempty"`
	MinLevel string `yaml:"min_level,omitempty"`
}

// WebhookConfig holds a generic JSON webhook channel
type WebhookConfig struct {
	URL      string `yaml:"url"`
	MinLevel string `yaml:"min_level,omitempty"`
}

// MQTTConfig holds an MQTT channel (Home Assistant style)
type MQTTConfig struct {
	Broker   string `yaml:"broker,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Topic    string `yaml:"topic,omitempty"` // default "billbot/notifications"
	MinLevel string `yaml:"min_level,omitempty"`
}

// APIConfig holds the optional HTTP API surface served by the daemon
type APIConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // default true
	Listen  string `yaml:"listen,omitempty"`  // default ":8000"
}

// envOverrides are secrets that may be supplied via BILLBOT_* environment
// variables instead of the config file
type envOverrides struct {
	NtutUsername      string `split_words:"true"`
	NtutPassword      string `split_words:"true"`
	DiscordWebhookURL string `envconfig:"discord_webhook_url"`
	TelegramBotToken  string `split_words:"true"`
	TelegramChatID    string `envconfig:"telegram_chat_id"`
	MqttPassword      string `split_words:"true"`
}

// Load reads the config file and applies environment overrides
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing file is fine, env vars may carry everything needed
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("BILLBOT", &env); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}
	cfg.applyEnv(env)

	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if env.NtutUsername != "" {
		c.NTUT.Username = env.NtutUsername
	}
	if env.NtutPassword != "" {
		c.NTUT.Password = env.NtutPassword
	}
	if env.DiscordWebhookURL != "" {
		c.Notifications.Discord.WebhookURL = env.DiscordWebhookURL
	}
	if env.TelegramBotToken != "" {
		c.Notifications.Telegram.BotToken = env.TelegramBotToken
	}
	if env.TelegramChatID != "" {
		c.Notifications.Telegram.ChatID = env.TelegramChatID
	}
	if env.MqttPassword != "" {
		c.Notifications.MQTT.Password = env.MqttPassword
	}
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Default returns a starter config with the defaults written out
func Default() *Config {
	runOnStartup := true
	return &Config{
		Schedule: ScheduleConfig{
			CrawlCron:    "0 * * * *",
			SummaryCron:  "0 8 * * *",
			RunOnStartup: &runOnStartup,
			Timezone:     "Asia/Taipei",
		},
		Database: DatabaseConfig{
			Path: "data/electricity_bot.db",
		},
		Notifications: NotificationConfig{
			StartTime:        "06:00",
			EndTime:          "23:00",
			BalanceThreshold: 100.0,
		},
		API: APIConfig{
			Listen: ":8000",
		},
	}
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetCrawlCron returns the crawl schedule with a default of hourly
func (c *Config) GetCrawlCron() string {
	if c.Schedule.CrawlCron == "" {
		return "0 * * * *"
	}
	return c.Schedule.CrawlCron
}

// GetSummaryCron returns the daily summary schedule, 08:00 by default
func (c *Config) GetSummaryCron() string {
	if c.Schedule.SummaryCron == "" {
		return "0 8 * * *"
	}
	return c.Schedule.SummaryCron
}

// GetRunOnStartup reports whether a crawl fires when the daemon starts (default true)
func (c *Config) GetRunOnStartup() bool {
	if c.Schedule.RunOnStartup == nil {
		return true
	}
	return *c.Schedule.RunOnStartup
}

// GetTimezone returns the configured timezone name
func (c *Config) GetTimezone() string {
	if c.Schedule.Timezone == "" {
		return "Asia/Taipei"
	}
	return c.Schedule.Timezone
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.GetTimezone(), err)
	}
	return loc, nil
}

// GetDBPath returns the database file path
func (c *Config) GetDBPath() string {
	if c.Database.Path == "" {
		return "data/electricity_bot.db"
	}
	return c.Database.Path
}

// GetNotificationStartTime returns the start of the success-alert window (HH:MM)
func (c *Config) GetNotificationStartTime() string {
	if c.Notifications.StartTime == "" {
		return "06:00"
	}
	return c.Notifications.StartTime
}

// GetNotificationEndTime returns the end of the success-alert window (HH:MM)
func (c *Config) GetNotificationEndTime() string {
	if c.Notifications.EndTime == "" {
		return "23:00"
	}
	return c.Notifications.EndTime
}

// GetBalanceThreshold returns the low-balance alert threshold
func (c *Config) GetBalanceThreshold() float64 {
	if c.Notifications.BalanceThreshold <= 0 {
		return 100.0
	}
	return c.Notifications.BalanceThreshold
}

// GetMQTTTopic returns the MQTT notification topic
func (c *Config) GetMQTTTopic() string {
	if c.Notifications.MQTT.Topic == "" {
		return "billbot/notifications"
	}
	return c.Notifications.MQTT.Topic
}

// GetAPIEnabled reports whether the daemon serves the HTTP API (default true)
func (c *Config) GetAPIEnabled() bool {
	if c.API.Enabled == nil {
		return true
	}
	return *c.API.Enabled
}

// GetAPIListen returns the HTTP API listen address
func (c *Config) GetAPIListen() string {
	if c.API.Listen == "" {
		return ":8000"
	}
	return c.API.Listen
}
