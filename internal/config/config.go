// Package config loads process settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings is the full recognized environment. Fields beyond the two
// required tokens have working defaults.
type Settings struct {
	TelegramBotToken string
	MasterKey        string

	OpenAIAPIKey string
	OpenAIModel  string

	CacheDir string
	LogLevel string

	SchedTZ               string
	SchedWeeklyCron       string
	SchedMonthlyCron      string
	SchedDailyRefreshCron string
	SchedRefreshMinutes   int
	SchedTestMode         bool

	AutoRefreshJitterMinSec int
	AutoRefreshJitterMaxSec int

	// OpsAddr serves /healthz and /metrics; empty disables the listener.
	OpsAddr string
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load reads .env when present, then the environment. Returns an error
// when a required value is missing.
func Load() (*Settings, error) {
	// missing .env is the normal production case
	_ = godotenv.Load()

	s := &Settings{
		TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		MasterKey:        getenv("MASTER_KEY", ""),

		OpenAIAPIKey: getenv("OPENAI_API_KEY", ""),
		OpenAIModel:  getenv("OPENAI_MODEL", "gpt-4o-mini"),

		CacheDir: getenv("CACHE_DIR", ".cache"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		SchedTZ:               getenv("SCHED_TZ", "Europe/Kyiv"),
		SchedWeeklyCron:       getenv("SCHED_WEEKLY_CRON", "0 9 * * 1"),
		SchedMonthlyCron:      getenv("SCHED_MONTHLY_CRON", "0 9 1 * *"),
		SchedDailyRefreshCron: getenv("SCHED_DAILY_REFRESH_CRON", "0 7 * * *"),
		SchedRefreshMinutes:   getenvInt("SCHED_REFRESH_MINUTES", 120),
		SchedTestMode:         getenv("SCHED_TEST_MODE", "") == "1",

		AutoRefreshJitterMinSec: getenvInt("AUTO_REFRESH_JITTER_MIN", 0),
		AutoRefreshJitterMaxSec: getenvInt("AUTO_REFRESH_JITTER_MAX", 0),

		OpsAddr: getenv("OPS_ADDR", ""),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	// dev mode compresses every trigger to minutes
	if s.SchedTestMode {
		s.SchedWeeklyCron = "*/2 * * * *"
		s.SchedMonthlyCron = "*/3 * * * *"
		s.SchedDailyRefreshCron = "*/2 * * * *"
		s.SchedRefreshMinutes = 1
	}

	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create cache dir: %w", err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.TelegramBotToken == "" {
		return fmt.Errorf("config: TELEGRAM_BOT_TOKEN is required")
	}
	if s.MasterKey == "" {
		return fmt.Errorf("config: MASTER_KEY is required")
	}
	if s.SchedRefreshMinutes <= 0 {
		return fmt.Errorf("config: SCHED_REFRESH_MINUTES must be positive")
	}
	if s.AutoRefreshJitterMaxSec < s.AutoRefreshJitterMinSec {
		return fmt.Errorf("config: AUTO_REFRESH_JITTER_MAX below AUTO_REFRESH_JITTER_MIN")
	}
	return nil
}
