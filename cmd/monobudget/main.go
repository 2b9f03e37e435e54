// Command monobudget runs the Telegram bot daemon: long polling, the cron
// scheduler and the optional ops HTTP listener.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"monobudget/internal/bot"
	"monobudget/internal/cache"
	"monobudget/internal/config"
	"monobudget/internal/ledger"
	"monobudget/internal/llm"
	"monobudget/internal/nlq"
	"monobudget/internal/ops"
	"monobudget/internal/ratelimit"
	"monobudget/internal/reportstore"
	"monobudget/internal/scheduler"
	"monobudget/internal/secrets"
	"monobudget/internal/syncer"
	"monobudget/internal/userstore"
	"monobudget/pkg/clock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "monobudget: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	clk := clock.NewReal()

	codec, err := secrets.NewCodec(cfg.MasterKey)
	if err != nil {
		return err
	}
	users, err := userstore.NewStore(filepath.Join(cfg.CacheDir, "users"), codec, clk, log)
	if err != nil {
		return err
	}
	led, err := ledger.NewStore(filepath.Join(cfg.CacheDir, "ledger"), clk, log)
	if err != nil {
		return err
	}
	httpCache, err := cache.New(filepath.Join(cfg.CacheDir, "http"), clk)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.New(filepath.Join(cfg.CacheDir, "ratelimit.json"), clk, nil)
	if err != nil {
		return err
	}
	memory := nlq.NewMemoryStore(filepath.Join(cfg.CacheDir, "nlq"), log)
	reports := reportstore.New(filepath.Join(cfg.CacheDir, "reports"), clk, log)

	var enricher *llm.Enricher
	if cfg.OpenAIAPIKey != "" {
		enricher, err = llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return err
		}
		log.Info().Str("model", cfg.OpenAIModel).Msg("llm enrichment enabled")
	} else {
		log.Info().Msg("llm enrichment disabled: no OPENAI_API_KEY")
	}

	reg := prometheus.NewRegistry()
	metrics := ops.NewMetrics(reg)

	svc := bot.NewService(bot.ServiceDeps{
		Users:   users,
		Ledger:  led,
		Reports: reports,
		Syncer:  syncer.New(led, clk, log),
		Cache:   httpCache,
		Limiter: limiter,
		Clock:   clk,
		Metrics: metrics,
		Enrich:  enricher,
		Logger:  log,
	})
	exec := nlq.NewExecutor(users, led, memory, clk, log)

	tgBot, err := bot.NewBot(cfg.TelegramBotToken, svc, exec, metrics, log)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg, users, tgBot, metrics, log)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	var opsSrv *ops.Server
	if cfg.OpsAddr != "" {
		opsSrv = ops.NewServer(cfg.OpsAddr, reg, log)
		go opsSrv.Start()
	}

	go tgBot.Start()
	log.Info().Str("cache_dir", cfg.CacheDir).Msg("monobudget started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	tgBot.Stop()
	sched.Stop()
	if opsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("ops shutdown failed")
		}
	}
	return nil
}
