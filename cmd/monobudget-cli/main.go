// Command monobudget-cli is the developer console for a monobudget cache
// directory. It talks to the same stores as the daemon, so everything it
// prints is exactly what the bot would answer.
//
// Commands:
//
//	status  --user N                 Show a user's config and cache freshness
//	refresh --user N [--days 32]     Sync from Monobank and rebuild reports
//	report  --user N --period week   Print the cached facts JSON
//	nlq     --user N "<query>"       Run one natural-language query
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"monobudget/internal/bot"
	"monobudget/internal/cache"
	"monobudget/internal/ledger"
	"monobudget/internal/nlq"
	"monobudget/internal/ratelimit"
	"monobudget/internal/reportstore"
	"monobudget/internal/secrets"
	"monobudget/internal/syncer"
	"monobudget/internal/userstore"
	"monobudget/pkg/clock"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = runStatus(args)
	case "refresh":
		err = runRefresh(args)
	case "report":
		err = runReport(args)
	case "nlq":
		err = runNLQ(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "monobudget-cli: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("monobudget-cli — developer console")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  monobudget-cli <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  status  --user N                 Show config and cache freshness")
	fmt.Println("  refresh --user N [--days 32]     Sync and rebuild report caches")
	fmt.Println("  report  --user N --period week   Print cached facts JSON")
	fmt.Println("  nlq     --user N \"<query>\"       Run one natural-language query")
	fmt.Println()
	fmt.Println("Environment: MASTER_KEY (required), CACHE_DIR (default .cache)")
}

// env is the CLI's slice of the daemon configuration: it never needs the
// Telegram token.
type env struct {
	masterKey string
	cacheDir  string
}

func loadEnv() (*env, error) {
	_ = godotenv.Load()
	e := &env{
		masterKey: strings.TrimSpace(os.Getenv("MASTER_KEY")),
		cacheDir:  strings.TrimSpace(os.Getenv("CACHE_DIR")),
	}
	if e.masterKey == "" {
		return nil, fmt.Errorf("MASTER_KEY is required")
	}
	if e.cacheDir == "" {
		e.cacheDir = ".cache"
	}
	return e, nil
}

type world struct {
	users   *userstore.Store
	ledger  *ledger.Store
	reports *reportstore.Store
	memory  *nlq.MemoryStore
	svc     *bot.Service
	clock   clock.Clock
}

func openWorld(e *env) (*world, error) {
	clk := clock.NewReal()
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	codec, err := secrets.NewCodec(e.masterKey)
	if err != nil {
		return nil, err
	}
	users, err := userstore.NewStore(filepath.Join(e.cacheDir, "users"), codec, clk, log)
	if err != nil {
		return nil, err
	}
	led, err := ledger.NewStore(filepath.Join(e.cacheDir, "ledger"), clk, log)
	if err != nil {
		return nil, err
	}
	httpCache, err := cache.New(filepath.Join(e.cacheDir, "http"), clk)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(filepath.Join(e.cacheDir, "ratelimit.json"), clk, nil)
	if err != nil {
		return nil, err
	}
	reports := reportstore.New(filepath.Join(e.cacheDir, "reports"), clk, log)

	svc := bot.NewService(bot.ServiceDeps{
		Users:   users,
		Ledger:  led,
		Reports: reports,
		Syncer:  syncer.New(led, clk, log),
		Cache:   httpCache,
		Limiter: limiter,
		Clock:   clk,
		Logger:  log,
	})

	return &world{
		users:   users,
		ledger:  led,
		reports: reports,
		memory:  nlq.NewMemoryStore(filepath.Join(e.cacheDir, "nlq"), log),
		svc:     svc,
		clock:   clk,
	}, nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	userID := fs.Int64("user", 0, "telegram user id")
	_ = fs.Parse(args)
	if *userID == 0 {
		return fmt.Errorf("--user is required")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	w, err := openWorld(e)
	if err != nil {
		return err
	}

	cfg, err := w.users.Load(*userID)
	if err != nil {
		return err
	}
	fmt.Printf("user:      %d\n", cfg.TelegramUserID)
	fmt.Printf("token:     %t\n", cfg.MonoToken != "")
	fmt.Printf("accounts:  %v\n", cfg.SelectedAccountIDs)
	fmt.Printf("chat:      %d\n", cfg.ChatID)
	fmt.Printf("autojobs:  %t\n", cfg.AutojobsEnabled)
	for _, period := range []string{reportstore.PeriodToday, reportstore.PeriodWeek, reportstore.PeriodMonth} {
		ts, err := w.reports.LastGeneratedAt(*userID, period)
		if err != nil || ts == 0 {
			fmt.Printf("cache %-6s  never\n", period)
			continue
		}
		fmt.Printf("cache %-6s  %s\n", period, time.Unix(ts, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

func runRefresh(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	userID := fs.Int64("user", 0, "telegram user id")
	days := fs.Int("days", 32, "days back to sync")
	_ = fs.Parse(args)
	if *userID == 0 {
		return fmt.Errorf("--user is required")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	w, err := openWorld(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	res, err := w.svc.Refresh(ctx, *userID, *days)
	if err != nil {
		return err
	}
	fmt.Printf("accounts=%d requests=%d appended=%d\n", res.Accounts, res.FetchedRequests, res.Appended)
	return nil
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	userID := fs.Int64("user", 0, "telegram user id")
	period := fs.String("period", reportstore.PeriodWeek, "today|week|month")
	_ = fs.Parse(args)
	if *userID == 0 {
		return fmt.Errorf("--user is required")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	w, err := openWorld(e)
	if err != nil {
		return err
	}

	stored, err := w.reports.Load(*userID, *period)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("no cached %s report; run refresh first", *period)
	}
	out, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runNLQ(args []string) error {
	fs := flag.NewFlagSet("nlq", flag.ExitOnError)
	userID := fs.Int64("user", 0, "telegram user id")
	_ = fs.Parse(args)
	if *userID == 0 {
		return fmt.Errorf("--user is required")
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("query text is required")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	w, err := openWorld(e)
	if err != nil {
		return err
	}

	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	exec := nlq.NewExecutor(w.users, w.ledger, w.memory, w.clock, log)
	fmt.Println(exec.Handle(*userID, query))
	return nil
}
