// salesbot is the sales discovery chat service: an HTTP API and embeddable
// widget that walks website visitors through a staged discovery
// conversation and books qualified leads into a demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"salesbot/pkg/agent"
	agentmetrics "salesbot/pkg/agent/middleware/metrics"
	"salesbot/pkg/chat"
	"salesbot/pkg/config"
	"salesbot/pkg/discovery"
	"salesbot/pkg/limiter"
	"salesbot/pkg/logx"
	"salesbot/pkg/metrics"
	"salesbot/pkg/persistence"
	"salesbot/pkg/webui"
)

func main() {
	var (
		configPath       string
		host             string
		port             int
		setAdminPassword bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&host, "host", "", "Override listen host")
	flag.IntVar(&port, "port", 0, "Override listen port")
	flag.BoolVar(&setAdminPassword, "set-admin-password", false, "Prompt for an admin password and print its hash")
	flag.Parse()

	if setAdminPassword {
		if err := printAdminPasswordHash(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(configPath, host, port); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, host string, port int) error {
	logger := logx.NewLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	db, err := persistence.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	store := persistence.NewDatabaseOperations(db)
	defer func() { _ = store.Close() }()
	logger.Info("Database ready at %s", cfg.Database.Path)

	dailyLimiter := limiter.NewDailyLimiter(cfg.Limits)
	seedLimiter(store, dailyLimiter, logger)

	accountant := chat.NewUsageAccountant(store, dailyLimiter, cfg.LLM.Model)
	llmRecorder := agentmetrics.NewRecorder()
	client, err := agent.NewInstrumentedClient(&cfg.LLM, llmRecorder, accountant)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	logger.Info("Using %s via %s", cfg.LLM.Model, cfg.LLM.Provider)

	engine := discovery.NewEngine(client, cfg)
	funnel := metrics.NewFunnelRecorder()
	service := chat.NewService(store, engine, funnel, dailyLimiter)

	server := webui.NewServer(service, cfg.Admin)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.StartServer(ctx, cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	// Give the HTTP server a moment to drain.
	time.Sleep(500 * time.Millisecond)
	return nil
}

// seedLimiter primes the daily limiter from persisted usage so a restart
// does not reset the budget.
func seedLimiter(store *persistence.DatabaseOperations, lim *limiter.DailyLimiter, logger *logx.Logger) {
	day := time.Now().UTC().Format("2006-01-02")
	rec, err := store.UsageForDay(day)
	if err != nil {
		logger.Warn("Failed to load today's usage: %v", err)
		return
	}
	lim.Seed(day, rec.PromptTokens+rec.CompletionTokens, rec.CostUSD)
}

// printAdminPasswordHash prompts for a password without echo and prints
// the scrypt hash for the config file.
func printAdminPasswordHash() error {
	fmt.Fprint(os.Stderr, "New admin password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := config.HashAdminPassword(string(password))
	if err != nil {
		return err
	}
	fmt.Printf("admin:\n  password_hash: %s\n", hash)
	return nil
}
