// salesbot-worker runs background jobs against a salesbot deployment:
// flagging stale conversations for followup and reporting funnel totals
// aggregated from Prometheus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesbot/pkg/config"
	"salesbot/pkg/logx"
	"salesbot/pkg/metrics"
	"salesbot/pkg/persistence"
)

func main() {
	var (
		configPath    string
		prometheusURL string
		staleAfter    time.Duration
		checkEvery    time.Duration
		reportEvery   time.Duration
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&prometheusURL, "prometheus-url", "", "Prometheus server URL for funnel reporting (empty disables)")
	flag.DurationVar(&staleAfter, "stale-after", 24*time.Hour, "Age after which an incomplete conversation counts as stale")
	flag.DurationVar(&checkEvery, "check-every", 30*time.Minute, "How often to scan for stale conversations")
	flag.DurationVar(&reportEvery, "report-every", time.Hour, "How often to report funnel totals")
	flag.Parse()

	if err := run(configPath, prometheusURL, staleAfter, checkEvery, reportEvery); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, prometheusURL string, staleAfter, checkEvery, reportEvery time.Duration) error {
	logger := logx.NewLogger("worker")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := persistence.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	store := persistence.NewDatabaseOperations(db)
	defer func() { _ = store.Close() }()

	var querySvc *metrics.QueryService
	if prometheusURL != "" {
		querySvc, err = metrics.NewQueryService(prometheusURL)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker started (stale-after=%s, check-every=%s)", staleAfter, checkEvery)

	staleTicker := time.NewTicker(checkEvery)
	defer staleTicker.Stop()
	reportTicker := time.NewTicker(reportEvery)
	defer reportTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker shutting down")
			return nil
		case <-staleTicker.C:
			checkStaleConversations(store, staleAfter, logger)
		case <-reportTicker.C:
			reportFunnel(ctx, querySvc, logger)
		}
	}
}

// checkStaleConversations logs incomplete conversations that have gone
// quiet. Followup email delivery hangs off this list once an outbound
// channel exists.
func checkStaleConversations(store *persistence.DatabaseOperations, staleAfter time.Duration, logger *logx.Logger) {
	stale, err := store.StaleConversations(staleAfter)
	if err != nil {
		logger.Error("Stale conversation scan failed: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	logger.Info("%d stale conversation(s) awaiting followup", len(stale))
	for _, conv := range stale {
		logger.Info("  %s (source=%s, stage=%s, last activity %s)",
			conv.ID, conv.Source, conv.Stage, conv.UpdatedAt.Format(time.RFC3339))
	}
}

// reportFunnel logs the aggregated funnel snapshot from Prometheus.
func reportFunnel(ctx context.Context, querySvc *metrics.QueryService, logger *logx.Logger) {
	if querySvc == nil {
		return
	}

	qctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	snap, err := querySvc.GetFunnelSnapshot(qctx)
	if err != nil {
		logger.Error("Funnel query failed: %v", err)
		return
	}
	logger.Info("Funnel: started=%d completed=%d booked=%d (%.1f%% conversion), tokens=%d/%d",
		snap.ConversationsStarted, snap.ConversationsCompleted, snap.DemosBooked,
		snap.ConversionRate*100, snap.PromptTokens, snap.CompletionTokens)

	byTier, err := querySvc.GetDemosBookedByTier(qctx)
	if err != nil {
		logger.Warn("Tier breakdown query failed: %v", err)
		return
	}
	for tier, count := range byTier {
		logger.Info("  booked %s: %d", tier, count)
	}
}
