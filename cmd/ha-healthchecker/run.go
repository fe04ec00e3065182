package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openlab-infra/ha-healthchecker/pkg/agent"
	"github.com/openlab-infra/ha-healthchecker/pkg/config"
	"github.com/openlab-infra/ha-healthchecker/pkg/dnsprovider"
	"github.com/openlab-infra/ha-healthchecker/pkg/initsystem"
	"github.com/openlab-infra/ha-healthchecker/pkg/issues"
	"github.com/openlab-infra/ha-healthchecker/pkg/log"
	"github.com/openlab-infra/ha-healthchecker/pkg/metrics"
	"github.com/openlab-infra/ha-healthchecker/pkg/probe"
	"github.com/openlab-infra/ha-healthchecker/pkg/store"
	"github.com/openlab-infra/ha-healthchecker/pkg/types"
	"github.com/openlab-infra/ha-healthchecker/pkg/webhook"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tick scheduler for this node",
	Long: `Run loads startup configuration, opens the coordination store, and
runs the refresher/fixer/switcher cycle on a fixed interval until
signaled, the same role the daemonized healthchecker process plays in
each site.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("config", "c", "/etc/ha-healthchecker/agent.ini", "Path to the startup config file")
	runCmd.Flags().String("metrics-addr", ":9200", "Address to serve Prometheus metrics on")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	startup, err := config.LoadStartupConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load startup config: %w", err)
	}

	db, err := store.NewBoltStore(startup.StoreDataDir)
	if err != nil {
		return fmt.Errorf("failed to open coordination store: %w", err)
	}
	defer db.Close()

	cfg, err := config.NewLoader(db).Load()
	if err != nil {
		return fmt.Errorf("failed to load cluster configuration: %w", err)
	}

	var filer agent.IssueFiler
	if cfg.GithubUserToken != "" && cfg.GithubRepoName != "" {
		c, err := issues.NewClient(cfg.GithubUserToken, cfg.GithubRepoName)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("failed to build issue filer, issues will not be filed")
		} else {
			filer = c
		}
	}

	var rotator agent.WebhookRotator
	if cfg.GithubUserPassword != "" && cfg.GithubAppName != "" {
		rotator = webhook.NewGithubAppRotator(cfg.GithubUserToken, cfg.GithubUserPassword, cfg.GithubAppName)
	}

	var dnsClient agent.DNSRewriter
	if cfg.DNSProviderAPIURL != "" {
		dnsClient = dnsprovider.NewClient(cfg)
	}

	a := agent.New(
		startup.NodeName,
		db,
		probe.NewPinger(),
		initsystem.NewController(types.TimerPseudoServices),
		dnsClient,
		rotator,
		filer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: metricsAddr, Handler: metricsMux()}
	go func() {
		log.Logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	a.Start(ctx)

	<-ctx.Done()
	a.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
