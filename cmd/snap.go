package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/staticsnap/staticsnap/internal/api"
	"github.com/staticsnap/staticsnap/internal/config"
	"github.com/staticsnap/staticsnap/internal/logging"
	"github.com/staticsnap/staticsnap/internal/output"
	"github.com/staticsnap/staticsnap/internal/progress"
	"github.com/staticsnap/staticsnap/internal/progress/sinks"
	"github.com/staticsnap/staticsnap/internal/provider"
	"github.com/staticsnap/staticsnap/internal/renderer"
	"github.com/staticsnap/staticsnap/internal/snap"
)

// newSnapCmd creates the 'snap' subcommand, which runs one batch to
// completion and terminates.
func newSnapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snap",
		Short: "Renders the configured pages and writes the output tree",
		Long: `Resolves the page list (explicit or sitemap), renders each page with
headless Chrome under the configured concurrency budget, and persists
every result. Individual page failures are recorded and do not abort
the batch.`,

		RunE: runSnapCommand,
	}
	return cmd
}

func runSnapCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pages, err := resolvePages(ctx, cfg, logger)
	if err != nil {
		return err
	}

	report := &snap.RunReport{}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")}, buildSinks(logger)...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	if cfg.Server.Enabled {
		srv := api.NewHTTPServer(fmt.Sprintf(":%d", cfg.Server.Port), api.NewServer(report, logger.Named("api")).Handler())
		go func() {
			logger.Info("status server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	orchestrator, cleanup, err := buildOrchestrator(cfg, report, hub, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := orchestrator.Run(ctx, pages); err != nil {
		return fmt.Errorf("run batch: %w", err)
	}
	return nil
}

func resolvePages(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]string, error) {
	var source snap.Provider
	if len(cfg.Provider.Pages) > 0 {
		listProvider, err := provider.NewListProvider(cfg.Provider.BaseURL, cfg.Provider.Pages)
		if err != nil {
			return nil, fmt.Errorf("init page list: %w", err)
		}
		source = listProvider
	} else {
		sitemapProvider, err := provider.NewSitemapProvider(
			cfg.Provider.SitemapURL,
			cfg.Render.UserAgent,
			cfg.Render.NavigationTimeout(),
			logger.Named("sitemap"),
		)
		if err != nil {
			return nil, fmt.Errorf("init sitemap provider: %w", err)
		}
		source = sitemapProvider
	}

	pages, err := source.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, snap.ErrNoPages
	}
	return pages, nil
}

func buildSinks(logger *zap.Logger) []progress.Sink {
	out := []progress.Sink{sinks.NewLogSink(logger.Named("events"))}
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		logger.Warn("prometheus sink init failed", zap.Error(err))
		return out
	}
	return append(out, promSink)
}

func buildOrchestrator(
	cfg config.Config,
	report *snap.RunReport,
	hub *progress.Hub,
	logger *zap.Logger,
) (*snap.Orchestrator, func(), error) {
	patterns, err := cfg.Filter.CompilePatterns()
	if err != nil {
		return nil, nil, err
	}
	policy := snap.NewFilterPolicy(snap.FilterConfig{
		AllowExtensions: cfg.Filter.AllowExtensions,
		BlockExtensions: cfg.Filter.BlockExtensions,
		BlockPatterns:   patterns,
		BlockHosts:      cfg.Filter.BlockHosts,
	})

	pipeline, err := output.New(output.Config{
		Root:         cfg.Output.Root,
		Subfolder:    cfg.Output.Subfolder,
		Compress:     cfg.Output.Compress,
		InlineCSS:    cfg.Output.InlineCSS,
		ScriptHashes: cfg.Output.ScriptHashes,
	}, report, logger.Named("output"))
	if err != nil {
		return nil, nil, fmt.Errorf("init output pipeline: %w", err)
	}

	engine, err := renderer.New(renderer.Config{
		UserAgent:         cfg.Render.UserAgent,
		NavigationTimeout: cfg.Render.NavigationTimeout(),
		HostQPS:           cfg.Render.HostQPS,
	}, logger.Named("renderer"))
	if err != nil {
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(closeCtx); err != nil {
			logger.Warn("renderer close failed", zap.Error(err))
		}
	}

	orchestrator, err := snap.NewOrchestrator(snap.OrchestratorConfig{
		Concurrency: cfg.Render.Concurrency,
		MaxPages:    cfg.Render.MaxPages,
		Headers:     cfg.Render.HTTPHeaders(),
		Wait: snap.WaitOptions{
			Selector:   cfg.Render.WaitSelector,
			ExtraDelay: cfg.Render.ExtraDelay(),
		},
	}, engine, pipeline, policy, report, hub, logger.Named("orchestrator"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init orchestrator: %w", err)
	}
	return orchestrator, cleanup, nil
}
