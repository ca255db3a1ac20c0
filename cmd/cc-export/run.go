package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/cc-export/pkg/artifact"
	"github.com/Sternrassler/cc-export/pkg/client"
	"github.com/Sternrassler/cc-export/pkg/config"
	"github.com/Sternrassler/cc-export/pkg/export"
	"github.com/Sternrassler/cc-export/pkg/logging"
	"github.com/Sternrassler/cc-export/pkg/metrics"
	"github.com/Sternrassler/cc-export/pkg/ratelimit"
	"github.com/Sternrassler/cc-export/pkg/render"
	"github.com/Sternrassler/cc-export/pkg/status"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	variantCampaignData = "campaign-data"
	variantCampaigns    = "campaigns"
	variantLibrary      = "library"
)

var allVariants = []string{variantCampaignData, variantCampaigns, variantLibrary}

// runExports runs the named variants in order. Every variant prints its
// summary line; the command fails when any of them aborted.
func runExports(cmd *cobra.Command, names []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, closer := setupLogging(cfg, cmd.ErrOrStderr())
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Start(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	reporter, closeReporter := newReporter(ctx, cfg, logger)
	defer closeReporter()

	clientCfg := client.DefaultConfig(cfg.AccessToken)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Limiter = ratelimit.NewLimiter(cfg.RateLimit, logger.With().Str("component", "ratelimit").Logger())
	logger.Debug().Float64("requests_per_second", clientCfg.Limiter.Limit()).Msg("Request pacing configured")
	api, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	endpoints, err := export.NewEndpoints(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	engineCfg := export.Config{Workers: cfg.Workers, Reporter: reporter}

	var total export.Tally
	var failed []string
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		variant, err := newVariant(name, cfg, api, endpoints, logger)
		if err != nil {
			printSummary(out, variantNoun(name), export.Tally{}, fmt.Errorf("%s: %w", name, err))
			failed = append(failed, name)
			continue
		}

		tally, err := export.NewEngine(api, variant, engineCfg).Run(ctx)
		total.Add(tally)
		printSummary(out, variant.Noun(), tally, err)
		if err != nil {
			failed = append(failed, name)
		}
	}

	if len(names) > 1 {
		printSummary(out, "items", total, nil)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", errReported)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%v aborted: %w", failed, errReported)
	}
	return nil
}

// newVariant builds a variant and prepares its category directory.
func newVariant(name string, cfg *config.Config, api *client.Client, endpoints *export.Endpoints, logger zerolog.Logger) (export.Variant, error) {
	writerLogger := logger.With().Str("component", "artifact").Str("variant", name).Logger()

	var variant export.Variant
	var writer *artifact.Writer
	switch name {
	case variantCampaignData:
		writer = artifact.NewWriter(cfg.DownloadDir, export.CategoryCampaignData, nil, writerLogger)
		variant = export.NewCampaignData(api, endpoints, writer)
	case variantCampaigns:
		renderCfg := render.DefaultConfig()
		renderCfg.BinaryPath = cfg.WkhtmltopdfPath
		renderer, err := render.New(renderCfg, logger.With().Str("component", "render").Logger())
		if err != nil {
			return nil, err
		}
		writer = artifact.NewWriter(cfg.DownloadDir, export.CategoryCampaigns, renderer, writerLogger)
		variant = export.NewCampaignPDF(api, endpoints, writer)
	case variantLibrary:
		writer = artifact.NewWriter(cfg.DownloadDir, export.CategoryLibrary, nil, writerLogger)
		variant = export.NewLibrary(api, endpoints, writer)
	default:
		return nil, fmt.Errorf("unknown export %q", name)
	}

	if err := writer.EnsureDir(); err != nil {
		return nil, err
	}
	return variant, nil
}

// variantNoun names what an export downloads, for summaries printed before
// its variant exists.
func variantNoun(name string) string {
	if name == variantLibrary {
		return "files"
	}
	return "campaigns"
}

// printSummary prints "<n> <noun> downloaded, <m> download errors.".
func printSummary(out io.Writer, noun string, tally export.Tally, runErr error) {
	if runErr != nil {
		color.New(color.FgRed).Fprintf(out, "Export aborted: %v\n", runErr)
	}

	c := color.New(color.FgGreen)
	if tally.Failed > 0 || runErr != nil {
		c = color.New(color.FgYellow)
	}
	c.Fprintf(out, "%d %s downloaded, %d download errors.\n", tally.Downloaded, noun, tally.Failed)
}

func setupLogging(cfg *config.Config, stderr io.Writer) (zerolog.Logger, io.Closer) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logCfg.Output = stderr
	logCfg.File = cfg.LogFile
	return logging.Setup(logCfg)
}

// newReporter connects the status store when REDIS_ADDR is set. An
// unreachable Redis is logged and the run continues unreported.
func newReporter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (status.Reporter, func()) {
	if cfg.RedisAddr == "" {
		return status.Nop{}, func() {}
	}

	rdb := newRedisClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("Redis unreachable, run status will not be recorded")
		rdb.Close()
		return status.Nop{}, func() {}
	}

	store := status.NewRedisStore(rdb, logger.With().Str("component", "status").Logger())
	return store, func() { rdb.Close() }
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
}

// runStatus prints the latest recorded run of each variant.
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.RedisAddr == "" {
		return errors.New("status needs REDIS_ADDR (or --redis-addr)")
	}

	names := args
	if len(names) == 0 {
		names = allVariants
	}

	rdb := newRedisClient(cfg)
	defer rdb.Close()

	logger, closer := setupLogging(cfg, cmd.ErrOrStderr())
	defer closer.Close()
	store := status.NewRedisStore(rdb, logger)

	out := cmd.OutOrStdout()
	for _, name := range names {
		state, err := store.Latest(cmd.Context(), name)
		if errors.Is(err, status.ErrNoRun) {
			fmt.Fprintf(out, "%-14s no recorded run\n", name)
			continue
		}
		if err != nil {
			return err
		}
		printState(out, state)
	}
	return nil
}

// staleAfter flags in-progress runs that stopped reporting.
const staleAfter = 5 * time.Minute

func printState(out io.Writer, s *status.RunState) {
	c := color.New(color.FgGreen)
	switch {
	case s.Phase == status.PhaseAborted:
		c = color.New(color.FgRed)
	case !s.Terminal():
		c = color.New(color.FgCyan)
	}

	c.Fprintf(out, "%-14s %-16s", s.Variant, s.Phase)
	fmt.Fprintf(out, " page %d, %d downloaded, %d download errors, updated %s",
		s.Page, s.Downloaded, s.Failed, s.UpdatedAt.Format(time.RFC3339))
	if s.IsStale(staleAfter) {
		color.New(color.FgYellow).Fprint(out, " (stale)")
	}
	fmt.Fprintln(out)
	if s.Error != "" {
		fmt.Fprintf(out, "%-14s error: %s\n", "", s.Error)
	}
}
