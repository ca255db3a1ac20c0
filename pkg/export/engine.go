package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/cc-export/pkg/artifact"
	"github.com/Sternrassler/cc-export/pkg/client"
	"github.com/Sternrassler/cc-export/pkg/pagination"
	"github.com/Sternrassler/cc-export/pkg/status"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for traversal.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccexport_pages_fetched_total",
		Help: "Total listing pages fetched by variant",
	}, []string{"variant"})

	artifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccexport_artifacts_total",
		Help: "Total item outcomes by variant and outcome (written or failure reason)",
	}, []string{"variant", "outcome"})
)

// PageFetcher loads one listing page.
type PageFetcher interface {
	GetJSON(ctx context.Context, rawURL string, out any) error
}

// Config holds engine settings.
type Config struct {
	// Workers is the number of items processed concurrently. 1 keeps the
	// traversal strictly sequential with one outstanding request.
	Workers int

	// Reporter receives run state updates; nil disables reporting.
	Reporter status.Reporter
}

// DefaultConfig returns a sequential configuration without reporting.
func DefaultConfig() Config {
	return Config{
		Workers: 1,
	}
}

// Engine runs one variant's traversal. An Engine may be run more than once;
// each Run starts from the first page with a fresh tally.
type Engine struct {
	pages   PageFetcher
	variant Variant
	config  Config
	logger  zerolog.Logger
}

// NewEngine creates an engine for variant.
func NewEngine(pages PageFetcher, variant Variant, cfg Config) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Reporter == nil {
		cfg.Reporter = status.Nop{}
	}

	return &Engine{
		pages:   pages,
		variant: variant,
		config:  cfg,
		logger:  log.With().Str("component", "export").Str("variant", variant.Name()).Logger(),
	}
}

// Run walks every page of the listing and returns the final tally. The
// tally is returned in every terminal state; err is non-nil when the run
// was aborted or cancelled.
func (e *Engine) Run(ctx context.Context) (Tally, error) {
	run := newRunTracker(ctx, e.variant.Name(), e.config.Reporter, e.logger)
	run.setPhase(status.PhaseStart, 0)

	e.logger.Info().
		Str("run_id", run.id()).
		Int("workers", e.config.Workers).
		Msg("Export started")

	var sink itemSink
	if e.config.Workers > 1 {
		sink = newPool(ctx, e.config.Workers, e.processItem, run.record)
	} else {
		sink = &sequential{process: e.processItem, record: run.record}
	}

	err := e.traverse(ctx, run, sink)
	sink.close()

	tally := run.tally()
	if err != nil {
		run.abort(err)
		e.logger.Error().
			Err(err).
			Int64("downloaded", tally.Downloaded).
			Int64("failed", tally.Failed).
			Msg("Export aborted")
		return tally, err
	}

	run.setPhase(status.PhaseDone, run.page())
	e.logger.Info().
		Int64("downloaded", tally.Downloaded).
		Int64("failed", tally.Failed).
		Msg("Export finished")
	return tally, nil
}

func (e *Engine) traverse(ctx context.Context, run *runTracker, sink itemSink) error {
	pageURL := e.variant.FirstPageURL()

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export %s cancelled: %w", e.variant.Name(), err)
		}

		run.setPhase(status.PhaseFetchingPage, n)

		var page pagination.Page
		if err := e.pages.GetJSON(ctx, pageURL, &page); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("export %s cancelled: %w", e.variant.Name(), ctxErr)
			}
			return fmt.Errorf("fetch page %d: %w", n, err)
		}
		pagesFetchedTotal.WithLabelValues(e.variant.Name()).Inc()

		if len(page.Results) == 0 {
			return fmt.Errorf("page %d: %w", n, ErrEmptyPage)
		}

		e.logger.Info().
			Int("page", n).
			Int("items", len(page.Results)).
			Msg("Page fetched")

		if !page.HasPaginationBlock() {
			e.logger.Warn().
				Int("page", n).
				Msg("Page has no pagination block, treating it as the last page")
		}

		run.setPhase(status.PhaseProcessingItems, n)
		for _, item := range page.Results {
			if err := sink.submit(ctx, item); err != nil {
				return fmt.Errorf("export %s cancelled: %w", e.variant.Name(), err)
			}
		}

		token, ok, err := pagination.NextCursor(page)
		if err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		if !ok {
			return nil
		}

		e.logger.Debug().Int("page", n).Str("cursor", token).Msg("Next page cursor")
		pageURL = e.variant.NextPageURL(token)
	}
}

// processItem runs one item to completion. Cancellation of ctx does not
// interrupt an item that has started.
func (e *Engine) processItem(ctx context.Context, item pagination.ItemSummary) artifact.Outcome {
	e.logger.Info().
		Str("item_id", item.ID).
		Str("item_name", item.Name).
		Msgf("Getting %s (ID %s)", item.Name, item.ID)

	outcome := e.variant.Process(context.WithoutCancel(ctx), item)

	if outcome.OK() {
		artifactsTotal.WithLabelValues(e.variant.Name(), string(artifact.StatusWritten)).Inc()
		e.logger.Debug().
			Str("item_id", item.ID).
			Str("path", outcome.Path).
			Msg("Artifact written")
		return outcome
	}

	artifactsTotal.WithLabelValues(e.variant.Name(), string(outcome.Reason)).Inc()
	evt := e.logger.Warn().
		Str("item_id", item.ID).
		Str("item_name", item.Name).
		Str("reason", string(outcome.Reason)).
		Err(outcome.Err)
	if code := client.StatusCode(outcome.Err); code != 0 {
		evt = evt.Int("status_code", code)
	}
	evt.Msg("Item failed")

	return outcome
}

// itemSink consumes the items of a run.
type itemSink interface {
	// submit hands item over for processing. It fails only when ctx is
	// done before the item was accepted.
	submit(ctx context.Context, item pagination.ItemSummary) error

	// close waits for accepted items to finish.
	close()
}

type processFunc func(ctx context.Context, item pagination.ItemSummary) artifact.Outcome

// sequential processes each item inline.
type sequential struct {
	process processFunc
	record  func(artifact.Outcome)
}

func (s *sequential) submit(ctx context.Context, item pagination.ItemSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record(s.process(ctx, item))
	return nil
}

func (s *sequential) close() {}

// pool processes items on a fixed set of workers. A single aggregator
// goroutine receives every outcome, so record is never called
// concurrently.
type pool struct {
	jobs    chan pagination.ItemSummary
	results chan artifact.Outcome

	workers    sync.WaitGroup
	aggregated chan struct{}
}

func newPool(ctx context.Context, workers int, process processFunc, record func(artifact.Outcome)) *pool {
	p := &pool{
		jobs:       make(chan pagination.ItemSummary),
		results:    make(chan artifact.Outcome, workers),
		aggregated: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			for item := range p.jobs {
				p.results <- process(ctx, item)
			}
		}()
	}

	go func() {
		defer close(p.aggregated)
		for outcome := range p.results {
			record(outcome)
		}
	}()

	return p
}

func (p *pool) submit(ctx context.Context, item pagination.ItemSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.jobs <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pool) close() {
	close(p.jobs)
	p.workers.Wait()
	close(p.results)
	<-p.aggregated
}

// runTracker owns the tally and the reported state of one run.
type runTracker struct {
	ctx      context.Context
	reporter status.Reporter
	logger   zerolog.Logger

	mu    sync.Mutex
	state status.RunState
}

func newRunTracker(ctx context.Context, variant string, reporter status.Reporter, logger zerolog.Logger) *runTracker {
	now := time.Now()
	return &runTracker{
		ctx:      context.WithoutCancel(ctx),
		reporter: reporter,
		logger:   logger,
		state: status.RunState{
			RunID:     uuid.NewString(),
			Variant:   variant,
			StartedAt: now,
			UpdatedAt: now,
		},
	}
}

func (r *runTracker) id() string {
	return r.state.RunID
}

func (r *runTracker) page() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Page
}

func (r *runTracker) tally() Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Tally{Downloaded: r.state.Downloaded, Failed: r.state.Failed}
}

func (r *runTracker) setPhase(phase status.Phase, page int) {
	r.update(func(s *status.RunState) {
		s.Phase = phase
		s.Page = page
	})
}

func (r *runTracker) record(o artifact.Outcome) {
	r.update(func(s *status.RunState) {
		t := Tally{Downloaded: s.Downloaded, Failed: s.Failed}
		t.record(o)
		s.Downloaded, s.Failed = t.Downloaded, t.Failed
	})
}

func (r *runTracker) abort(err error) {
	r.update(func(s *status.RunState) {
		s.Phase = status.PhaseAborted
		s.Error = err.Error()
	})
}

// update applies fn and reports the new state. Reports are issued under
// the lock so the store never sees them out of order.
func (r *runTracker) update(fn func(*status.RunState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.state)
	r.state.UpdatedAt = time.Now()

	if err := r.reporter.Report(r.ctx, r.state); err != nil {
		r.logger.Warn().Err(err).Str("run_id", r.state.RunID).Msg("Failed to report run state")
	}
}
