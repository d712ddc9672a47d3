// Package pipeline orchestrates the ski-area clustering phases in strict
// order, following internal/pipeline/pipeline.go's Pipeline struct,
// constructor-injected clients, and trackPhase closure pattern from the
// enrichment CLI this engine is descended from.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/config"
	"github.com/yuletide/openskidata-processor/internal/geocode"
	"github.com/yuletide/openskidata-processor/internal/merge"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/phase0"
	"github.com/yuletide/openskidata-processor/internal/phase1"
	"github.com/yuletide/openskidata-processor/internal/phase2"
	"github.com/yuletide/openskidata-processor/internal/phase3"
	"github.com/yuletide/openskidata-processor/internal/phase4"
	"github.com/yuletide/openskidata-processor/internal/phase5"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/stats"
)

// PhaseReport records one phase's outcome, following model.PhaseResult
// (name, duration, status, metadata) from the enrichment pipeline this is
// descended from.
type PhaseReport struct {
	Name     string
	Duration time.Duration
	Stats    phase.Stats
	Failed   bool
	Error    string
}

// Result is the outcome of a full pipeline run: one report per phase plus
// the accumulated totals across all of them.
type Result struct {
	Phases []PhaseReport
	Totals phase.Stats
}

// Pipeline sequences phase0 through phase5 against a single skistore.Store.
// Every external collaborator is constructor-injected, following the
// interface-typed-client convention of the pipeline this is descended
// from.
type Pipeline struct {
	cfg        *config.Config
	store      skistore.Store
	summarizer stats.Summarizer
	geocoder   geocode.Geocoder
	merger     *merge.Merger
}

// New wires a Pipeline against store, using cfg to decide the batch
// concurrency and the per-phase enumeration timeout. Pass a nil
// geocoder to run with reverse-geocoding disabled (phase5 then leaves
// Location untouched).
func New(cfg *config.Config, store skistore.Store, summarizer stats.Summarizer, geocoder geocode.Geocoder) *Pipeline {
	if summarizer == nil {
		summarizer = stats.NoopSummarizer{}
	}
	if geocoder == nil {
		geocoder = geocode.NoopGeocoder{}
	}
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		summarizer: summarizer,
		geocoder:   geocoder,
		merger:     merge.New(store, merge.DefaultComposer),
	}
}

// Run executes phase0 through phase5 in order, stopping at the first phase
// that returns an error. Every phase's stats are recorded in the returned
// Result even when a later phase fails.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L()
	log.Info("pipeline: starting cluster run")

	result := &Result{}
	var reportsMu sync.Mutex
	concurrency := p.cfg.Pipeline.BatchConcurrency

	trackPhase := func(name string, fn func(ctx context.Context) (phase.Stats, error)) error {
		phaseCtx, cancel := context.WithTimeout(ctx, p.cfg.Store.EnumerationTimeout)
		defer cancel()

		start := time.Now()
		phaseStats, err := fn(phaseCtx)
		duration := time.Since(start)

		report := PhaseReport{Name: name, Duration: duration, Stats: phaseStats}
		if err != nil {
			report.Failed = true
			report.Error = err.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Duration("duration", duration),
				zap.Int("examined", phaseStats.Examined),
				zap.Int("removed", phaseStats.Removed),
				zap.Int("assigned", phaseStats.Assigned),
				zap.Int("merged", phaseStats.Merged),
				zap.Int("synthesized", phaseStats.Synthesized),
			)
		}

		reportsMu.Lock()
		result.Phases = append(result.Phases, report)
		result.Totals.Add(phaseStats)
		reportsMu.Unlock()

		return err
	}

	if err := trackPhase("phase0_dedupe", func(ctx context.Context) (phase.Stats, error) {
		return phase0.Run(ctx, p.store, concurrency)
	}); err != nil {
		return result, eris.Wrap(err, "pipeline: phase0")
	}

	if err := trackPhase("phase1_polygon", func(ctx context.Context) (phase.Stats, error) {
		return phase1.Run(ctx, p.store, concurrency)
	}); err != nil {
		return result, eris.Wrap(err, "pipeline: phase1")
	}

	if err := trackPhase("phase2_buffered", func(ctx context.Context) (phase.Stats, error) {
		return phase2.Run(ctx, p.store, concurrency)
	}); err != nil {
		return result, eris.Wrap(err, "pipeline: phase2")
	}

	if err := trackPhase("phase3_registry", func(ctx context.Context) (phase.Stats, error) {
		return phase3.Run(ctx, p.store, p.merger, concurrency)
	}); err != nil {
		return result, eris.Wrap(err, "pipeline: phase3")
	}

	// phase4 drains a queue primitive one run at a time; NextUnassignedRun has
	// no atomic claim step, so this phase stays sequential regardless of
	// concurrency.
	if err := trackPhase("phase4_synthesis", func(ctx context.Context) (phase.Stats, error) {
		return phase4.Run(ctx, p.store)
	}); err != nil {
		return result, eris.Wrap(err, "pipeline: phase4")
	}

	if err := trackPhase("phase5_augment", func(ctx context.Context) (phase.Stats, error) {
		return phase5.Run(ctx, p.store, p.summarizer, p.geocoder, concurrency)
	}); err != nil {
		return result, eris.Wrap(err, "pipeline: phase5")
	}

	log.Info("pipeline: cluster run complete",
		zap.Int("examined", result.Totals.Examined),
		zap.Int("removed", result.Totals.Removed),
		zap.Int("assigned", result.Totals.Assigned),
		zap.Int("merged", result.Totals.Merged),
		zap.Int("synthesized", result.Totals.Synthesized),
	)

	return result, nil
}
