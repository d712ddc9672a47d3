// Package stats defines the narrow interface phase5 uses to compute a ski
// area's member statistics. Summarization itself is out of scope for this
// engine (spec.md §1); this package gives it a pluggable shape, following
// the teacher's injected-scorer pattern in internal/scorer (scoring is
// pluggable behind a narrow interface, not hardcoded into the pipeline
// driver).
package stats

import (
	"context"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// Summarizer computes aggregate statistics over a ski area's members.
type Summarizer interface {
	Summarize(ctx context.Context, members []model.Object) (model.Statistics, error)
}

// NoopSummarizer returns zero-value Statistics and never errors. It is the
// default for configurations that don't set up a real summarizer.
type NoopSummarizer struct{}

func (NoopSummarizer) Summarize(_ context.Context, _ []model.Object) (model.Statistics, error) {
	return model.Statistics{}, nil
}
