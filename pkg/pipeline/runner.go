package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/parcelgrid/pkg/observability"
	"github.com/matzehuels/parcelgrid/pkg/rows"
	"github.com/matzehuels/parcelgrid/pkg/store"
)

// Runner encapsulates pipeline execution against document stores.
// Both the CLI and the server use it so that loading, transforming and
// saving happen in the same order everywhere.
//
// The Runner is stateless except for the logger. A run either writes the
// whole transformed document or writes nothing.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. If logger is nil, the default logger is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// Align loads the document from src, transforms it and saves it to dst,
// or back to src when dst is nil. With dryRun nothing is saved. Nothing is
// saved either when the load, the transform or the context fails.
func (r *Runner) Align(ctx context.Context, src, dst store.Store, opts Options, dryRun bool) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	doc, err := store.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("loaded document", "source", src.Location(), "parcels", len(doc))

	start := time.Now()
	observability.Pipeline().OnTransformStart(ctx, len(doc))
	res, err := Transform(doc, opts)
	if err != nil {
		observability.Pipeline().OnTransformComplete(ctx, observability.Summary{Total: len(doc)}, time.Since(start), err)
		return nil, err
	}
	observability.Pipeline().OnTransformComplete(ctx, summary(res.Stats), time.Since(start), nil)
	r.logSummary(res.Stats)

	if dryRun {
		r.Logger.Info("dry run, document not written")
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dst == nil {
		dst = src
	}
	if err := store.Save(ctx, dst, res.Document); err != nil {
		return nil, err
	}
	r.Logger.Debug("saved document", "destination", dst.Location())
	return res, nil
}

// Inspect loads the document from src and reports its rows.
func (r *Runner) Inspect(ctx context.Context, src store.Store, opts Options) (rows.Report, error) {
	r.applyLogger(&opts)
	doc, err := store.Load(ctx, src)
	if err != nil {
		return rows.Report{}, err
	}
	rep, err := Inspect(doc, opts)
	if err != nil {
		return rows.Report{}, err
	}
	r.Logger.Info("inspected rows", "rows", len(rep.Rows), "parcels", rep.Total(), "skipped", len(rep.Skipped))
	return rep, nil
}

// Classify loads the document from src and reports the decision for each
// parcel.
func (r *Runner) Classify(ctx context.Context, src store.Store, opts Options) ([]Outcome, Stats, error) {
	r.applyLogger(&opts)
	doc, err := store.Load(ctx, src)
	if err != nil {
		return nil, Stats{}, err
	}
	outcomes, st, err := Classify(doc, opts)
	if err != nil {
		return nil, Stats{}, err
	}
	r.logSummary(st)
	return outcomes, st, nil
}

func (r *Runner) logSummary(st Stats) {
	r.Logger.Info("classified parcels",
		"total", st.Total,
		"standard", st.Standard,
		"special", st.Special,
		"rows", st.Rows,
		"skipped", st.Skipped)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func summary(st Stats) observability.Summary {
	return observability.Summary{
		Total:       st.Total,
		Standard:    st.Standard,
		Special:     st.Special,
		Rows:        st.Rows,
		Regenerated: st.Regenerated,
		Skipped:     st.Skipped,
	}
}
