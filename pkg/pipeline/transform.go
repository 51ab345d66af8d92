package pipeline

import (
	"github.com/matzehuels/parcelgrid/pkg/classify"
	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/geo"
	"github.com/matzehuels/parcelgrid/pkg/grid"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
	"github.com/matzehuels/parcelgrid/pkg/rows"
)

// Plan is the classification and row assignment of a document. It holds
// pointers into the document it was built from.
type Plan struct {
	Reasons    []classify.Reason // per parcel, in document order
	Standard   []*parcel.Parcel
	Special    []*parcel.Parcel
	Degenerate []*parcel.Parcel // standard parcels with too few usable vertices
	Rows       []rows.Row

	rowOf map[*parcel.Parcel]int
}

// NewPlan classifies doc, sets degenerate standard parcels aside and
// clusters the rest into rows. opts must already carry defaults.
func NewPlan(doc parcel.Document, opts Options) *Plan {
	c := classify.New(opts.Policy)
	p := &Plan{
		Reasons: make([]classify.Reason, len(doc)),
		rowOf:   make(map[*parcel.Parcel]int),
	}

	var placeable []*parcel.Parcel
	for i, pc := range doc {
		r := c.Explain(pc)
		p.Reasons[i] = r
		if r.Class == classify.Special {
			p.Special = append(p.Special, pc)
			continue
		}
		p.Standard = append(p.Standard, pc)
		if len(geo.UsableVertices(pc.Coords)) < MinUsableVertices {
			p.Degenerate = append(p.Degenerate, pc)
			continue
		}
		placeable = append(placeable, pc)
	}

	// Degenerate parcels were removed above, so nothing comes back skipped.
	p.Rows, _ = rows.Cluster(placeable, opts.RowTolerance)
	for i, row := range p.Rows {
		for _, m := range row.Members {
			p.rowOf[m.Parcel] = i
		}
	}
	return p
}

// Row returns the row index of pc, or -1.
func (p *Plan) Row(pc *parcel.Parcel) int {
	if i, ok := p.rowOf[pc]; ok {
		return i
	}
	return -1
}

// outcomes lists one record per parcel of doc in document order. standard
// is the status given to parcels placed in a row.
func (p *Plan) outcomes(doc parcel.Document, standard Status) []Outcome {
	out := make([]Outcome, len(doc))
	degenerate := make(map[*parcel.Parcel]bool, len(p.Degenerate))
	for _, pc := range p.Degenerate {
		degenerate[pc] = true
	}
	for i, pc := range doc {
		o := Outcome{
			Index:  i,
			ID:     pc.Key(),
			Name:   pc.Name,
			Class:  p.Reasons[i].Class,
			Reason: p.Reasons[i].String(),
			Row:    p.Row(pc),
		}
		switch {
		case o.Class == classify.Special:
			o.Status = StatusSpecial
		case degenerate[pc]:
			o.Status = StatusSkipped
			o.Err = errors.New(errors.ErrCodeDegenerateParcel,
				"parcel %s has %d usable vertices, need %d", o.ID, len(geo.UsableVertices(pc.Coords)), MinUsableVertices)
			o.Reason = errors.UserMessage(o.Err)
		default:
			o.Status = standard
		}
		out[i] = o
	}
	return out
}

func (p *Plan) stats(total int) Stats {
	return Stats{
		Total:    total,
		Standard: len(p.Standard),
		Special:  len(p.Special),
		Rows:     len(p.Rows),
		Skipped:  len(p.Degenerate),
	}
}

// Transform runs the pipeline on a deep copy of doc. Special parcels and
// degenerate standard parcels keep their geometry; every other standard
// parcel is regenerated. The input document is never modified.
func Transform(doc parcel.Document, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	out := doc.Clone()
	plan := NewPlan(out, opts)
	scale := opts.Scale()
	target := opts.Target()

	res := &Result{Document: out, Stats: plan.stats(len(out))}
	for i, row := range plan.Rows {
		st := grid.Regenerate(row, target, scale)
		res.Rows = append(res.Rows, st)
		res.Stats.Regenerated += st.Members
		logger.Debug("regenerated row",
			"row", i,
			"key", row.Key,
			"members", st.Members,
			"reused_band", st.Reused)
	}
	res.Outcomes = plan.outcomes(out, StatusRegenerated)
	for _, o := range res.Outcomes {
		if o.Status == StatusSkipped {
			logger.Warn("skipped degenerate parcel", "id", o.ID, "index", o.Index)
		}
	}
	return res, nil
}

// Classify reports the decision for every parcel of doc without
// regenerating anything.
func Classify(doc parcel.Document, opts Options) ([]Outcome, Stats, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, Stats{}, err
	}
	plan := NewPlan(doc, opts)
	return plan.outcomes(doc, StatusPlanned), plan.stats(len(doc)), nil
}

// Inspect reports the rows a regeneration run would operate on. It uses
// the same classification, degenerate filtering and clustering as
// [Transform] and never mutates doc.
func Inspect(doc parcel.Document, opts Options) (rows.Report, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return rows.Report{}, err
	}
	plan := NewPlan(doc, opts)
	return rows.Inspect(plan.Rows, plan.Degenerate, opts.RowTolerance), nil
}
