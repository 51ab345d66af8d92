// Package pipeline provides the parcel alignment pipeline for parcelgrid.
//
// This package implements the classify → cluster → regenerate pipeline that
// the CLI and the HTTP server share. By centralizing this logic, every entry
// point applies the same defaults, the same degenerate-parcel handling and
// the same clustering.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Classify: split parcels into standard lots and special parcels
//  2. Cluster: group standard parcels into rows by centroid northing
//  3. Regenerate: redraw each row as equal rectangles, left to right
//
// [Transform] is pure: it works on a deep copy and never touches its input.
// [Runner] adds the I/O at the boundary, loading from and saving to a
// [store.Store] only after the whole document has been transformed.
//
// # Usage
//
//	runner := pipeline.NewRunner(logger)
//	src, err := store.Open(ctx, "plotsData.json")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	result, err := runner.Align(ctx, src, nil, pipeline.Options{}, false)
//
// Inspect rows without changing anything:
//
//	report, err := pipeline.Inspect(doc, opts)
package pipeline

import (
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/parcelgrid/pkg/classify"
	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/geo"
	"github.com/matzehuels/parcelgrid/pkg/grid"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
	"github.com/matzehuels/parcelgrid/pkg/rows"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultReferenceLatitude is the latitude, in degrees, used for the
	// meters-per-degree conversion of the whole document.
	DefaultReferenceLatitude = 43.174

	// DefaultTargetWidthMeters is the east-west size of a regenerated lot.
	DefaultTargetWidthMeters = grid.DefaultWidthMeters

	// DefaultTargetHeightMeters is the north-south size of a regenerated lot.
	DefaultTargetHeightMeters = grid.DefaultHeightMeters

	// DefaultGapMeters is the spacing between adjacent lots in a row.
	DefaultGapMeters = grid.DefaultGapMeters

	// DefaultRowTolerance is the clustering bucket width in degrees.
	DefaultRowTolerance = rows.DefaultTolerance
)

// MinUsableVertices is the number of distinct vertices a parcel needs to be
// regenerated.
const MinUsableVertices = 3

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the alignment pipeline.
// Zero values select the defaults. ReferenceLatitude is a pointer so that
// an explicit 0 selects the equator; nil selects the default latitude.
type Options struct {
	Policy             classify.Policy `toml:"policy" json:"policy"`
	ReferenceLatitude  *float64        `toml:"reference_latitude" json:"referenceLatitude,omitempty"`
	TargetWidthMeters  float64         `toml:"target_width_meters" json:"targetWidthMeters"`
	TargetHeightMeters float64         `toml:"target_height_meters" json:"targetHeightMeters"`
	GapMeters          float64         `toml:"gap_meters" json:"gapMeters"`
	RowTolerance       float64         `toml:"row_tolerance" json:"rowTolerance"`

	// Runtime options (not serialized)
	Logger *log.Logger `toml:"-" json:"-"`
}

// SetDefaults fills unset fields. It is idempotent.
func (o *Options) SetDefaults() {
	if o.Policy.Keywords == nil && o.Policy.Statuses == nil && o.Policy.Band == (classify.AreaBand{}) {
		o.Policy = classify.DefaultPolicy()
	} else if o.Policy.Band == (classify.AreaBand{}) {
		o.Policy.Band = classify.DefaultPolicy().Band
	}
	if o.ReferenceLatitude == nil {
		o.ReferenceLatitude = Latitude(DefaultReferenceLatitude)
	}
	if o.TargetWidthMeters == 0 {
		o.TargetWidthMeters = DefaultTargetWidthMeters
	}
	if o.TargetHeightMeters == 0 {
		o.TargetHeightMeters = DefaultTargetHeightMeters
	}
	if o.RowTolerance == 0 {
		o.RowTolerance = DefaultRowTolerance
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks the options after defaults have been applied. Failures
// carry code INVALID_CONFIG.
func (o *Options) Validate() error {
	lat := o.Latitude()
	if math.IsNaN(lat) || math.Abs(lat) > 90 {
		return errors.New(errors.ErrCodeInvalidConfig, "reference latitude must be within [-90, 90], got %g", lat)
	}
	if math.Abs(lat) == 90 {
		return errors.New(errors.ErrCodeInvalidConfig, "reference latitude %g has no east-west extent", lat)
	}
	if !(o.TargetWidthMeters > 0) || math.IsInf(o.TargetWidthMeters, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "target width must be positive, got %g", o.TargetWidthMeters)
	}
	if !(o.TargetHeightMeters > 0) || math.IsInf(o.TargetHeightMeters, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "target height must be positive, got %g", o.TargetHeightMeters)
	}
	if !(o.GapMeters >= 0) || math.IsInf(o.GapMeters, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "gap must not be negative, got %g", o.GapMeters)
	}
	if !(o.RowTolerance > 0) || math.IsInf(o.RowTolerance, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "row tolerance must be positive, got %g", o.RowTolerance)
	}
	if err := o.Policy.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "classification policy")
	}
	return nil
}

// ValidateAndSetDefaults applies defaults, then validates.
func (o *Options) ValidateAndSetDefaults() error {
	o.SetDefaults()
	return o.Validate()
}

// Scale returns the unit converter at the reference latitude.
func (o *Options) Scale() geo.Scale {
	return geo.NewScale(o.Latitude())
}

// Latitude returns the reference latitude, or the default when unset.
func (o *Options) Latitude() float64 {
	if o.ReferenceLatitude == nil {
		return DefaultReferenceLatitude
	}
	return *o.ReferenceLatitude
}

// Latitude returns a pointer to lat for [Options.ReferenceLatitude].
func Latitude(lat float64) *float64 { return &lat }

// Target returns the rectangle dimensions.
func (o *Options) Target() grid.Target {
	return grid.Target{WidthMeters: o.TargetWidthMeters, HeightMeters: o.TargetHeightMeters, GapMeters: o.GapMeters}
}

// =============================================================================
// Results
// =============================================================================

// Status is what a run did with one parcel.
type Status string

const (
	StatusRegenerated Status = "regenerated" // standard, redrawn as a rectangle
	StatusPlanned     Status = "planned"     // standard, would be redrawn (classification only)
	StatusSpecial     Status = "special"     // left untouched by rule
	StatusSkipped     Status = "skipped"     // standard but degenerate geometry
)

// Outcome is the per-parcel record of a run, in document order.
type Outcome struct {
	Index  int            `json:"index"`
	ID     string         `json:"id"`
	Name   string         `json:"name,omitempty"`
	Class  classify.Class `json:"-"`
	Status Status         `json:"status"`
	Reason string         `json:"reason"`
	Row    int            `json:"row"` // index into the row list, -1 when not in a row
	Err    error          `json:"-"`
}

// Stats counts the parcels of a run.
type Stats struct {
	Total       int `json:"total"`
	Standard    int `json:"standard"`
	Special     int `json:"special"`
	Rows        int `json:"rows"`
	Regenerated int `json:"regenerated"`
	Skipped     int `json:"skipped"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Document is the transformed copy of the input.
	Document parcel.Document

	// Stats contains the run counters.
	Stats Stats

	// Outcomes has one entry per parcel, in document order.
	Outcomes []Outcome

	// Rows describes each regenerated row in key order.
	Rows []grid.RowStats
}

// Skipped returns the outcomes of degenerate parcels.
func (r *Result) Skipped() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusSkipped {
			out = append(out, o)
		}
	}
	return out
}
