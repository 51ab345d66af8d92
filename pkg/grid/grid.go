// Package grid regenerates the parcels of a row as equal rectangles laid
// out left to right.
//
// Target dimensions are in meters and converted to degrees with a single
// [geo.Scale], independently per axis. Rectangles are emitted in the order
// top-left, bottom-left, bottom-right, top-right, top-left.
package grid

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/matzehuels/parcelgrid/pkg/geo"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
	"github.com/matzehuels/parcelgrid/pkg/rows"
)

// Default target dimensions in meters.
const (
	DefaultWidthMeters  = 30.0
	DefaultHeightMeters = 40.0
	DefaultGapMeters    = 0.0
)

// bandEpsilon is the relative tolerance, as a fraction of the rectangle
// height, under which an existing row band is considered already aligned.
const bandEpsilon = 1e-6

// Target holds the rectangle dimensions for regenerated parcels.
type Target struct {
	WidthMeters  float64
	HeightMeters float64
	GapMeters    float64
}

// DefaultTarget returns a 30 m × 40 m target with no gap.
func DefaultTarget() Target {
	return Target{WidthMeters: DefaultWidthMeters, HeightMeters: DefaultHeightMeters, GapMeters: DefaultGapMeters}
}

// AreaMeters is the area of one target rectangle in square meters.
func (t Target) AreaMeters() float64 { return t.WidthMeters * t.HeightMeters }

// RowStats summarizes one regenerated row.
type RowStats struct {
	Key     float64 // row key from clustering
	Top     float64 // top y of every rectangle in the row
	Bottom  float64 // bottom y of every rectangle in the row
	StartX  float64 // left edge of the first rectangle
	EndX    float64 // right edge of the last rectangle
	Members int
	Reused  bool // the existing band was kept because it was already aligned
}

// Regenerate rewrites the coords, areaValue and area label of every member
// of row in place. An empty row produces zero stats and no changes.
//
// The vertical center of the row is the mean centroid y of its members.
// Members are ordered by the x of their first listed vertex, and the row
// starts at the smallest x of the first ordered member, so a row keeps its
// current left edge.
func Regenerate(row rows.Row, t Target, s geo.Scale) RowStats {
	st := RowStats{Key: row.Key, Members: len(row.Members)}
	if len(row.Members) == 0 {
		return st
	}

	width := s.DegreesX(t.WidthMeters)
	height := s.DegreesY(t.HeightMeters)
	gap := s.DegreesX(t.GapMeters)

	var sum float64
	for _, m := range row.Members {
		sum += m.Centroid[1]
	}
	center := sum / float64(len(row.Members))
	st.Top, st.Bottom = center+height/2, center-height/2
	if top, bottom, ok := alignedBand(row.Members, center, height); ok {
		st.Top, st.Bottom, st.Reused = top, bottom, true
	}

	members := make([]rows.Member, len(row.Members))
	copy(members, row.Members)
	sort.SliceStable(members, func(i, j int) bool {
		return firstX(members[i].Parcel) < firstX(members[j].Parcel)
	})

	x, _ := geo.MinX(members[0].Parcel.Coords)
	st.StartX = x
	area := t.AreaMeters()
	label := AreaLabel(area)
	for _, m := range members {
		ring := orb.Ring{
			{x, st.Top},
			{x, st.Bottom},
			{x + width, st.Bottom},
			{x + width, st.Top},
			{x, st.Top},
		}
		m.Parcel.SetGeometry(ring, area, label)
		st.EndX = x + width
		x += width + gap
	}
	return st
}

// alignedBand reports the shared [bottom, top] band of the members when
// every member already spans the target height around center. Reusing it
// keeps a second regeneration byte-identical to the first instead of
// drifting by rounding in the recomputed center.
func alignedBand(members []rows.Member, center, height float64) (top, bottom float64, ok bool) {
	eps := height * bandEpsilon
	for i, m := range members {
		b := orb.MultiPoint(geo.UsableVertices(m.Parcel.Coords)).Bound()
		if i == 0 {
			top, bottom = b.Max[1], b.Min[1]
		} else if b.Max[1] != top || b.Min[1] != bottom {
			return 0, 0, false
		}
	}
	if math.Abs((top-bottom)-height) > eps || math.Abs((top+bottom)/2-center) > eps {
		return 0, 0, false
	}
	return top, bottom, true
}

func firstX(p *parcel.Parcel) float64 {
	if len(p.Coords) == 0 {
		return math.Inf(1)
	}
	return p.Coords[0][0]
}
