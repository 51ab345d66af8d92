// Package rows groups parcels into rows of approximately equal northing.
//
// Clustering is greedy and single-pass: each parcel joins the first
// existing row whose key lies within the tolerance of its centroid y, or
// opens a new row keyed by that centroid. Keys never move once set. The
// result depends on input order, which callers must preserve to reproduce
// a layout. Rows are returned in ascending key order.
//
// The same [Cluster] call backs both the row builder and the read-only
// [Report], so a report is an exact picture of what a regeneration run will
// operate on.
package rows

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/matzehuels/parcelgrid/pkg/geo"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// DefaultTolerance is the row bucket width in degrees of latitude, about
// 25 m.
const DefaultTolerance = 0.00025

// Member is a parcel together with its centroid at clustering time.
type Member struct {
	Parcel   *parcel.Parcel
	Centroid orb.Point
}

// Row is a cluster of parcels sharing a northing. It exists only for the
// duration of a processing pass.
type Row struct {
	Key     float64  // centroid y of the first parcel assigned to the row
	Members []Member // in input order
}

// Parcels returns the member parcels in input order.
func (r Row) Parcels() []*parcel.Parcel {
	out := make([]*parcel.Parcel, len(r.Members))
	for i, m := range r.Members {
		out[i] = m.Parcel
	}
	return out
}

// Cluster assigns parcels to rows by first fit against fixed row keys: a
// parcel joins the first row, in creation order, with |key - cy| <
// tolerance. Parcels without usable coordinates cannot be placed and are
// returned in skipped.
func Cluster(parcels []*parcel.Parcel, tolerance float64) (rows []Row, skipped []*parcel.Parcel) {
	for _, p := range parcels {
		c, ok := geo.Centroid(p.Coords)
		if !ok {
			skipped = append(skipped, p)
			continue
		}
		placed := false
		for i := range rows {
			if abs(rows[i].Key-c[1]) < tolerance {
				rows[i].Members = append(rows[i].Members, Member{Parcel: p, Centroid: c})
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, Row{Key: c[1], Members: []Member{{Parcel: p, Centroid: c}}})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows, skipped
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
