package rows

import (
	"github.com/paulmach/orb"

	"github.com/matzehuels/parcelgrid/pkg/geo"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// GeohashPrecision is the length of the anchor geohash in reports; eight
// characters resolve to a cell of roughly 38 m × 19 m.
const GeohashPrecision = 8

// RowReport describes one row for diagnostics.
type RowReport struct {
	Index   int       `json:"index"`
	Key     float64   `json:"key"`
	Count   int       `json:"count"`
	IDs     []string  `json:"ids"`
	Anchor  orb.Point `json:"anchor"`
	Geohash string    `json:"geohash"`
}

// Report is the read-only result of a clustering pass.
type Report struct {
	Tolerance float64     `json:"tolerance"`
	Rows      []RowReport `json:"rows"`
	Skipped   []string    `json:"skipped,omitempty"`
}

// Total returns the number of parcels placed in rows.
func (r Report) Total() int {
	n := 0
	for _, row := range r.Rows {
		n += row.Count
	}
	return n
}

// Inspect reports rows in key order with member ids in input order. The
// anchor of a row is the mean centroid x of its members at the row key.
func Inspect(rows []Row, skipped []*parcel.Parcel, tolerance float64) Report {
	rep := Report{Tolerance: tolerance, Rows: make([]RowReport, 0, len(rows))}
	for i, row := range rows {
		rr := RowReport{Index: i, Key: row.Key, Count: len(row.Members)}
		var sx float64
		for _, m := range row.Members {
			rr.IDs = append(rr.IDs, m.Parcel.Key())
			sx += m.Centroid[0]
		}
		if n := len(row.Members); n > 0 {
			anchor := orb.Point{sx / float64(n), row.Key}
			rr.Anchor = anchor
			rr.Geohash = geo.Geohash(anchor, GeohashPrecision)
		}
		rep.Rows = append(rep.Rows, rr)
	}
	for _, p := range skipped {
		rep.Skipped = append(rep.Skipped, p.Key())
	}
	return rep
}
