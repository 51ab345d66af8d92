// Package pkg provides the core libraries of parcelgrid.
//
// # Overview
//
// Parcelgrid takes a JSON document of land parcels drawn by hand on a map and
// redraws the residential lots as uniform rectangles, row by row, while
// leaving parks, administrative buildings and other special parcels alone.
// The pkg directory is organized as:
//
//  1. [parcel] - Document model and its order-preserving JSON codec
//  2. [geo], [classify], [rows], [grid] - Domain logic
//  3. [pipeline] - Orchestration (classify → cluster → regenerate)
//  4. [store], [notify] - Collaborators (document stores, lead sinks)
//  5. [errors], [observability], [buildinfo] - Ambient support
//
// # Architecture
//
// The data flow of an align run:
//
//	Document store (file, redis, mongodb)
//	         ↓
//	    [parcel] package (decode + shape validation)
//	         ↓
//	    [classify] package (standard vs special)
//	         ↓
//	    [rows] package (cluster standard parcels by latitude)
//	         ↓
//	    [grid] package (equal rectangles per row)
//	         ↓
//	    Document store (whole document, one write)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/parcelgrid/pkg/pipeline"
//	    "github.com/matzehuels/parcelgrid/pkg/store"
//	)
//
//	src, _ := store.Open(ctx, "plotsData.json")
//	defer src.Close()
//
//	res, err := pipeline.NewRunner(nil).Align(ctx, src, nil, pipeline.Options{
//	    TargetWidthMeters:  30,
//	    TargetHeightMeters: 40,
//	}, false)
//	fmt.Println(res.Stats.Regenerated, "lots redrawn in", res.Stats.Rows, "rows")
package pkg
