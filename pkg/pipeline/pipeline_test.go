package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/parcelgrid/pkg/classify"
	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/geo"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
	"github.com/matzehuels/parcelgrid/pkg/store"
)

// village has two rows of standard lots, two special parcels and two
// degenerate ones.
const village = `[
  {"id": 1, "name": "Участок 1", "purpose": "ИЖС", "price": "900 000", "areaValue": 1000, "area": "10 соток",
   "coords": [[44.9900, 43.1740], [44.99002, 43.17369], [44.99041, 43.17371], [44.99038, 43.17403], [44.9900, 43.1740]]},
  {"id": 2, "name": "Участок 2", "areaValue": "1100",
   "coords": [[44.9904, 43.17405], [44.99042, 43.17374], [44.99081, 43.17376], [44.99078, 43.17408], [44.9904, 43.17405]]},
  {"id": "a-3", "name": "Участок 3", "status": "Свободен",
   "coords": [[44.9897, 43.17395], [44.98972, 43.17364], [44.99011, 43.17366], [44.99008, 43.17398], [44.9897, 43.17395]]},
  {"id": 4, "name": "Административное здание", "areaValue": 1200,
   "coords": [[44.9910, 43.1741], [44.9911, 43.1736], [44.9916, 43.17365], [44.99155, 43.17412], [44.9910, 43.1741]]},
  {"id": 5, "name": "Участок 5", "area": "25 соток (большой участок)", "areaValue": 2500,
   "coords": [[44.9920, 43.1741], [44.9920, 43.1735], [44.9927, 43.1735], [44.9927, 43.1741], [44.9920, 43.1741]]},
  {"id": 6, "name": "Участок 6",
   "coords": [[44.9900, 43.1760], [44.99002, 43.17569], [44.99041, 43.17571], [44.99038, 43.17603], [44.9900, 43.1760]]},
  {"id": 7, "name": "Участок 7",
   "coords": [[44.9906, 43.17605], [44.99062, 43.17574], [44.99101, 43.17576], [44.99098, 43.17608], [44.9906, 43.17605]]},
  {"id": 8, "name": "Участок 8", "coords": [[44.99, 43.18], [44.991, 43.18], [44.99, 43.18]]},
  {"id": 9, "name": "Участок 9", "coords": null}
]`

func decode(t *testing.T, s string) parcel.Document {
	t.Helper()
	doc, err := parcel.Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return doc
}

func encode(t *testing.T, doc parcel.Document) []byte {
	t.Helper()
	data, err := parcel.Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return data
}

func TestTransformScenario(t *testing.T) {
	doc := decode(t, village)
	before := encode(t, doc)

	res, err := Transform(doc, Options{})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	want := Stats{Total: 9, Standard: 7, Special: 2, Rows: 2, Regenerated: 5, Skipped: 2}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}

	wantStatus := map[string]Status{
		"1": StatusRegenerated, "2": StatusRegenerated, "a-3": StatusRegenerated,
		"4": StatusSpecial, "5": StatusSpecial,
		"6": StatusRegenerated, "7": StatusRegenerated,
		"8": StatusSkipped, "9": StatusSkipped,
	}
	for i, o := range res.Outcomes {
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
		if o.Status != wantStatus[o.ID] {
			t.Errorf("parcel %s: status = %s (%s), want %s", o.ID, o.Status, o.Reason, wantStatus[o.ID])
		}
		if o.Status == StatusSkipped && !errors.Is(o.Err, errors.ErrCodeDegenerateParcel) {
			t.Errorf("parcel %s: Err = %v, want DEGENERATE_PARCEL", o.ID, o.Err)
		}
		if (o.Status == StatusRegenerated) != (o.Row >= 0) {
			t.Errorf("parcel %s: status %s with row %d", o.ID, o.Status, o.Row)
		}
	}
	if got := len(res.Skipped()); got != 2 {
		t.Errorf("Skipped() = %d outcomes, want 2", got)
	}

	if !bytes.Equal(encode(t, doc), before) {
		t.Error("Transform() modified its input document")
	}
}

func TestTransformAdministrativeBuildingUntouched(t *testing.T) {
	doc := decode(t, village)
	res, err := Transform(doc, Options{})
	if err != nil {
		t.Fatal(err)
	}

	in, out := doc.ByKey(), res.Document.ByKey()
	for _, id := range []string{"4", "5", "8", "9"} {
		if !orb.Equal(in[id].Coords, out[id].Coords) && !(len(in[id].Coords) == 0 && len(out[id].Coords) == 0) {
			t.Errorf("parcel %s coords changed:\n%v\n%v", id, in[id].Coords, out[id].Coords)
		}
		if *ptrOr(in[id].AreaValue) != *ptrOr(out[id].AreaValue) || in[id].Area != out[id].Area {
			t.Errorf("parcel %s area fields changed", id)
		}
	}
	if res.Outcomes[3].Reason != `name contains "администрат"` {
		t.Errorf("administrative building reason = %q", res.Outcomes[3].Reason)
	}
}

func ptrOr(v *float64) *float64 {
	if v == nil {
		z := -1.0
		return &z
	}
	return v
}

func TestTransformAreaInvariant(t *testing.T) {
	opts := Options{TargetWidthMeters: 25, TargetHeightMeters: 44, GapMeters: 1.5}
	res, err := Transform(decode(t, village), opts)
	if err != nil {
		t.Fatal(err)
	}

	scale := geo.NewScale(DefaultReferenceLatitude)
	want := 25.0 * 44.0
	for _, o := range res.Outcomes {
		if o.Status != StatusRegenerated {
			continue
		}
		p := res.Document[o.Index]
		if got := scale.AreaMeters(p.Coords); math.Abs(got-want) > 1e-6 {
			t.Errorf("parcel %s: area %v m², want %v", o.ID, got, want)
		}
		if p.AreaValue == nil || *p.AreaValue != want {
			t.Errorf("parcel %s: areaValue = %v, want %v", o.ID, p.AreaValue, want)
		}
		if p.Area != "11 соток" {
			t.Errorf("parcel %s: area label = %q, want %q", o.ID, p.Area, "11 соток")
		}
	}
}

func TestTransformRowLayout(t *testing.T) {
	res, err := Transform(decode(t, village), Options{})
	if err != nil {
		t.Fatal(err)
	}
	byKey := res.Document.ByKey()

	// Row 0 is ordered a-3, 1, 2 by first vertex x and starts at the left
	// edge of a-3.
	order := []string{"a-3", "1", "2"}
	if x := byKey["a-3"].Coords[0][0]; x != 44.9897 {
		t.Errorf("row start x = %v, want 44.9897", x)
	}
	for i := 1; i < len(order); i++ {
		left, right := byKey[order[i-1]].Coords, byKey[order[i]].Coords
		if right[0][0] != left[3][0] {
			t.Errorf("%s does not touch %s: %v vs %v", order[i], order[i-1], right[0][0], left[3][0])
		}
		if right[0][1] != left[0][1] || right[1][1] != left[1][1] {
			t.Errorf("%s and %s are not on the same band", order[i-1], order[i])
		}
	}
	if len(res.Rows) != 2 || res.Rows[0].Members != 3 || res.Rows[1].Members != 2 {
		t.Errorf("Rows = %+v", res.Rows)
	}
}

func TestTransformIsIdempotent(t *testing.T) {
	first, err := Transform(decode(t, village), Options{})
	if err != nil {
		t.Fatal(err)
	}
	once := encode(t, first.Document)

	second, err := Transform(decode(t, string(once)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	twice := encode(t, second.Document)

	if !bytes.Equal(once, twice) {
		t.Errorf("second run changed the document:\n%s\nwant:\n%s", twice, once)
	}
	for _, st := range second.Rows {
		if !st.Reused {
			t.Errorf("row %v did not reuse its band on the second run", st.Key)
		}
	}
}

// driftingRows has lots at centroid y 43.17400, 43.17420 and 43.17426. The
// third is just outside the first row's key, but once the first row is
// centered on its mean it lies within tolerance of the second row.
const driftingRows = `[
  {"id": 1, "coords": [[44.9899, 43.1741], [44.9899, 43.1739], [44.9901, 43.1739], [44.9901, 43.1741], [44.9899, 43.1741]]},
  {"id": 2, "coords": [[44.9903, 43.1743], [44.9903, 43.1741], [44.9905, 43.1741], [44.9905, 43.1743], [44.9903, 43.1743]]},
  {"id": 3, "coords": [[44.9907, 43.17436], [44.9907, 43.17416], [44.9909, 43.17416], [44.9909, 43.17436], [44.9907, 43.17436]]}
]`

func TestTransformRowsMergeAfterRecentering(t *testing.T) {
	first, err := Transform(decode(t, driftingRows), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Stats.Rows != 2 {
		t.Fatalf("first run rows = %d, want 2", first.Stats.Rows)
	}
	once := encode(t, first.Document)

	second, err := Transform(decode(t, string(once)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if second.Stats.Rows != 1 {
		t.Fatalf("second run rows = %d, want the recentered rows merged into 1", second.Stats.Rows)
	}
	twice := encode(t, second.Document)
	if bytes.Equal(once, twice) {
		t.Fatal("second run left the document unchanged, want the merged row re-laid")
	}

	// The merged layout is a fixed point.
	third, err := Transform(decode(t, string(twice)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := encode(t, third.Document); !bytes.Equal(got, twice) {
		t.Errorf("third run changed the document:\n%s\nwant:\n%s", got, twice)
	}
	if len(third.Rows) != 1 || !third.Rows[0].Reused {
		t.Errorf("third run rows = %+v, want one reused band", third.Rows)
	}
}

func TestInspectMatchesTransform(t *testing.T) {
	doc := decode(t, village)
	rep, err := Inspect(doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 2 {
		t.Fatalf("Inspect() rows = %d, want 2", len(rep.Rows))
	}
	if got := fmt.Sprint(rep.Rows[0].IDs); got != "[1 2 a-3]" {
		t.Errorf("row 0 ids = %s, want input order [1 2 a-3]", got)
	}
	if got := fmt.Sprint(rep.Rows[1].IDs); got != "[6 7]" {
		t.Errorf("row 1 ids = %s", got)
	}
	if got := fmt.Sprint(rep.Skipped); got != "[8 9]" {
		t.Errorf("skipped = %s", got)
	}

	res, err := Transform(doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range rep.Rows {
		if res.Rows[i].Key != row.Key || res.Rows[i].Members != row.Count {
			t.Errorf("row %d: inspect %v/%d, transform %v/%d", i, row.Key, row.Count, res.Rows[i].Key, res.Rows[i].Members)
		}
	}
}

func TestClassify(t *testing.T) {
	outcomes, st, err := Classify(decode(t, village), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Standard != 7 || st.Special != 2 || st.Skipped != 2 || st.Regenerated != 0 {
		t.Errorf("Stats = %+v", st)
	}
	if outcomes[0].Status != StatusPlanned || outcomes[4].Status != StatusSpecial {
		t.Errorf("statuses = %s, %s", outcomes[0].Status, outcomes[4].Status)
	}
	if outcomes[4].Reason != "area 2500 m² outside band" {
		t.Errorf("reason = %q", outcomes[4].Reason)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("default options should pass: %v", err)
	}
	if opts.ReferenceLatitude == nil || *opts.ReferenceLatitude != DefaultReferenceLatitude {
		t.Errorf("ReferenceLatitude = %v", opts.Latitude())
	}

	equator := Options{ReferenceLatitude: Latitude(0)}
	if err := equator.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("equator: %v", err)
	}
	if got := equator.Latitude(); got != 0 {
		t.Errorf("explicit 0 latitude became %v", got)
	}
	if s := equator.Scale(); s.Latitude != 0 || s.LonMeters != 111132.954 {
		t.Errorf("equator scale = %+v", s)
	}
	if opts.TargetWidthMeters != 30 || opts.TargetHeightMeters != 40 || opts.GapMeters != 0 {
		t.Errorf("target = %v × %v + %v", opts.TargetWidthMeters, opts.TargetHeightMeters, opts.GapMeters)
	}
	if opts.RowTolerance != 0.00025 {
		t.Errorf("RowTolerance = %v", opts.RowTolerance)
	}
	if len(opts.Policy.Keywords) == 0 || opts.Policy.Band.Min != 600 || opts.Policy.Band.Max != 2000 {
		t.Errorf("Policy = %+v", opts.Policy)
	}
	if opts.Logger == nil {
		t.Error("Logger not set")
	}

	// A custom keyword table keeps its entries but inherits the default band.
	custom := Options{Policy: classify.Policy{Keywords: []classify.Keyword{{Stem: "школа"}}}}
	custom.SetDefaults()
	if len(custom.Policy.Keywords) != 1 || custom.Policy.Band.Max != 2000 {
		t.Errorf("custom Policy = %+v", custom.Policy)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"southern latitude", Options{ReferenceLatitude: Latitude(-33.9)}, false},
		{"equator", Options{ReferenceLatitude: Latitude(0)}, false},
		{"gap", Options{GapMeters: 2}, false},
		{"latitude out of range", Options{ReferenceLatitude: Latitude(91)}, true},
		{"pole", Options{ReferenceLatitude: Latitude(90)}, true},
		{"negative width", Options{TargetWidthMeters: -1}, true},
		{"negative height", Options{TargetHeightMeters: -40}, true},
		{"negative gap", Options{GapMeters: -0.5}, true},
		{"negative tolerance", Options{RowTolerance: -0.001}, true},
		{"nan width", Options{TargetWidthMeters: math.NaN()}, true},
		{"inverted band", Options{Policy: classify.Policy{Band: classify.AreaBand{Min: 2000, Max: 600}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("error code = %s, want INVALID_CONFIG", errors.GetCode(err))
			}
		})
	}
}

func TestRunnerAlign(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "plotsData.json")
	if err := os.WriteFile(path, []byte(village), 0644); err != nil {
		t.Fatal(err)
	}
	src := store.NewFileStore(path)
	r := NewRunner(nil)

	// Dry run leaves the file alone.
	if _, err := r.Align(ctx, src, nil, Options{}, true); err != nil {
		t.Fatalf("dry run error = %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != village {
		t.Error("dry run wrote the document")
	}

	// A separate destination leaves the source alone.
	out := store.NewFileStore(filepath.Join(dir, "aligned.json"))
	res, err := r.Align(ctx, src, out, Options{}, false)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	got, err := os.ReadFile(out.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, encode(t, res.Document)) {
		t.Error("saved document differs from the result")
	}
	if data, _ := os.ReadFile(path); string(data) != village {
		t.Error("source was written despite a separate destination")
	}
}

func TestRunnerAlignFailsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plotsData.json")
	const broken = `{"not": "an array"}`
	if err := os.WriteFile(path, []byte(broken), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(nil)

	_, err := r.Align(ctx, store.NewFileStore(path), nil, Options{}, false)
	if !errors.Is(err, errors.ErrCodeMalformedDocument) {
		t.Errorf("Align() error = %v, want MALFORMED_DOCUMENT", err)
	}

	_, err = r.Align(ctx, store.NewFileStore(path), nil, Options{RowTolerance: -1}, false)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Align() error = %v, want INVALID_CONFIG", err)
	}

	if data, _ := os.ReadFile(path); string(data) != broken {
		t.Error("failed run modified the document")
	}
}

func TestRunnerInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotsData.json")
	if err := os.WriteFile(path, []byte(village), 0644); err != nil {
		t.Fatal(err)
	}
	rep, err := NewRunner(nil).Inspect(context.Background(), store.NewFileStore(path), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total() != 5 || len(rep.Rows) != 2 {
		t.Errorf("report = %+v", rep)
	}
}
