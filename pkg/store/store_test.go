package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/observability"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

const sample = `[
  {
    "id": 1,
    "name": "Участок 1",
    "price": "1 200 000",
    "coords": [[44.99, 43.174], [44.99, 43.1736], [44.9904, 43.1736], [44.9904, 43.174], [44.99, 43.174]]
  }
]
`

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plots.json")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path)
	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc) != 1 || doc[0].Name != "Участок 1" {
		t.Fatalf("Load() = %+v", doc)
	}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"price": "1 200 000"`, `"name": "Участок 1"`, `"id": 1,`} {
		if !strings.Contains(string(first), want) {
			t.Errorf("saved document lacks %s:\n%s", want, first)
		}
	}

	doc, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() after Save() error = %v", err)
	}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("second save differs:\n%s\nwant:\n%s", second, first)
	}
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "nested", "plots.json"))
	doc, err := parcel.Decode([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "plots.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want [plots.json]", names)
	}
}

func TestFileStoreErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.json")).Load(ctx)
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: error = %v, want FILE_NOT_FOUND", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"id": 1}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = NewFileStore(bad).Load(ctx)
	if !errors.Is(err, errors.ErrCodeMalformedDocument) {
		t.Errorf("object document: error = %v, want MALFORMED_DOCUMENT", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		uri      string
		backend  string
		location string
		code     errors.Code
	}{
		{uri: "plots.json", backend: SchemeFile, location: "plots.json"},
		{uri: "data/plots.json", backend: SchemeFile, location: "data/plots.json"},
		{uri: "file:///srv/data/plots.json", backend: SchemeFile, location: "/srv/data/plots.json"},
		{uri: "file://data/plots.json", backend: SchemeFile, location: "data/plots.json"},
		{uri: "redis://localhost:6379/0?key=plots", backend: SchemeRedis, location: "redis://localhost:6379/0?key=plots"},
		{uri: "redis://:secret@localhost:6379/1", backend: SchemeRedis, location: "redis://:xxxxx@localhost:6379/1"},
		{uri: "ftp://host/plots.json", code: errors.ErrCodeUnsupported},
		{uri: "", code: errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			s, err := Open(ctx, tt.uri)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Fatalf("Open() error = %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()
			if got := Backend(s); got != tt.backend {
				t.Errorf("Backend() = %q, want %q", got, tt.backend)
			}
			if got := s.Location(); got != tt.location {
				t.Errorf("Location() = %q, want %q", got, tt.location)
			}
		})
	}
}

func TestOpenRedisKey(t *testing.T) {
	s, err := Open(context.Background(), "redis://localhost:6379/2?key=site:plots")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rs := s.(*RedisStore)
	if rs.Key() != "site:plots" {
		t.Errorf("Key() = %q", rs.Key())
	}
	if db := rs.client.Options().DB; db != 2 {
		t.Errorf("DB = %d, want 2", db)
	}

	s2, err := Open(context.Background(), "redis://localhost:6379")
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if k := s2.(*RedisStore).Key(); k != DefaultRedisKey {
		t.Errorf("default Key() = %q, want %q", k, DefaultRedisKey)
	}
}

func TestOpenMongo(t *testing.T) {
	// Connecting does not dial; the driver discovers servers lazily.
	s, err := Open(context.Background(), "mongodb://localhost:27017/estate?collection=docs&name=village")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	ms := s.(*MongoStore)
	if ms.Name() != "village" {
		t.Errorf("Name() = %q", ms.Name())
	}
	if ms.coll.Name() != "docs" || ms.coll.Database().Name() != "estate" {
		t.Errorf("collection = %s.%s", ms.coll.Database().Name(), ms.coll.Name())
	}
	if strings.Contains(ms.Location(), "collection=") {
		t.Errorf("Location() kept store parameters: %q", ms.Location())
	}
}

type countingHooks struct {
	observability.NoopStoreHooks
	loads, saves int
	lastBackend  string
}

func (h *countingHooks) OnLoad(_ context.Context, backend string, _ int, _ time.Duration, _ error) {
	h.loads++
	h.lastBackend = backend
}

func (h *countingHooks) OnSave(_ context.Context, backend string, _ int, _ time.Duration, _ error) {
	h.saves++
	h.lastBackend = backend
}

func TestLoadSaveReportHooks(t *testing.T) {
	h := &countingHooks{}
	observability.SetStoreHooks(h)
	defer observability.Reset()

	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "plots.json"))
	if _, err := Load(ctx, s); err == nil {
		t.Fatal("Load() of missing file succeeded")
	}
	if err := Save(ctx, s, parcel.Document{}); err != nil {
		t.Fatal(err)
	}
	if h.loads != 1 || h.saves != 1 || h.lastBackend != SchemeFile {
		t.Errorf("hooks = %+v", h)
	}
}
