// Package store loads and saves whole parcel documents.
//
// A document lives behind a URI:
//
//	plots.json                              local file
//	file:///srv/data/plots.json             local file
//	redis://localhost:6379/0?key=plots      string value in redis
//	mongodb://localhost/parcelgrid?collection=documents&name=plots
//
// Every backend reads and writes the document in one piece; there is no
// per-parcel patching. Writers that may run concurrently must serialize
// saves themselves.
package store

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/observability"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// Store is a document location.
type Store interface {
	// Load reads and decodes the document. A document that does not parse
	// as a parcel array is reported as MALFORMED_DOCUMENT.
	Load(ctx context.Context) (parcel.Document, error)

	// Save replaces the stored document with doc.
	Save(ctx context.Context, doc parcel.Document) error

	// Location returns a printable form of the URI, without credentials.
	Location() string

	// Close releases connections held by the store.
	Close() error
}

// Backend schemes.
const (
	SchemeFile    = "file"
	SchemeRedis   = "redis"
	SchemeRediss  = "rediss"
	SchemeMongo   = "mongodb"
	SchemeMongoSR = "mongodb+srv"
)

// Open returns the store addressed by uri. Strings without a scheme are
// file paths.
func Open(ctx context.Context, uri string) (Store, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "document location is empty")
	}
	if !strings.Contains(uri, "://") {
		return NewFileStore(uri), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse document uri")
	}
	switch u.Scheme {
	case SchemeFile:
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		return NewFileStore(path), nil
	case SchemeRedis, SchemeRediss:
		return openRedis(u)
	case SchemeMongo, SchemeMongoSR:
		return openMongo(ctx, u)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported document scheme %q", u.Scheme)
	}
}

// Backend returns the scheme of s, for logs and metrics.
func Backend(s Store) string {
	switch s.(type) {
	case *RedisStore:
		return SchemeRedis
	case *MongoStore:
		return SchemeMongo
	default:
		return SchemeFile
	}
}

// Load reads the document from s and reports the load to the store hooks.
func Load(ctx context.Context, s Store) (parcel.Document, error) {
	start := time.Now()
	doc, err := s.Load(ctx)
	observability.Store().OnLoad(ctx, Backend(s), len(doc), time.Since(start), err)
	return doc, err
}

// Save writes doc to s and reports the save to the store hooks.
func Save(ctx context.Context, s Store, doc parcel.Document) error {
	start := time.Now()
	err := s.Save(ctx, doc)
	observability.Store().OnSave(ctx, Backend(s), len(doc), time.Since(start), err)
	return err
}

// takeParam removes key from the query of u and returns its value.
func takeParam(u *url.URL, key string) string {
	q := u.Query()
	v := q.Get(key)
	q.Del(key)
	u.RawQuery = q.Encode()
	return v
}
