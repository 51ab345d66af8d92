package parcel

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/matzehuels/parcelgrid/pkg/errors"
)

// Document is the ordered parcel collection. Order is significant and is
// preserved on write.
type Document []*Parcel

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for i, p := range d {
		out[i] = p.Clone()
	}
	return out
}

// ByKey indexes parcels by their rendered id. Parcels without an id are
// left out.
func (d Document) ByKey() map[string]*Parcel {
	m := make(map[string]*Parcel, len(d))
	for _, p := range d {
		if k := p.Key(); k != "" {
			m[k] = p
		}
	}
	return m
}

//go:embed schema/document.schema.json
var schemaJSON []byte

const schemaURL = "document.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks that data is a JSON array of parcel-shaped objects.
func Validate(data []byte) error {
	sch, err := documentSchema()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "compile document schema")
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return errors.Wrap(errors.ErrCodeMalformedDocument, err, "document is not valid JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New(errors.ErrCodeMalformedDocument, "document has data after the top-level array")
	}
	if err := sch.Validate(v); err != nil {
		return errors.Wrap(errors.ErrCodeMalformedDocument, err, "document does not match the parcel schema")
	}
	return nil
}

// Decode validates and decodes a document.
func Decode(data []byte) (Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "decode parcels")
	}
	seen := make(map[string]int, len(doc))
	for i, p := range doc {
		if len(p.ID) == 0 {
			continue
		}
		k := string(p.ID)
		if j, dup := seen[k]; dup {
			return nil, errors.New(errors.ErrCodeMalformedDocument,
				"duplicate id %s at records %d and %d", p.Key(), j, i)
		}
		seen[k] = i
	}
	return doc, nil
}

// Read decodes a document from r.
func Read(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Decode(data)
}

// Encode serializes the document with two-space indentation and without
// escaping non-ASCII or HTML characters. The output ends with a newline.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes the document to w.
func Write(doc Document, w io.Writer) error {
	if doc == nil {
		doc = Document{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
