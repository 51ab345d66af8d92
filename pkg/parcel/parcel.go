package parcel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Recognized record keys.
const (
	KeyID        = "id"
	KeyName      = "name"
	KeyPurpose   = "purpose"
	KeyStatus    = "status"
	KeyArea      = "area"
	KeyAreaValue = "areaValue"
	KeyCoords    = "coords"
)

// Parcel is one land-parcel record.
//
// The exported fields are decoded views of the recognized keys. The raw
// record is kept alongside so that unknown keys and key order survive a
// round trip.
type Parcel struct {
	ID        json.RawMessage // opaque; string or number
	Name      string
	Purpose   string
	Status    string
	Area      string   // human-readable label, e.g. "12 соток"
	AreaValue *float64 // nominal area in m²; nil when absent
	Coords    orb.Ring

	fields  []field
	touched bool
}

type field struct {
	key string
	raw json.RawMessage
}

// Key renders the parcel id as text: strings are unquoted, numbers are
// printed as written. Parcels without an id return "".
func (p *Parcel) Key() string {
	if len(p.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.ID, &s); err == nil {
		return s
	}
	return string(p.ID)
}

// SetGeometry replaces the polygon and keeps the area fields consistent
// with it. It is the only mutation the core performs on a record.
func (p *Parcel) SetGeometry(coords orb.Ring, areaValue float64, areaLabel string) {
	p.Coords = coords
	v := areaValue
	p.AreaValue = &v
	p.Area = areaLabel
	p.touched = true
}

// Extra returns the raw value of a key the model does not interpret.
func (p *Parcel) Extra(key string) (json.RawMessage, bool) {
	for _, f := range p.fields {
		if f.key == key {
			return f.raw, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the parcel.
func (p *Parcel) Clone() *Parcel {
	c := *p
	c.ID = append(json.RawMessage(nil), p.ID...)
	if p.AreaValue != nil {
		v := *p.AreaValue
		c.AreaValue = &v
	}
	if p.Coords != nil {
		c.Coords = append(orb.Ring(nil), p.Coords...)
	}
	if p.fields != nil {
		c.fields = make([]field, len(p.fields))
		for i, f := range p.fields {
			c.fields[i] = field{key: f.key, raw: append(json.RawMessage(nil), f.raw...)}
		}
	}
	return &c
}

// UnmarshalJSON decodes a record, remembering every key in order.
func (p *Parcel) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("parcel must be a JSON object")
	}

	*p = Parcel{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if err := p.decodeField(key, raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		p.fields = append(p.fields, field{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func (p *Parcel) decodeField(key string, raw json.RawMessage) error {
	switch key {
	case KeyID:
		p.ID = append(json.RawMessage(nil), raw...)
	case KeyName:
		return decodeText(raw, &p.Name)
	case KeyPurpose:
		return decodeText(raw, &p.Purpose)
	case KeyStatus:
		return decodeText(raw, &p.Status)
	case KeyArea:
		return decodeText(raw, &p.Area)
	case KeyAreaValue:
		v, err := decodeAreaValue(raw)
		if err != nil {
			return err
		}
		p.AreaValue = v
	case KeyCoords:
		var ring orb.Ring
		if err := json.Unmarshal(raw, &ring); err != nil {
			return err
		}
		p.Coords = ring
	}
	return nil
}

// MarshalJSON writes the record back in its original key order. Untouched
// records reproduce their decoded values verbatim.
func (p *Parcel) MarshalJSON() ([]byte, error) {
	fields := p.fields
	if fields == nil {
		fields = p.canonicalFields()
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(fields))
	for i, f := range fields {
		raw := f.raw
		if p.touched && isGeometryKey(f.key) {
			var err error
			if raw, err = p.encodeGeometryField(f.key); err != nil {
				return nil, err
			}
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, f.key, raw); err != nil {
			return nil, err
		}
		written[f.key] = true
	}
	if p.touched {
		for _, key := range []string{KeyArea, KeyAreaValue, KeyCoords} {
			if written[key] {
				continue
			}
			raw, err := p.encodeGeometryField(key)
			if err != nil {
				return nil, err
			}
			if buf.Len() > 1 {
				buf.WriteByte(',')
			}
			if err := writeMember(&buf, key, raw); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalFields builds a record for parcels constructed in code.
func (p *Parcel) canonicalFields() []field {
	var out []field
	add := func(key string, v any) {
		raw, err := marshalNoEscape(v)
		if err == nil {
			out = append(out, field{key: key, raw: raw})
		}
	}
	if len(p.ID) > 0 {
		out = append(out, field{key: KeyID, raw: p.ID})
	}
	add(KeyName, p.Name)
	add(KeyPurpose, p.Purpose)
	add(KeyStatus, p.Status)
	add(KeyArea, p.Area)
	add(KeyAreaValue, p.AreaValue)
	add(KeyCoords, p.Coords)
	return out
}

func (p *Parcel) encodeGeometryField(key string) (json.RawMessage, error) {
	switch key {
	case KeyArea:
		return marshalNoEscape(p.Area)
	case KeyAreaValue:
		return marshalNoEscape(p.AreaValue)
	default:
		return marshalNoEscape(p.Coords)
	}
}

func isGeometryKey(key string) bool {
	return key == KeyArea || key == KeyAreaValue || key == KeyCoords
}

func writeMember(buf *bytes.Buffer, key string, raw json.RawMessage) error {
	k, err := marshalNoEscape(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(raw)
	return nil
}

// marshalNoEscape is json.Marshal without HTML escaping, so labels such as
// "<ИЖС>" round-trip byte for byte.
func marshalNoEscape(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeText(raw json.RawMessage, dst *string) error {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s != nil {
		*dst = *s
	}
	return nil
}

// decodeAreaValue accepts a number, a numeric string or null. A string that
// does not parse counts as absent.
func decodeAreaValue(raw json.RawMessage) (*float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(x, ",", ".")), 64)
		if err != nil {
			return nil, nil
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("areaValue must be a number, got %T", v)
	}
}
