// Package classify decides whether a parcel is a standard residential lot,
// eligible for rectangular regeneration, or a special parcel that must be
// left untouched.
//
// The decision is driven by a [Policy] table rather than literals so that
// the heuristics can be tuned from configuration and tested on their own.
// The keyword stems are a curated heuristic, not domain truth: they will
// both over- and under-classify on unusual names, and callers must treat a
// wrong answer as an ordinary outcome.
package classify

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/matzehuels/parcelgrid/pkg/parcel"
)

// Class is the outcome of classification.
type Class int

const (
	Standard Class = iota
	Special
)

func (c Class) String() string {
	if c == Special {
		return "special"
	}
	return "standard"
}

// Field names a text field a keyword applies to.
type Field string

const (
	FieldName    Field = "name"
	FieldPurpose Field = "purpose"
)

// Keyword is a case-insensitive substring that forces a special
// classification when found in one of Fields. Empty Fields means both
// name and purpose.
type Keyword struct {
	Stem   string  `toml:"stem" json:"stem"`
	Fields []Field `toml:"fields,omitempty" json:"fields,omitempty"`
}

// AreaBand is the acceptable nominal area range in square meters,
// inclusive on both ends.
type AreaBand struct {
	Min float64 `toml:"min" json:"min"`
	Max float64 `toml:"max" json:"max"`
}

// Contains reports whether v lies within the band.
func (b AreaBand) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Policy is the classification table.
type Policy struct {
	Keywords []Keyword `toml:"keywords" json:"keywords"`
	Statuses []string  `toml:"statuses,omitempty" json:"statuses,omitempty"`
	Band     AreaBand  `toml:"area_band" json:"area_band"`
}

// Default area band.
const (
	DefaultAreaMin = 600.0
	DefaultAreaMax = 2000.0
)

// DefaultPolicy returns the stock keyword table: parks, administrative
// buildings, kindergartens, sports complexes and multi-unit housing.
func DefaultPolicy() Policy {
	return Policy{
		Keywords: []Keyword{
			{Stem: "парк"},
			{Stem: "администрат"},
			{Stem: "сад", Fields: []Field{FieldName}},
			{Stem: "фюк"},
			{Stem: "фок"},
			{Stem: "мкд", Fields: []Field{FieldName}},
			{Stem: "многоквартир", Fields: []Field{FieldPurpose}},
			{Stem: "спорт"},
		},
		Band: AreaBand{Min: DefaultAreaMin, Max: DefaultAreaMax},
	}
}

// Validate checks the policy for obviously broken entries.
func (p Policy) Validate() error {
	for i, k := range p.Keywords {
		if strings.TrimSpace(k.Stem) == "" {
			return fmt.Errorf("keyword %d: empty stem", i)
		}
		for _, f := range k.Fields {
			if f != FieldName && f != FieldPurpose {
				return fmt.Errorf("keyword %q: unknown field %q", k.Stem, f)
			}
		}
	}
	if p.Band.Min > p.Band.Max {
		return fmt.Errorf("area band min %g exceeds max %g", p.Band.Min, p.Band.Max)
	}
	return nil
}

// Reason explains a classification.
type Reason struct {
	Class Class
	Rule  string // "keyword", "status", "area" or "" for standard
	Match string // the stem, status or area value that triggered the rule
	Field Field  // field the keyword matched in, for keyword rules
}

func (r Reason) String() string {
	switch r.Rule {
	case "keyword":
		return fmt.Sprintf("%s contains %q", r.Field, r.Match)
	case "status":
		return fmt.Sprintf("status matches %q", r.Match)
	case "area":
		return fmt.Sprintf("area %s m² outside band", r.Match)
	}
	return "standard lot"
}

// Classifier applies a Policy. It is safe for concurrent use.
type Classifier struct {
	policy   Policy
	keywords []Keyword // folded stems
	statuses []string
}

// New builds a classifier for the policy.
func New(p Policy) *Classifier {
	c := &Classifier{policy: p}
	for _, k := range p.Keywords {
		c.keywords = append(c.keywords, Keyword{Stem: c.lower(k.Stem), Fields: k.Fields})
	}
	for _, s := range p.Statuses {
		c.statuses = append(c.statuses, c.lower(s))
	}
	return c
}

// Policy returns the table the classifier was built from.
func (c *Classifier) Policy() Policy { return c.policy }

// Classify returns the class of p.
func (c *Classifier) Classify(p *parcel.Parcel) Class {
	return c.Explain(p).Class
}

// Explain returns the class of p along with the rule that decided it.
// Keyword rules are checked first, then statuses, then the area band; an
// explicit "large lot" label does not exempt a parcel from the band.
func (c *Classifier) Explain(p *parcel.Parcel) Reason {
	name := c.lower(p.Name)
	purpose := c.lower(p.Purpose)

	for _, k := range c.keywords {
		if applies(k, FieldName) && strings.Contains(name, k.Stem) {
			return Reason{Class: Special, Rule: "keyword", Match: k.Stem, Field: FieldName}
		}
		if applies(k, FieldPurpose) && strings.Contains(purpose, k.Stem) {
			return Reason{Class: Special, Rule: "keyword", Match: k.Stem, Field: FieldPurpose}
		}
	}

	if len(c.statuses) > 0 {
		status := c.lower(p.Status)
		for _, s := range c.statuses {
			if strings.Contains(status, s) {
				return Reason{Class: Special, Rule: "status", Match: s}
			}
		}
	}

	if p.AreaValue != nil && !c.policy.Band.Contains(*p.AreaValue) {
		return Reason{Class: Special, Rule: "area", Match: fmt.Sprintf("%g", *p.AreaValue)}
	}

	return Reason{Class: Standard}
}

// Partition splits parcels into standard and special, preserving order.
func (c *Classifier) Partition(parcels []*parcel.Parcel) (standard, special []*parcel.Parcel) {
	for _, p := range parcels {
		if c.Classify(p) == Special {
			special = append(special, p)
		} else {
			standard = append(standard, p)
		}
	}
	return standard, special
}

// lower case-folds s. Casers carry state, so each call gets its own.
func (c *Classifier) lower(s string) string {
	return cases.Fold().String(s)
}

func applies(k Keyword, f Field) bool {
	if len(k.Fields) == 0 {
		return true
	}
	for _, x := range k.Fields {
		if x == f {
			return true
		}
	}
	return false
}
