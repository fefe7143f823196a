package coclust

// schema.go describes the external interface to the collaborator database
// layer (spec.md §6): the ordered attribute list, an optional frequency
// attribute, and the RowSource the tuple store reads from.

import (
	"reflect"

	"github.com/invertedv/chutils"
)

// AttributeKind distinguishes how an Attribute's domain is partitioned.
type AttributeKind int

const (
	// Numeric attributes are partitioned into half-open intervals.
	Numeric AttributeKind = 0 + iota
	// Categorical attributes are partitioned into value-sets.
	Categorical
)

//go:generate stringer -type=AttributeKind

func (k AttributeKind) String() string {
	switch k {
	case Numeric:
		return "Numeric"
	case Categorical:
		return "Categorical"
	default:
		return "Unknown"
	}
}

// AttributeDef names one participating variable and its kind (spec.md §3).
type AttributeDef struct {
	Name string
	Kind AttributeKind
}

// Schema is the ordered attribute list plus an optional frequency-attribute
// name whose value weights each row (spec.md §6).
type Schema struct {
	Attributes     []AttributeDef
	FrequencyField string // empty: every row has weight 1
}

// Validate checks the schema-level invariants of spec.md §7 ("Specification"
// errors): at least 2 coclustering variables, no empty or duplicate names,
// and the frequency field (if any) must not also be a coclustering
// attribute.
func (s Schema) Validate() error {
	if len(s.Attributes) < 2 {
		return Wrapf(ErrSpec, "schema must name at least 2 coclustering variables, got %d", len(s.Attributes))
	}

	seen := make(map[string]bool, len(s.Attributes))
	for _, a := range s.Attributes {
		if a.Name == "" {
			return Wrapper(ErrSpec, "attribute name cannot be empty")
		}

		if seen[a.Name] {
			return Wrapf(ErrSpec, "duplicate attribute name %q", a.Name)
		}

		seen[a.Name] = true

		if a.Name == s.FrequencyField {
			return Wrapf(ErrSpec, "frequency attribute %q cannot also be a coclustering attribute", a.Name)
		}
	}

	return nil
}

// IndexOf returns the position of name in the attribute list, or -1.
func (s Schema) IndexOf(name string) int {
	for i, a := range s.Attributes {
		if a.Name == name {
			return i
		}
	}

	return -1
}

// RowSource is the minimal interface the tuple store needs from a row
// stream: a fixed-arity tuple of (number | symbol) per row, read in batches,
// and the names of the fields on offer. Shaped
// after github.com/invertedv/chutils.Input so a chutils reader (CSV, fixed
// length, or ClickHouse) can be used directly via ChRowSource below.
type RowSource interface {
	// Read returns up to n rows (or all remaining rows if n<=0), and an
	// error of io.EOF once exhausted.
	Read(n int) ([][]any, error)
	// Reset rewinds the source to the first row.
	Reset() error
	// Fields returns the field names in file order.
	Fields() []string
}

// ChRowSource adapts a chutils.Input (a CSV/TSV file reader, a fixed-length
// reader, or a ClickHouse query reader) to RowSource, the same adaptation
// invertedv-seafan's ChData performs in ch.go's Init.
type ChRowSource struct {
	rdr chutils.Input
}

// NewChRowSource wraps rdr, an already-Init'd chutils.Input, as a RowSource.
func NewChRowSource(rdr chutils.Input) *ChRowSource {
	return &ChRowSource{rdr: rdr}
}

// Read returns up to n rows; unlike the RowSource contract, n<=0 reads a
// single row rather than all remaining rows.
func (c *ChRowSource) Read(n int) ([][]any, error) {
	if n <= 0 {
		n = 1
	}

	rows, _, err := c.rdr.Read(n, true)

	return rows, err
}

func (c *ChRowSource) Reset() error {
	return c.rdr.Reset()
}

func (c *ChRowSource) Fields() []string {
	fds := c.rdr.TableSpec().FieldDefs
	names := make([]string, len(fds))

	for i, fd := range fds {
		names[i] = fd.Name
	}

	return names
}

// fieldKind maps a chutils.ChType to an AttributeKind, mirroring the
// ChType-to-FRole switch in invertedv-seafan's ch.go (*ChData).Init.
func fieldKind(ct chutils.ChType) AttributeKind {
	switch ct {
	case chutils.ChDate, chutils.ChString, chutils.ChFixedString:
		return Categorical
	default:
		return Numeric
	}
}

// InferSchema builds a Schema from a chutils.Input's field defs, using
// fieldKind to classify each field and freqField (if non-empty) as the
// frequency attribute.
func InferSchema(rdr chutils.Input, freqField string) Schema {
	fds := rdr.TableSpec().FieldDefs
	attrs := make([]AttributeDef, 0, len(fds))

	for _, fd := range fds {
		if fd.Name == freqField {
			continue
		}

		attrs = append(attrs, AttributeDef{Name: fd.Name, Kind: fieldKind(fd.ChSpec.Base)})
	}

	return Schema{Attributes: attrs, FrequencyField: freqField}
}

// kindOfGoValue classifies a raw Go value the way reflect.Kind distinguishes
// numeric from string types, used when building tuples from non-chutils
// sources (e.g. in-memory rows in tests).
func kindOfGoValue(v any) AttributeKind {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int32, reflect.Int64:
		return Numeric
	default:
		return Categorical
	}
}
