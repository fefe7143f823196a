package coclust

// tuplestore.go implements the tuple store (spec.md §3): a deduplicated,
// frequency-weighted sample of input rows read from the collaborator
// database layer. Grounded on invertedv-seafan's CSVToPipe/SQLToPipe
// (pipeline.go) for the read-loop shape, and gdata.go/data.go's Desc for the
// descriptive-stats pass.

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

const maxFrequencyWeight = math.MaxInt32

// suspendEvery is how often the loader checks the cancellation token while
// draining a row source, spec.md §5.
const suspendEvery = 65536

// Tuple is one distinct, frequency-weighted row: an ordered key of
// attribute values (each a float64 for Numeric, a string for Categorical)
// and a positive frequency.
type Tuple struct {
	Values    []any
	Frequency int64
}

// key returns a comparable map key for Values, used to dedupe incoming rows.
func (t Tuple) key() string {
	var sb strings.Builder
	for i, v := range t.Values {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		fmt.Fprintf(&sb, "%v", v)
	}

	return sb.String()
}

// numericSummary is the descriptive stats kept for a numeric attribute,
// grounded on invertedv-seafan's data.go Desc (mean/std/quantiles) and
// original_source's CCHDGAttribute Min/Max fields.
type numericSummary struct {
	Min, Max   float64
	Mean, Std  float64
}

// categoricalSummary is the descriptive stats kept for a categorical
// attribute: the distinct observed values in first-seen order and their
// total counts, mirroring invertedv-seafan's Levels/ByCounts (data.go).
type categoricalSummary struct {
	Values []string
	Counts map[string]int64
}

// TupleStore holds the deduplicated, frequency-weighted sample read from the
// collaborator database layer (spec.md §3). Immutable once built.
type TupleStore struct {
	Schema Schema
	Tuples []Tuple
	N      int64 // sum of frequencies, the effective sample size

	numeric      map[string]*numericSummary
	categorical  map[string]*categoricalSummary
	rowsRead     int64
	rowsSkipped  int64
}

// RowsRead and RowsSkipped report the ingestion statistics of spec.md §7
// ("rows-read statistic reflects surviving rows").
func (ts *TupleStore) RowsRead() int64    { return ts.rowsRead }
func (ts *TupleStore) RowsSkipped() int64 { return ts.rowsSkipped }

// NumericSummary returns the descriptive stats for a numeric attribute, or
// nil if name isn't numeric.
func (ts *TupleStore) NumericSummary(name string) *numericSummary {
	return ts.numeric[name]
}

// CategoricalSummary returns the descriptive stats for a categorical
// attribute, or nil if name isn't categorical.
func (ts *TupleStore) CategoricalSummary(name string) *categoricalSummary {
	return ts.categorical[name]
}

// builder accumulates tuples during ingestion before NewTupleStore finalizes
// descriptive stats and sorts the result for determinism (P6).
type tupleBuilder struct {
	schema      Schema
	freqIdx     int // index of FrequencyField within the raw row, or -1
	byKey       map[string]*Tuple
	order       []string
	numericVals map[string][]float64
	catCounts   map[string]map[string]int64
	catOrder    map[string][]string
	rowsRead    int64
	rowsSkipped int64
}

func newTupleBuilder(schema Schema, freqIdx int) *tupleBuilder {
	b := &tupleBuilder{
		schema:      schema,
		freqIdx:     freqIdx,
		byKey:       make(map[string]*Tuple),
		numericVals: make(map[string][]float64),
		catCounts:   make(map[string]map[string]int64),
		catOrder:    make(map[string][]string),
	}

	for _, a := range schema.Attributes {
		if a.Kind == Categorical {
			b.catCounts[a.Name] = make(map[string]int64)
		}
	}

	return b
}

// addRow ingests one raw row (in schema-attribute order plus, if present,
// the raw frequency column), applying spec.md §6's weight rules: rounding,
// dropping non-positive weights, rejecting weights over 2^31-1.
func (b *tupleBuilder) addRow(e *Engine, raw []any) error {
	b.rowsRead++

	freq := int64(1)

	if b.freqIdx >= 0 {
		fv, ok := toFloat(raw[b.freqIdx])
		if !ok {
			b.rowsSkipped++
			e.Warnf("data-row", "row %d: non-numeric frequency value %v, skipped", b.rowsRead, raw[b.freqIdx])

			return nil
		}

		rounded := math.Round(fv)

		if rounded > maxFrequencyWeight {
			return Wrapf(ErrIO, "row %d: frequency weight %v exceeds %d, rejecting file", b.rowsRead, raw[b.freqIdx], maxFrequencyWeight)
		}

		if rounded <= 0 {
			b.rowsSkipped++
			e.Warnf("data-row", "row %d: non-positive frequency weight %v, skipped", b.rowsRead, raw[b.freqIdx])

			return nil
		}

		freq = int64(rounded)
	}

	values := make([]any, len(b.schema.Attributes))

	for i, a := range b.schema.Attributes {
		v := rowValueFor(raw, b.schema, b.freqIdx, i)

		switch a.Kind {
		case Numeric:
			fv, ok := toFloat(v)
			if !ok {
				b.rowsSkipped++
				e.Warnf("data-row", "row %d: malformed numeric value %v for %s, skipped", b.rowsRead, v, a.Name)

				return nil
			}

			values[i] = fv
			b.numericVals[a.Name] = append(b.numericVals[a.Name], fv)
		case Categorical:
			sv := fmt.Sprintf("%v", v)
			values[i] = sv

			if b.catCounts[a.Name][sv] == 0 {
				b.catOrder[a.Name] = append(b.catOrder[a.Name], sv)
			}

			b.catCounts[a.Name][sv] += freq
		}
	}

	t := Tuple{Values: values, Frequency: freq}
	k := t.key()

	if existing, ok := b.byKey[k]; ok {
		if existing.Frequency+freq > maxFrequencyWeight {
			b.rowsSkipped++
			e.Warnf("data-row", "row %d: cumulative frequency for tuple would exceed %d, skipped", b.rowsRead, maxFrequencyWeight)

			return nil
		}

		existing.Frequency += freq

		return nil
	}

	b.byKey[k] = &t
	b.order = append(b.order, k)

	return nil
}

// rowValueFor extracts the value for coclustering-attribute index i from a
// raw row that may also carry a frequency column at freqIdx.
func rowValueFor(raw []any, schema Schema, freqIdx, i int) any {
	if freqIdx < 0 {
		return raw[i]
	}

	// attribute i is the i-th non-frequency column; raw includes the
	// frequency column interleaved wherever the caller placed it.
	seen := 0
	for col, v := range raw {
		if col == freqIdx {
			continue
		}

		if seen == i {
			return v
		}

		seen++
	}

	return nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		trimmed := strings.TrimSpace(x)
		if trimmed == "" {
			return 0, false
		}

		var f float64
		if _, err := fmt.Sscanf(trimmed, "%g", &f); err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func (b *tupleBuilder) finish() *TupleStore {
	sort.Strings(b.order)

	tuples := make([]Tuple, 0, len(b.order))

	var n int64
	for _, k := range b.order {
		t := b.byKey[k]
		tuples = append(tuples, *t)
		n += t.Frequency
	}

	ts := &TupleStore{
		Schema:      b.schema,
		Tuples:      tuples,
		N:           n,
		numeric:     make(map[string]*numericSummary),
		categorical: make(map[string]*categoricalSummary),
		rowsRead:    b.rowsRead,
		rowsSkipped: b.rowsSkipped,
	}

	for _, a := range b.schema.Attributes {
		switch a.Kind {
		case Numeric:
			vals := append([]float64(nil), b.numericVals[a.Name]...)
			sort.Float64s(vals)

			s := &numericSummary{}
			if len(vals) > 0 {
				s.Min, s.Max = vals[0], vals[len(vals)-1]
				s.Mean, s.Std = stat.MeanStdDev(vals, nil)
			}

			ts.numeric[a.Name] = s
		case Categorical:
			ts.categorical[a.Name] = &categoricalSummary{
				Values: append([]string(nil), b.catOrder[a.Name]...),
				Counts: b.catCounts[a.Name],
			}
		}
	}

	return ts
}

// NewTupleStore drains src into a TupleStore, applying schema.Validate
// first. If schema.FrequencyField is set, src.Fields() must contain it;
// its column is used as the row weight and excluded from the tuple key.
func NewTupleStore(e *Engine, src RowSource, schema Schema) (*TupleStore, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	freqIdx := -1

	if schema.FrequencyField != "" {
		fields := src.Fields()

		for i, f := range fields {
			if f == schema.FrequencyField {
				freqIdx = i
				break
			}
		}

		if freqIdx < 0 {
			return nil, Wrapf(ErrSpec, "frequency field %q not found in row source", schema.FrequencyField)
		}
	}

	b := newTupleBuilder(schema, freqIdx)

	rowCount := 0

	for {
		rows, err := src.Read(1)
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, Wrapper(ErrIO, err.Error())
		}

		for _, raw := range rows {
			if addErr := b.addRow(e, raw); addErr != nil {
				return nil, addErr
			}

			rowCount++
			if rowCount%suspendEvery == 0 && e.Token().Requested() {
				return b.finish(), Wrapper(ErrResource, "interrupted while loading tuples")
			}
		}
	}

	return b.finish(), nil
}

// NewChTupleStore is NewTupleStore under another name: it takes any
// RowSource, typically a ChRowSource wrapping an already-Init'd
// chutils.Input (the caller does the wrapping), the pattern
// invertedv-seafan's CSVToPipe/SQLToPipe use to turn a reader into usable
// data (pipeline.go).
func NewChTupleStore(e *Engine, src RowSource, schema Schema) (*TupleStore, error) {
	return NewTupleStore(e, src, schema)
}
