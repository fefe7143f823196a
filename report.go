package coclust

// report.go implements the report writer of spec.md §6: the final
// HierarchicalDataGrid result type, its .khc text and optional .khcj JSON
// serialization (atomic write via temp-file-then-rename), and an optional
// go-plotly dendrogram visualization. Grounded on invertedv-seafan's
// diags.go/plot.go for the go-plotly trace-building idiom, generalized here
// from ROC/KS curves to a dendrogram's merge tree.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
)

// AttributeReport is the descriptive-stats and dendrogram summary of one
// attribute in a HierarchicalDataGrid (spec.md §6: "descriptive stats per
// attribute (min/max or value frequencies)" plus "the final
// HierarchicalDataGrid with all dendrogram annotations").
type AttributeReport struct {
	Name              string   `json:"name"`
	Kind              string   `json:"kind"`
	InitialPartNumber int      `json:"initialPartNumber"`
	FinalPartNumber   int      `json:"finalPartNumber"`
	Min               float64  `json:"min,omitempty"`
	Max               float64  `json:"max,omitempty"`
	Values            []string `json:"values,omitempty"`

	// Description/UserLabel are free-text fields a caller may attach,
	// carried through to the report (original_source CCHDGAttribute
	// GetDescription/GetUserLabel, supplemented into SPEC_FULL).
	Description string `json:"description,omitempty"`
	UserLabel   string `json:"userLabel,omitempty"`

	// Dendrogram is the attribute's full binary merge tree (spec.md §4.4),
	// nil until BuildHierarchy has run. Carries every annotation spec.md
	// names: HierarchicalLevel, Rank, HierarchicalRank, Interest, and (for
	// categorical leaves) per-value Typicality.
	Dendrogram *DendrogramNodeReport `json:"dendrogram,omitempty"`
}

// DendrogramNodeReport is the serializable form of one HDGPart: a leaf (a
// part of the optimized grid) or an internal node with two children,
// carrying every field spec.md §3/§4.4 names for a dendrogram node.
type DendrogramNodeReport struct {
	Name              string  `json:"name"`
	IsLeaf            bool    `json:"isLeaf"`
	Frequency         int64   `json:"frequency"`
	HierarchicalLevel float64 `json:"hierarchicalLevel"`
	Rank              int     `json:"rank"`
	HierarchicalRank  int     `json:"hierarchicalRank"`
	Interest          float64 `json:"interest"`

	// Typicality holds, for a leaf node of a categorical attribute, the
	// per-value typicality scores of spec.md §4.4's last paragraph; nil
	// for numeric attributes and internal nodes.
	Typicality map[string]float64 `json:"typicality,omitempty"`

	// Left/Right are nil for a leaf, non-nil for an internal node
	// (spec.md §3: "an internal node with exactly two children").
	Left  *DendrogramNodeReport `json:"left,omitempty"`
	Right *DendrogramNodeReport `json:"right,omitempty"`
}

// buildDendrogramReport walks h's arena from idx, producing the nested
// serializable tree rooted there (spec.md §4.4's HDGPart fields, carried
// verbatim onto the report).
func buildDendrogramReport(h *Hierarchy, idx int) *DendrogramNodeReport {
	n := h.Nodes[idx]

	rep := &DendrogramNodeReport{
		Name:              n.Name,
		IsLeaf:            n.IsLeaf(),
		Frequency:         n.Frequency,
		HierarchicalLevel: n.HierarchicalLevel,
		Rank:              n.Rank,
		HierarchicalRank:  n.HierarchicalRank,
		Interest:          n.Interest,
		Typicality:        n.Typicality,
	}

	if !n.IsLeaf() {
		rep.Left = buildDendrogramReport(h, n.Left)
		rep.Right = buildDendrogramReport(h, n.Right)
	}

	return rep
}

// HierarchicalDataGrid is the final result handed back to the collaborator
// (spec.md §6): the optimized grid's attributes with their dendrograms,
// plus the headline cost figures.
type HierarchicalDataGrid struct {
	// ShortDescription is a caller-supplied one-line summary carried onto
	// the report (original_source CCHierarchicalDataGrid::GetShortDescription,
	// supplemented into SPEC_FULL).
	ShortDescription string `json:"shortDescription,omitempty"`

	// IdentifierAttributeName/DatabaseSpecName name, in IV mode, which
	// attribute holds row identifiers and which database spec the grid was
	// built from (original_source CCHierarchicalDataGrid
	// GetIdentifierAttributeName/GetDatabaseSpecName, supplemented into
	// SPEC_FULL).
	IdentifierAttributeName string `json:"identifierAttributeName,omitempty"`
	DatabaseSpecName        string `json:"databaseSpecName,omitempty"`

	NullCost                float64            `json:"nullCost"`
	Cost                    float64            `json:"cost"`
	Level                   float64            `json:"level"`
	InitialAttributeNumber  int                `json:"initialAttributeNumber"`
	Attributes              []AttributeReport  `json:"attributes"`

	grid *DataGrid
}

// NewHierarchicalDataGrid assembles the report from the optimized grid.
// Each numeric attribute's bounds (Attribute.Min/Max, copied from the tuple
// store's descriptive stats when the grid was built) go onto its
// AttributeReport; ts itself is not read.
func NewHierarchicalDataGrid(ts *TupleStore, g *DataGrid, cost CostModel) *HierarchicalDataGrid {
	nullCost := cost.NullCost(g)
	total := cost.Total(g)

	hdg := &HierarchicalDataGrid{
		NullCost:               nullCost,
		Cost:                   total,
		Level:                  Level(total, nullCost),
		InitialAttributeNumber: len(g.Attributes),
		grid:                   g,
	}

	for _, a := range g.Attributes {
		ar := AttributeReport{
			Name:              a.Name,
			Kind:              a.Kind.String(),
			InitialPartNumber: a.InitialPartNumber,
			FinalPartNumber:   a.PartCount(),
			Description:       a.Description,
		}

		switch a.Kind {
		case Numeric:
			ar.Min, ar.Max = a.Min, a.Max
		case Categorical:
			ar.Values = append([]string(nil), a.Values...)
		}

		if h := a.Hierarchy(); h != nil && len(h.Nodes) > 0 {
			ar.Dendrogram = buildDendrogramReport(h, h.Root)
		}

		hdg.Attributes = append(hdg.Attributes, ar)
	}

	return hdg
}

// AnytimeSnapshot pairs an intermediate HierarchicalDataGrid with the
// filename it was (or will be) written to, spec.md §6's "ordered list of
// anytime intermediate grids with their filenames".
type AnytimeSnapshot struct {
	Level    int
	FileName string
	Report   *HierarchicalDataGrid
}

// WriteKHC writes the report in the plain-text .khc format to path, via a
// temp-file-then-rename so a concurrent reader never observes a partial
// file (spec.md §6, B2's "never a half-written file").
func (hdg *HierarchicalDataGrid) WriteKHC(path string) error {
	return atomicWrite(path, func(f *os.File) error {
		w := newKHCWriter(f)

		fmt.Fprintf(w, "Coclustering report\n")

		if hdg.ShortDescription != "" {
			fmt.Fprintf(w, "Short description\t%s\n", hdg.ShortDescription)
		}

		fmt.Fprintf(w, "Initial attribute number\t%d\n", hdg.InitialAttributeNumber)
		fmt.Fprintf(w, "Null cost\t%.6f\n", hdg.NullCost)
		fmt.Fprintf(w, "Cost\t%.6f\n", hdg.Cost)
		fmt.Fprintf(w, "Level\t%.6f\n", hdg.Level)
		fmt.Fprintf(w, "\n")

		for _, a := range hdg.Attributes {
			fmt.Fprintf(w, "Attribute\t%s\t%s\n", a.Name, a.Kind)
			fmt.Fprintf(w, "\tInitial parts\t%d\n", a.InitialPartNumber)
			fmt.Fprintf(w, "\tFinal parts\t%d\n", a.FinalPartNumber)

			switch a.Kind {
			case "Numeric":
				fmt.Fprintf(w, "\tMin\t%g\n", a.Min)
				fmt.Fprintf(w, "\tMax\t%g\n", a.Max)
			case "Categorical":
				fmt.Fprintf(w, "\tValues\t%d\n", len(a.Values))
			}

			if a.Dendrogram != nil {
				fmt.Fprintf(w, "\tDendrogram\n")
				writeDendrogramNode(w, a.Dendrogram, 2)
			}
		}

		return w.err
	})
}

// writeDendrogramNode prints one dendrogram node and, recursively, its
// children, indented by depth tabs (spec.md §6: "all dendrogram
// annotations"). Leaves and internal nodes share the same annotation line;
// only leaves may carry a Typicality block.
func writeDendrogramNode(w *khcWriter, n *DendrogramNodeReport, depth int) {
	indent := strings.Repeat("\t", depth)

	kind := "Node"
	if n.IsLeaf {
		kind = "Leaf"
	}

	fmt.Fprintf(w, "%s%s\t%s\tfrequency=%d\tlevel=%.10g\trank=%d\thierarchicalRank=%d\tinterest=%.6f\n",
		indent, kind, n.Name, n.Frequency, n.HierarchicalLevel, n.Rank, n.HierarchicalRank, n.Interest)

	if len(n.Typicality) > 0 {
		values := make([]string, 0, len(n.Typicality))
		for v := range n.Typicality {
			values = append(values, v)
		}

		sort.Strings(values)

		for _, v := range values {
			fmt.Fprintf(w, "%s\tTypicality\t%s\t%.6f\n", indent, v, n.Typicality[v])
		}
	}

	if !n.IsLeaf {
		writeDendrogramNode(w, n.Left, depth+1)
		writeDendrogramNode(w, n.Right, depth+1)
	}
}

// WriteKHCJ writes the report as indented JSON to path, via the same
// atomic-write discipline as WriteKHC (spec.md §6: "optional .khcj JSON").
func (hdg *HierarchicalDataGrid) WriteKHCJ(path string) error {
	return atomicWrite(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")

		return enc.Encode(hdg)
	})
}

// ReadKHCJ reads back a report written by WriteKHCJ, the reverse direction
// needed for spec.md §8 R1 ("writing a hierarchy to a report and re-reading
// it yields a structurally equal hierarchy"). The .khcj JSON twin round-
// trips exactly (encoding/json's float64 marshaling is already lossless),
// so this is the report format R1's round-trip law is checked against; the
// plain-text .khc format (WriteKHC) is a display rendering, not re-parsed.
func ReadKHCJ(path string) (*HierarchicalDataGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Wrapf(ErrIO, "reading %s: %v", path, err)
	}

	var hdg HierarchicalDataGrid
	if err := json.Unmarshal(data, &hdg); err != nil {
		return nil, Wrapf(ErrIO, "parsing %s: %v", path, err)
	}

	return &hdg, nil
}

// atomicWrite writes to a temp file beside path and renames it into place
// on success, removing the temp file on any failure (spec.md §6/B2: atomic
// write via temp-file-then-rename, cleaning up stale intermediates).
func atomicWrite(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return Wrapf(ErrIO, "creating temp file for %s: %v", path, err)
	}

	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return Wrapf(ErrIO, "writing %s: %v", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return Wrapf(ErrIO, "closing %s: %v", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return Wrapf(ErrIO, "renaming %s into place: %v", path, err)
	}

	return nil
}

// khcWriter is a tiny fmt.Fprintf sink that remembers the first write error,
// so WriteKHC's body can chain calls without checking each one.
type khcWriter struct {
	f   *os.File
	err error
}

func newKHCWriter(f *os.File) *khcWriter {
	return &khcWriter{f: f}
}

func (w *khcWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	n, err := w.f.Write(p)
	if err != nil {
		w.err = err
	}

	return n, err
}

// PlotDendrogram renders attribute name's dendrogram as a go-plotly figure:
// a single scatter trace with one marker per node (leaves and internal
// merges), x = hierarchical_level, y = rank,
// grounded on invertedv-seafan's diags.go scatter-trace construction
// (KSPlot), generalized from two named curves to one point per node.
func PlotDendrogram(hdg *HierarchicalDataGrid, attrName string, pd *PlotDef) error {
	if hdg.grid == nil {
		return Wrapf(ErrInternal, "report has no attached grid to plot")
	}

	idx := hdg.grid.AttributeIndex(attrName)
	if idx < 0 {
		return Wrapf(ErrSpec, "unknown attribute %q", attrName)
	}

	h := hdg.grid.Attributes[idx].Hierarchy()
	if h == nil || len(h.Nodes) == 0 {
		return Wrapf(ErrSpec, "attribute %q has no dendrogram yet", attrName)
	}

	nodes := append([]*HDGPart(nil), h.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Rank < nodes[j].Rank })

	x := make([]float64, len(nodes))
	y := make([]float64, len(nodes))
	text := make([]string, len(nodes))

	for i, n := range nodes {
		x[i] = n.HierarchicalLevel
		y[i] = float64(n.Rank)

		name := n.Name
		if name == "" {
			name = fmt.Sprintf("merge@%d", n.HierarchicalRank)
		}

		text[i] = name
	}

	tr := &grob.Scatter{
		Type: grob.TraceTypeScatter,
		X:    x,
		Y:    y,
		Mode: grob.ScatterModeMarkers,
		Text: text,
		Line: &grob.ScatterLine{Color: "black"},
	}

	fig := &grob.Fig{Data: grob.Traces{tr}}

	if pd == nil {
		pd = &PlotDef{}
	}

	if pd.Title == "" {
		pd.Title = fmt.Sprintf("Dendrogram: %s", attrName)
	}

	if pd.XTitle == "" {
		pd.XTitle = "Hierarchical level"
	}

	if pd.YTitle == "" {
		pd.YTitle = "Rank"
	}

	return Plotter(fig, nil, pd)
}
