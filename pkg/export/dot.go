package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/logflow/procmap/pkg/discovery"
	"github.com/logflow/procmap/pkg/pipeline"
)

// DOTExporter renders the DFG as a Graphviz digraph. Edge pen width scales
// with frequency; start and end activities connect to synthetic terminals.
type DOTExporter struct {
	dir  string
	file string
}

// NewDOTExporter creates an exporter writing dir/dfg.dot.
func NewDOTExporter(dir string) *DOTExporter {
	return &DOTExporter{dir: dir, file: "dfg.dot"}
}

func (e *DOTExporter) Name() string    { return "dot" }
func (e *DOTExporter) Dir() string     { return e.dir }
func (e *DOTExporter) Files() []string { return []string{e.file} }

// Export implements pipeline.Exporter.
func (e *DOTExporter) Export(ctx context.Context, res *pipeline.Result) error {
	return writeAtomic(filepath.Join(e.dir, e.file), func(w io.Writer) error {
		_, err := io.WriteString(w, DOT(res.DFG))
		return err
	})
}

// DOT renders g in Graphviz syntax.
func DOT(g *discovery.DFG) string {
	var sb strings.Builder
	sb.WriteString("digraph dfg {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n")

	if len(g.StartActivities) > 0 {
		sb.WriteString("  \"__start\" [shape=circle, label=\"\", style=filled, fillcolor=green];\n")
	}
	if len(g.EndActivities) > 0 {
		sb.WriteString("  \"__end\" [shape=doublecircle, label=\"\", style=filled, fillcolor=red];\n")
	}
	for _, n := range g.Nodes {
		fmt.Fprintf(&sb, "  %s [label=%s];\n", quote(n.Activity), quote(fmt.Sprintf("%s\n(%d)", n.Activity, n.Occurrences)))
	}

	maxFreq := 1
	for _, e := range g.Edges {
		if e.Frequency > maxFreq {
			maxFreq = e.Frequency
		}
	}
	for _, e := range g.Edges {
		width := 1 + 4*float64(e.Frequency)/float64(maxFreq)
		fmt.Fprintf(&sb, "  %s -> %s [label=%s, penwidth=%.2f];\n",
			quote(e.Source), quote(e.Target), quote(strconv.Itoa(e.Frequency)), width)
	}
	for _, a := range g.StartActivities {
		fmt.Fprintf(&sb, "  \"__start\" -> %s [style=dashed];\n", quote(a))
	}
	for _, a := range g.EndActivities {
		fmt.Fprintf(&sb, "  %s -> \"__end\" [style=dashed];\n", quote(a))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// quote returns s as a DOT double-quoted ID.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
