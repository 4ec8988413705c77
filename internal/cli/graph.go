package cli

import (
	"fmt"
	"io"

	"github.com/picklr-io/ocrstack/internal/engine"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/topology"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Output the descriptor graph in DOT format",
	Long: `Generates the dependency graph of the deployment in Graphviz DOT format,
with descriptors listed in visit order. Pipe the output to 'dot':

  ocrstack graph | dot -Tpng > graph.png`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	return writeDOT(cmd.OutOrStdout(), topology.Build(cfg))
}

func writeDOT(w io.Writer, descs []*ir.Descriptor) error {
	expanded := engine.ExpandEach(descs)
	dag, err := engine.BuildDAG(expanded)
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	kinds := make(map[string]ir.Kind, len(expanded))
	for _, d := range expanded {
		kinds[d.Name] = d.Kind
	}

	fmt.Fprintln(w, "digraph ocrstack {")
	fmt.Fprintln(w, "  rankdir = \"BT\";")
	fmt.Fprintln(w, "  node [shape = rect];")
	fmt.Fprintln(w)

	order := dag.Order()
	for i, name := range order {
		fmt.Fprintf(w, "  %q [label = %q];\n", name, fmt.Sprintf("%d. %s (%s)", i+1, name, kinds[name]))
	}
	fmt.Fprintln(w)

	for _, name := range order {
		for _, dep := range dag.Dependencies(name) {
			fmt.Fprintf(w, "  %q -> %q;\n", name, dep)
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}
