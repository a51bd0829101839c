// Package main provides cgseed, a synthetic call-graph workload
// generator used to exercise and benchmark pkg/callgraph.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"

	flag "github.com/spf13/pflag"

	"github.com/bonzini/callgraph/internal/cliconfig"
	"github.com/bonzini/callgraph/pkg/callgraph"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	flags := flag.NewFlagSet("cgseed", flag.ContinueOnError)
	flags.SetOutput(errOut)

	nodes := flags.IntP("nodes", "n", 0, "number of functions to generate (overrides config seed_nodes)")
	workers := flags.IntP("workers", "w", 0, "number of concurrent writers (overrides config workers)")
	edgeFanout := flags.Int("fanout", 3, "average number of call/ref edges per function")
	externalFrac := flags.Float64("external-frac", 0.1, "fraction of call targets left external (never defined)")
	refFrac := flags.Float64("ref-frac", 0.25, "fraction of edges recorded as references instead of calls")
	labelCount := flags.Int("labels", 4, "number of distinct labels to scatter across functions")
	configPath := flags.String("config", "", "explicit config file path")
	files := flags.Int("files", 16, "number of distinct source files to distribute functions across")

	flags.Usage = func() {
		fmt.Fprintln(errOut, "Usage: cgseed [flags]")
		fmt.Fprintln(errOut)
		fmt.Fprintln(errOut, "Seeds an in-memory call graph with a synthetic workload and prints its stats.")
		fmt.Fprintln(errOut)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	cliOverride := cliconfig.Config{Workers: *workers}

	cfg, err := cliconfig.LoadConfig(wd, *configPath, cliOverride, flags.Changed("workers"), nil)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	n := cfg.SeedNodes
	if flags.Changed("nodes") {
		n = *nodes
	}

	if n <= 0 {
		fmt.Fprintln(errOut, "error: nodes must be positive")
		return 1
	}

	g := callgraph.NewGraph()

	seedGraph(g, seedOptions{
		nodeCount:    n,
		workerCount:  cfg.Workers,
		edgeFanout:   *edgeFanout,
		externalFrac: *externalFrac,
		refFrac:      *refFrac,
		labelCount:   *labelCount,
		fileCount:    *files,
	})

	st := g.Stats()
	fmt.Fprintf(out, "nodes=%d (cap=%d) names=%d (cap=%d) usernames=%d (cap=%d) files=%d labels=%d\n",
		st.Nodes, st.NodeCap, st.NameCount, st.NameCap, st.UsernameCount, st.UsernameCap, st.FileCount, st.LabelCount)

	return 0
}

type seedOptions struct {
	nodeCount    int
	workerCount  int
	edgeFanout   int
	externalFrac float64
	refFrac      float64
	labelCount   int
	fileCount    int
}

// seedGraph partitions nodeCount function insertions across workerCount
// goroutines, each with its own reader handle, then scatters edges and
// labels over the populated node indices.
func seedGraph(g *callgraph.Graph, opts seedOptions) {
	ids := make([]uint64, opts.nodeCount)

	var wg sync.WaitGroup

	perWorker := (opts.nodeCount + opts.workerCount - 1) / opts.workerCount

	for w := 0; w < opts.workerCount; w++ {
		start := w * perWorker
		end := min(start+perWorker, opts.nodeCount)

		if start >= end {
			continue
		}

		wg.Add(1)

		go func(start, end int) {
			defer wg.Done()

			h := g.RegisterReader()
			defer func() { _ = g.UnregisterReader(h) }()

			rnd := rand.New(rand.NewPCG(uint64(start), uint64(end))) //nolint:gosec // synthetic workload, not security sensitive

			for i := start; i < end; i++ {
				h.Begin()

				idx := g.AddExternal(h, functionName(i))
				if rnd.Float64() >= opts.externalFrac {
					g.SetDefined(idx)
					g.SetLocation(h, idx, fileName(i, opts.fileCount), int64(rnd.IntN(2000)+1))
				}

				ids[i] = idx

				h.End()
			}
		}(start, end)
	}

	wg.Wait()

	scatterEdges(g, ids, opts)
	scatterLabels(g, ids, opts)
}

func scatterEdges(g *callgraph.Graph, ids []uint64, opts seedOptions) {
	h := g.RegisterReader()
	defer func() { _ = g.UnregisterReader(h) }()

	rnd := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // synthetic workload

	h.Begin()
	defer h.End()

	for _, from := range ids {
		for e := 0; e < opts.edgeFanout; e++ {
			to := ids[rnd.IntN(len(ids))]
			if to == from {
				continue
			}

			isCall := rnd.Float64() >= opts.refFrac
			g.AddEdge(h, from, to, isCall)
		}
	}
}

func scatterLabels(g *callgraph.Graph, ids []uint64, opts seedOptions) {
	if opts.labelCount <= 0 {
		return
	}

	h := g.RegisterReader()
	defer func() { _ = g.UnregisterReader(h) }()

	rnd := rand.New(rand.NewPCG(3, 4)) //nolint:gosec // synthetic workload

	h.Begin()
	defer h.End()

	labels := make([]string, opts.labelCount)
	for i := range labels {
		labels[i] = "label" + strconv.Itoa(i)
	}

	for _, idx := range ids {
		g.AddLabel(h, idx, labels[rnd.IntN(len(labels))])
	}
}

func functionName(i int) string {
	var b strings.Builder

	b.WriteString("fn")
	b.WriteString(strconv.Itoa(i))

	return b.String()
}

func fileName(i, fileCount int) string {
	return "file" + strconv.Itoa(i%fileCount) + ".go"
}
