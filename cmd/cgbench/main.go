// Package main provides cgbench, a concurrent benchmark harness for
// pkg/callgraph: it times a mixed insert/query/edge workload and
// reports throughput.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bonzini/callgraph/internal/cliconfig"
	"github.com/bonzini/callgraph/pkg/callgraph"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	flags := flag.NewFlagSet("cgbench", flag.ContinueOnError)
	flags.SetOutput(errOut)

	nodes := flags.IntP("nodes", "n", 0, "number of functions each worker inserts (overrides config seed_nodes)")
	workers := flags.IntP("workers", "w", 0, "number of concurrent workers (overrides config workers)")
	readFrac := flags.Float64("read-frac", 0.5, "fraction of operations after the insert phase that are read queries")
	opsPerWorker := flags.Int("ops", 2000, "number of post-insert read/edge operations per worker")
	configPath := flags.String("config", "", "explicit config file path")

	flags.Usage = func() {
		fmt.Fprintln(errOut, "Usage: cgbench [flags]")
		fmt.Fprintln(errOut)
		fmt.Fprintln(errOut, "Benchmarks pkg/callgraph under concurrent readers and writers.")
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

	perWorker := cfg.SeedNodes / max(cfg.Workers, 1)
	if flags.Changed("nodes") {
		perWorker = *nodes
	}

	if perWorker <= 0 {
		fmt.Fprintln(errOut, "error: nodes per worker must be positive")
		return 1
	}

	g := callgraph.NewGraph()

	insertElapsed, total, err := benchInsert(g, cfg.Workers, perWorker)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	queryElapsed, err := benchQueries(g, cfg.Workers, *opsPerWorker, *readFrac, total)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	st := g.Stats()

	insertRate := float64(total) / insertElapsed.Seconds()
	queryOps := cfg.Workers * *opsPerWorker
	queryRate := float64(queryOps) / queryElapsed.Seconds()

	fmt.Fprintf(out, "insert: %d nodes in %v (%.0f ops/sec)\n", total, insertElapsed.Round(time.Millisecond), insertRate)
	fmt.Fprintf(out, "query:  %d ops in %v (%.0f ops/sec)\n", queryOps, queryElapsed.Round(time.Millisecond), queryRate)
	fmt.Fprintf(out, "final:  nodes=%d (cap=%d) files=%d labels=%d\n", st.Nodes, st.NodeCap, st.FileCount, st.LabelCount)

	return 0
}

// benchInsert fans worker insertions out across goroutines and returns
// the wall-clock elapsed time and total node count inserted.
func benchInsert(g *callgraph.Graph, workers, perWorker int) (time.Duration, int, error) {
	grp, _ := errgroup.WithContext(context.Background())

	start := time.Now()

	for w := 0; w < workers; w++ {
		w := w

		grp.Go(func() error {
			h := g.RegisterReader()
			defer func() { _ = g.UnregisterReader(h) }()

			for i := 0; i < perWorker; i++ {
				h.Begin()
				idx := g.AddExternal(h, "fn"+strconv.Itoa(w)+"_"+strconv.Itoa(i))
				g.SetDefined(idx)
				h.End()
			}

			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return 0, 0, err
	}

	return time.Since(start), workers * perWorker, nil
}

// benchQueries fans a read-heavy, edge-write-light mixed workload out
// across goroutines over the already-populated graph.
func benchQueries(g *callgraph.Graph, workers, opsPerWorker int, readFrac float64, total int) (time.Duration, error) {
	grp, _ := errgroup.WithContext(context.Background())

	start := time.Now()

	for w := 0; w < workers; w++ {
		w := w

		grp.Go(func() error {
			h := g.RegisterReader()
			defer func() { _ = g.UnregisterReader(h) }()

			rnd := rand.New(rand.NewPCG(uint64(w), uint64(opsPerWorker))) //nolint:gosec // benchmark workload

			for i := 0; i < opsPerWorker; i++ {
				a := uint64(rnd.IntN(total))

				if rnd.Float64() < readFrac {
					h.Begin()
					callgraph.Collect(g.GetCallees(a))
					h.End()

					continue
				}

				b := uint64(rnd.IntN(total))

				h.Begin()
				g.AddEdge(h, a, b, true)
				h.End()
			}

			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}
