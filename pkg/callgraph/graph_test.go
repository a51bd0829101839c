package callgraph_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/bonzini/callgraph/pkg/callgraph"
)

func sortedCollect(seq callgraph.NodeSeq) []uint64 {
	got := callgraph.Collect(seq)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	return got
}

func equalUint64(t *testing.T, got, want []uint64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// Test_S1_Single_Thread_Graph_Build mirrors scenario S1.
func Test_S1_Single_Thread_Graph_Build(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()
	defer h.End()

	f := g.AddExternal(h, "f")
	if f != 0 {
		t.Fatalf("AddExternal(f) = %d, want 0", f)
	}

	g.SetDefined(f)

	gg := g.AddExternal(h, "g")
	if gg != 1 {
		t.Fatalf("AddExternal(g) = %d, want 1", gg)
	}

	g.SetDefined(gg)
	g.AddEdge(h, f, gg, true)

	equalUint64(t, sortedCollect(g.GetCallees(f)), []uint64{gg})
	equalUint64(t, sortedCollect(g.GetCallers(gg)), []uint64{f})

	if !g.HasCallEdge(f, gg) {
		t.Fatal("HasCallEdge(f, g) = false, want true")
	}

	if g.HasEdge(gg, f, true) {
		t.Fatal("HasEdge(g, f, true) = true, want false")
	}
}

// Test_S2_Username_Aliasing mirrors scenario S2.
func Test_S2_Username_Aliasing(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()
	defer h.End()

	i := g.AddExternal(h, "s::f")
	if i != 0 {
		t.Fatalf("AddExternal(s::f) = %d, want 0", i)
	}

	g.SetDefined(i)
	g.SetUsername(h, i, "S_f")

	again := g.AddExternal(h, "S_f")
	if again != i {
		t.Fatalf("AddExternal(S_f) = %d, want %d", again, i)
	}
}

// Test_S3_Ref_Vs_Call_With_External mirrors scenario S3.
func Test_S3_Ref_Vs_Call_With_External(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()
	defer h.End()

	x := g.AddExternal(h, "x")
	g.SetDefined(x)

	y := g.AddExternal(h, "y") // left external

	g.AddEdge(h, x, y, false)

	if g.HasEdge(x, y, true) {
		t.Fatal("HasEdge(x, y, true) = true, want false (external target suppresses ref)")
	}

	if g.HasCallEdge(x, y) {
		t.Fatal("HasCallEdge(x, y) = true, want false")
	}
}

// Test_S4_Labels_And_Reset mirrors scenario S4.
func Test_S4_Labels_And_Reset(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()

	a := g.AddExternal(h, "a")
	g.AddLabel(h, a, "hot")

	if !g.HasLabel(a, "hot") {
		t.Fatal("HasLabel(a, hot) = false, want true")
	}

	g.ResetLabels(h)

	if g.HasLabel(a, "hot") {
		t.Fatal("HasLabel(a, hot) = true after reset, want false")
	}

	g.AddLabel(h, a, "hot")

	if !g.HasLabel(a, "hot") {
		t.Fatal("HasLabel(a, hot) = false after re-add, want true")
	}

	h.End()
}

// Test_S5_CSM_First_Write_Wins_Via_Usernames exercises first-writer-wins
// on a node's username through the public Graph API with four goroutines.
// The winner is chosen by SetUsername's write-once username cell; only the
// winning alias is added to the username map, so no two writers contend
// for the same map key here.
func Test_S5_CSM_First_Write_Wins_Via_Usernames(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h0 := g.RegisterReader()

	h0.Begin()
	i := g.AddExternal(h0, "f")
	h0.End()

	const writers = 4

	aliases := []string{"alias1", "alias2", "alias3", "alias4"}

	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			h := g.RegisterReader()
			defer func() { _ = g.UnregisterReader(h) }()

			h.Begin()
			defer h.End()

			g.SetUsername(h, i, aliases[n])
		}(w)
	}

	wg.Wait()

	winner, ok := g.UsernameOf(i)
	if !ok {
		t.Fatal("UsernameOf(i) absent after concurrent SetUsername")
	}

	found := false

	for _, a := range aliases {
		if a == winner {
			found = true
		}
	}

	if !found {
		t.Fatalf("winning alias %q not among candidates %v", winner, aliases)
	}

	for k := 0; k < 5; k++ {
		if u, ok := g.UsernameOf(i); !ok || u != winner {
			t.Fatalf("subsequent UsernameOf(i) = (%q, %v), want (%q, true)", u, ok, winner)
		}
	}

	again, ok := g.GetNode(winner)
	if !ok || again != i {
		t.Fatalf("GetNode(%q) = (%d, %v), want (%d, true)", winner, again, ok, i)
	}
}

// Test_S6_Grow_Under_Contention exercises CGA grow under contention: two
// goroutines each add 100 distinct nodes concurrently.
func Test_S6_Grow_Under_Contention(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()

	const perWorker = 100

	var wg sync.WaitGroup

	for w := 0; w < 2; w++ {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			h := g.RegisterReader()
			defer func() { _ = g.UnregisterReader(h) }()

			for i := 0; i < perWorker; i++ {
				h.Begin()
				g.AddExternal(h, nameFor(worker, i))
				h.End()
			}
		}(w)
	}

	wg.Wait()

	if g.NodeCount() != 2*perWorker {
		t.Fatalf("NodeCount() = %d, want %d", g.NodeCount(), 2*perWorker)
	}

	for w := 0; w < 2; w++ {
		for i := 0; i < perWorker; i++ {
			if _, ok := g.GetNode(nameFor(w, i)); !ok {
				t.Fatalf("GetNode(%s) not found", nameFor(w, i))
			}
		}
	}
}

func nameFor(worker, i int) string {
	return "w" + itoa(worker) + "-" + itoa(i)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte

	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	return string(buf[pos:])
}

// Test_Insertion_Idempotence exercises universal property 3: concurrent
// add_external calls for the same name yield exactly one node.
func Test_Insertion_Idempotence(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()

	const workers = 32

	results := make([]uint64, workers)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			h := g.RegisterReader()
			defer func() { _ = g.UnregisterReader(h) }()

			h.Begin()
			defer h.End()

			results[idx] = g.AddExternal(h, "shared")
		}(w)
	}

	wg.Wait()

	first := results[0]
	for _, r := range results {
		if r != first {
			t.Fatalf("AddExternal(shared) returned inconsistent indices: %v", results)
		}
	}

	if g.NodeCount() != 1 {
		t.Fatalf("NodeCount() = %d, want 1", g.NodeCount())
	}
}

// Test_Edge_Symmetry exercises universal property 2.
func Test_Edge_Symmetry(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()
	defer h.End()

	a := g.AddExternal(h, "a")
	b := g.AddExternal(h, "b")

	g.AddEdge(h, a, b, true)

	if !g.HasCallEdge(a, b) {
		t.Fatal("a.calls must contain b")
	}

	equalUint64(t, sortedCollect(g.GetCallers(b)), []uint64{a})
}

// Test_Monotonic_External exercises universal property 6: external only
// ever transitions true to false.
func Test_Monotonic_External(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()

	i := g.AddExternal(h, "f")
	if !g.IsExternal(i) {
		t.Fatal("newly added node must start external")
	}

	h.End()

	g.SetDefined(i)

	if g.IsExternal(i) {
		t.Fatal("IsExternal(i) = true after SetDefined")
	}

	g.SetDefined(i)

	if g.IsExternal(i) {
		t.Fatal("SetDefined must be idempotent")
	}
}

func Test_SetLocation_Is_Write_Once(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()
	defer h.End()

	i := g.AddExternal(h, "f")

	g.SetLocation(h, i, "a.c", 10)
	g.SetLocation(h, i, "b.c", 20)

	file, line, ok := g.LocationOf(i)
	if !ok || file != "a.c" || line != 10 {
		t.Fatalf("LocationOf(i) = (%q, %d, %v), want (\"a.c\", 10, true)", file, line, ok)
	}

	equalUint64(t, sortedCollect(g.NodesForFile("a.c")), []uint64{i})
	equalUint64(t, sortedCollect(g.NodesForFile("b.c")), nil)
}

func Test_NodeCount_Reflects_Stats(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()
	h := g.RegisterReader()

	h.Begin()
	g.AddExternal(h, "a")
	g.AddExternal(h, "b")
	h.End()

	st := g.Stats()
	if st.Nodes != 2 {
		t.Fatalf("Stats().Nodes = %d, want 2", st.Nodes)
	}
}

func Test_Index_Out_Of_Range_Panics(t *testing.T) {
	t.Parallel()

	g := callgraph.NewGraph()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for out-of-range index")
		}
	}()

	g.NameOf(42)
}
