package growarray_test

import (
	"sync"
	"testing"

	"github.com/bonzini/callgraph/pkg/growarray"
	"github.com/bonzini/callgraph/pkg/rcu"
)

func Test_Reserve_Returns_Dense_Increasing_Indices(t *testing.T) {
	t.Parallel()

	domain := rcu.NewDomain()
	h := domain.Register()

	arr := growarray.New[int](domain, 4, growarray.DefaultLoadFactor, nil)

	h.Begin()
	defer h.End()

	for want := uint64(0); want < 3; want++ {
		got := arr.Reserve(h)
		if got != want {
			t.Fatalf("Reserve() = %d, want %d", got, want)
		}
	}
}

func Test_Grow_Preserves_Prior_Entries(t *testing.T) {
	t.Parallel()

	domain := rcu.NewDomain()
	h := domain.Register()

	arr := growarray.New[int](domain, 2, growarray.DefaultLoadFactor, nil)

	h.Begin()

	const n = 50

	for i := 0; i < n; i++ {
		idx := arr.Reserve(h)
		*arr.At(idx) = i * 10
	}

	h.End()

	h.Begin()
	defer h.End()

	for i := 0; i < n; i++ {
		if got := *arr.At(uint64(i)); got != i*10 {
			t.Fatalf("At(%d) = %d, want %d", i, got, i*10)
		}
	}

	if cap := arr.Cap(); cap < n {
		t.Fatalf("Cap() = %d, want >= %d", cap, n)
	}
}

func Test_Grow_Doubles_Capacity(t *testing.T) {
	t.Parallel()

	domain := rcu.NewDomain()
	h := domain.Register()

	arr := growarray.New[int](domain, 4, 1.0, nil)

	h.Begin()
	defer h.End()

	for i := 0; i < 4; i++ {
		arr.Reserve(h)
	}

	if got := arr.Cap(); got != 4 {
		t.Fatalf("Cap() before growth = %d, want 4", got)
	}

	arr.Reserve(h)

	if got := arr.Cap(); got != 8 {
		t.Fatalf("Cap() after growth trigger = %d, want 8", got)
	}
}

func Test_DropReservation_Frees_The_Slot_Count(t *testing.T) {
	t.Parallel()

	domain := rcu.NewDomain()
	h := domain.Register()

	arr := growarray.New[int](domain, 4, growarray.DefaultLoadFactor, nil)

	h.Begin()
	defer h.End()

	idx := arr.Reserve(h)
	_ = idx

	if arr.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", arr.Count())
	}

	arr.DropReservation()

	if arr.Count() != 0 {
		t.Fatalf("Count() after drop = %d, want 0", arr.Count())
	}
}

func Test_Concurrent_Reserve_Never_Duplicates_An_Index(t *testing.T) {
	t.Parallel()

	domain := rcu.NewDomain()

	arr := growarray.New[int](domain, 4, growarray.DefaultLoadFactor, func(old []int, oldCount uint64, fresh []int) {
		copy(fresh, old[:oldCount])
	})

	const workers = 8
	const perWorker = 200

	seen := make([]int32, workers*perWorker)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			h := domain.Register()
			defer func() { _ = domain.Unregister(h) }()

			for i := 0; i < perWorker; i++ {
				h.Begin()
				idx := arr.Reserve(h)
				h.End()

				seen[idx]++
			}
		}()
	}

	wg.Wait()

	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d reserved %d times, want 1", i, c)
		}
	}
}
