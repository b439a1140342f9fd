package threadstate

import (
	"sync"
	"testing"
)

func TestAcquireLazilyConstructsPerGoroutine(t *testing.T) {
	var constructs int
	var mu sync.Mutex
	o := New(func() *int {
		mu.Lock()
		constructs++
		mu.Unlock()
		v := 0
		return &v
	})

	v1, ok := o.Acquire(true)
	if !ok {
		t.Fatal("expected ok")
	}
	v2, ok := o.Acquire(true)
	if !ok {
		t.Fatal("expected ok")
	}
	if v1 != v2 {
		t.Fatal("expected same pointer across calls from the same goroutine")
	}
	if constructs != 1 {
		t.Fatalf("constructs = %d, want 1", constructs)
	}
}

func TestAcquireWithoutInitReturnsFalseWhenAbsent(t *testing.T) {
	o := New(func() *int { v := 0; return &v })
	_, ok := o.Acquire(false)
	if ok {
		t.Fatal("expected ok=false for goroutine with no existing state")
	}
}

func TestReleaseDropsState(t *testing.T) {
	o := New(func() *int { v := 1; return &v })
	o.Acquire(true)
	o.Release()
	_, ok := o.Acquire(false)
	if ok {
		t.Fatal("expected state to be gone after Release")
	}
}

func TestDistinctGoroutinesGetDistinctValues(t *testing.T) {
	o := New(func() *int { v := 0; return &v })
	const n = 10
	ptrs := make([]*int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := o.Acquire(true)
			*v = i
			ptrs[i] = v
		}(i)
	}
	wg.Wait()
	seen := map[*int]bool{}
	for _, p := range ptrs {
		if seen[p] {
			t.Fatal("expected every goroutine to get a distinct value pointer")
		}
		seen[p] = true
	}
}
