package treemap

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFindValueCreatesOnce(t *testing.T) {
	m := New[int](16, 4)
	var creates int32
	create := func(key uint64) int {
		atomic.AddInt32(&creates, 1)
		return int(key) * 2
	}
	v := m.FindValue(42, create, nil)
	if v != 84 {
		t.Fatalf("v = %d, want 84", v)
	}
	v = m.FindValue(42, create, nil)
	if v != 84 {
		t.Fatalf("v = %d, want 84", v)
	}
	if creates != 1 {
		t.Fatalf("creates = %d, want 1", creates)
	}
}

func TestFindValueDistinctKeys(t *testing.T) {
	m := New[int](24, 6)
	for _, k := range []uint64{0, 1, 1000, 1 << 20} {
		v := m.FindValue(k, func(key uint64) int { return int(key) }, nil)
		if v != int(k) {
			t.Fatalf("key %d: v = %d, want %d", k, v, k)
		}
	}
}

func TestFindValueConcurrentRaceCallsCreateAtMostOncePerKey(t *testing.T) {
	m := New[*int32](20, 5)
	var totalCreates int32
	create := func(key uint64) *int32 {
		atomic.AddInt32(&totalCreates, 1)
		v := int32(0)
		return &v
	}
	destroyed := make([]*int32, 0)
	var mu sync.Mutex
	destroy := func(v *int32) {
		mu.Lock()
		destroyed = append(destroyed, v)
		mu.Unlock()
	}

	const goroutines = 64
	var wg sync.WaitGroup
	results := make([]*int32, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.FindValue(777, create, destroy)
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d observed a different value pointer than goroutine 0", i)
		}
	}
	if totalCreates < 1 {
		t.Fatal("expected at least one create call")
	}
	if int(totalCreates) != len(destroyed)+1 {
		t.Fatalf("expected exactly one surviving create (got %d creates, %d destroyed)", totalCreates, len(destroyed))
	}
}

func TestCloseInvokesDestroyOnEveryLeaf(t *testing.T) {
	m := New[int](16, 4)
	keys := []uint64{1, 2, 3, 4000}
	for _, k := range keys {
		m.FindValue(k, func(key uint64) int { return int(key) }, nil)
	}
	seen := map[int]bool{}
	m.Close(func(v int) { seen[v] = true })
	for _, k := range keys {
		if !seen[int(k)] {
			t.Fatalf("key %d was not destroyed", k)
		}
	}
}
