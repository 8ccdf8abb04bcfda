package model

import "sort"

// Allocator hands out integer id suffixes smallest-first. It keeps a sorted
// ascending pool of available suffixes; the last element is the frontier,
// which advances when the pool would otherwise run dry. Released suffixes
// are merged back so labels stay short and stable across edit sessions.
type Allocator struct {
	free []int
}

// NewAllocator returns an allocator whose first handed-out suffix is 0.
func NewAllocator() *Allocator {
	return &Allocator{free: []int{0}}
}

// NewAllocatorFrom restores an allocator from a saved pool, as stored in
// project files. A nil or empty pool behaves like a fresh allocator.
func NewAllocatorFrom(pool []int) *Allocator {
	if len(pool) == 0 {
		return NewAllocator()
	}
	free := append([]int(nil), pool...)
	sort.Ints(free)
	return &Allocator{free: free}
}

// Next removes and returns the smallest available suffix. When the pool is
// exhausted the frontier advances by one past the suffix just handed out.
func (a *Allocator) Next() int {
	n := a.free[0]
	a.free = a.free[1:]
	if len(a.free) == 0 {
		a.free = append(a.free, n+1)
	}
	return n
}

// Release returns a suffix to the pool. Releasing a suffix that is already
// available is a no-op.
func (a *Allocator) Release(n int) {
	for _, m := range a.free {
		if m == n {
			return
		}
	}
	a.free = append(a.free, n)
	sort.Ints(a.free)
}

// Claim removes a specific suffix from the pool, advancing the frontier as
// needed so the suffix counts as handed out. Used when loading a graph whose
// ids were assigned in an earlier session, and when converting a scope
// between nest and subprocess (the numeral moves between allocators).
func (a *Allocator) Claim(n int) {
	frontier := a.free[len(a.free)-1]
	if n >= frontier {
		// Everything in [frontier, n) becomes available, n+1 is the new frontier.
		a.free = a.free[:len(a.free)-1]
		for m := frontier; m < n; m++ {
			a.free = append(a.free, m)
		}
		a.free = append(a.free, n+1)
		sort.Ints(a.free)
		return
	}
	for i, m := range a.free {
		if m == n {
			a.free = append(a.free[:i], a.free[i+1:]...)
			return
		}
	}
}

// Pool returns a copy of the available suffixes, sorted ascending. The last
// element is the frontier. This is the shape stored in project files.
func (a *Allocator) Pool() []int {
	return append([]int(nil), a.free...)
}

// Clone returns an independent copy of the allocator.
func (a *Allocator) Clone() *Allocator {
	return &Allocator{free: append([]int(nil), a.free...)}
}
