// Package slist implements picotm's intrusive singly-linked list (spec
// C4): a sentinel head node whose next pointer chains through the
// elements. The list is not circular: the last element's next is nil, so
// reaching the tail (PushBack) is O(n). Iteration and find are O(n); so is
// locating an element's predecessor, so callers should avoid doing that in
// a loop (the same caution the original header calls out).
package slist

// Node is the intrusive link embedded by list elements. An element type
// embeds Node by value and is recovered from a *Node via its enclosing
// owner reference, which callers supply explicitly (Go has no
// container_of); see List.Walk.
type Node struct {
	next *Node
}

// List is an intrusive, nil-terminated singly-linked list with a sentinel
// head.
// The zero value is an empty, ready-to-use list.
type List struct {
	head Node
}

// Init resets the list to empty. Unnecessary on a zero-value List, but
// useful to clear a list for reuse without reallocating it.
func (l *List) Init() {
	l.head.next = nil
}

// Empty reports whether the list has no elements.
func (l *List) Empty() bool {
	return l.head.next == nil
}

// PushFront inserts n as the new first element.
func (l *List) PushFront(n *Node) {
	n.next = l.head.next
	l.head.next = n
}

// PushBack inserts n as the new last element.
func (l *List) PushBack(n *Node) {
	tail := &l.head
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = n
	n.next = nil
}

// InsertSorted inserts n at the position where less(n, next) first holds,
// preserving a list already ordered by less.
func (l *List) InsertSorted(n *Node, less func(a, b *Node) bool) {
	prev := &l.head
	for prev.next != nil && !less(n, prev.next) {
		prev = prev.next
	}
	n.next = prev.next
	prev.next = n
}

// Pop removes and returns the first element, or nil if the list is empty.
func (l *List) Pop() *Node {
	n := l.head.next
	if n == nil {
		return nil
	}
	l.head.next = n.next
	n.next = nil
	return n
}

// Remove removes n from the list. It reports whether n was found. This is
// the one place predecessor lookup is unavoidable, and it is O(n).
func (l *List) Remove(n *Node) bool {
	prev := &l.head
	for prev.next != nil {
		if prev.next == n {
			prev.next = n.next
			n.next = nil
			return true
		}
		prev = prev.next
	}
	return false
}

// Walk invokes fn for every element in order, stopping early if fn returns
// false. The two "opaque context arguments" the spec allows are simply
// whatever fn closes over.
func (l *List) Walk(fn func(n *Node) bool) {
	for n := l.head.next; n != nil; n = n.next {
		if !fn(n) {
			return
		}
	}
}

// Find returns the first element for which match returns true, or nil.
func (l *List) Find(match func(n *Node) bool) *Node {
	var found *Node
	l.Walk(func(n *Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Cleanup repeatedly pops the first element and invokes fn on it until the
// list is empty.
func (l *List) Cleanup(fn func(n *Node)) {
	for {
		n := l.Pop()
		if n == nil {
			return
		}
		fn(n)
	}
}
