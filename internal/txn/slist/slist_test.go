package slist

import "testing"

type entry struct {
	node  Node
	value int
}

func values(l *List, holder map[*Node]*entry) []int {
	var out []int
	l.Walk(func(n *Node) bool {
		out = append(out, holder[n].value)
		return true
	})
	return out
}

func TestPushFrontPushBack(t *testing.T) {
	var l List
	a, b, c := &entry{value: 1}, &entry{value: 2}, &entry{value: 3}
	holder := map[*Node]*entry{&a.node: a, &b.node: b, &c.node: c}

	l.PushBack(&a.node)
	l.PushFront(&b.node)
	l.PushBack(&c.node)

	got := values(&l, holder)
	want := []int{2, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestInsertSorted(t *testing.T) {
	var l List
	holder := map[*Node]*entry{}
	add := func(v int) *Node {
		e := &entry{value: v}
		holder[&e.node] = e
		return &e.node
	}
	less := func(a, b *Node) bool { return holder[a].value < holder[b].value }

	l.InsertSorted(add(5), less)
	l.InsertSorted(add(1), less)
	l.InsertSorted(add(3), less)

	got := values(&l, holder)
	want := []int{1, 3, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPopAndEmpty(t *testing.T) {
	var l List
	if !l.Empty() {
		t.Fatal("new list should be empty")
	}
	var n Node
	l.PushBack(&n)
	if l.Empty() {
		t.Fatal("list with one element should not be empty")
	}
	if l.Pop() != &n {
		t.Fatal("Pop should return the pushed node")
	}
	if !l.Empty() {
		t.Fatal("list should be empty after popping its only element")
	}
	if l.Pop() != nil {
		t.Fatal("Pop on empty list should return nil")
	}
}

func TestFind(t *testing.T) {
	var l List
	holder := map[*Node]*entry{}
	for _, v := range []int{10, 20, 30} {
		e := &entry{value: v}
		holder[&e.node] = e
		l.PushBack(&e.node)
	}
	found := l.Find(func(n *Node) bool { return holder[n].value == 20 })
	if found == nil || holder[found].value != 20 {
		t.Fatal("expected to find value 20")
	}
	if l.Find(func(n *Node) bool { return holder[n].value == 99 }) != nil {
		t.Fatal("expected no match for value 99")
	}
}

func TestRemove(t *testing.T) {
	var l List
	var a, b, c Node
	l.PushBack(&a)
	l.PushBack(&b)
	l.PushBack(&c)
	if !l.Remove(&b) {
		t.Fatal("expected Remove to find b")
	}
	if l.Remove(&b) {
		t.Fatal("expected second Remove of b to fail")
	}
	count := 0
	l.Walk(func(n *Node) bool { count++; return true })
	if count != 2 {
		t.Fatalf("expected 2 remaining elements, got %d", count)
	}
}

func TestCleanup(t *testing.T) {
	var l List
	holder := map[*Node]*entry{}
	for _, v := range []int{1, 2, 3} {
		e := &entry{value: v}
		holder[&e.node] = e
		l.PushBack(&e.node)
	}
	var sum int
	l.Cleanup(func(n *Node) { sum += holder[n].value })
	if sum != 6 {
		t.Fatalf("sum = %d, want 6", sum)
	}
	if !l.Empty() {
		t.Fatal("expected list to be empty after Cleanup")
	}
}
