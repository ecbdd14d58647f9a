package table

import (
	"container/heap"

	"ldb"
)

// NewMergingIterator returns an iterator over the union of children, in
// comparator order. Entries with equal keys are all yielded, those of
// earlier children first.
func NewMergingIterator(comparator ldb.Comparator, children []ldb.Iterator) ldb.Iterator {
	switch len(children) {
	case 0:
		return NewEmptyIterator()
	case 1:
		return children[0]
	}
	m := &mergingIterator{children: make([]cursor, len(children))}
	m.heap.cmp = comparator
	m.heap.children = m.children
	for i, child := range children {
		m.children[i].reset(child)
	}
	return m
}

// childHeap orders the valid children by their current key, smallest first
// when moving forward and largest first in reverse. Ties go to the earlier
// child forward and the later child in reverse, so a reverse walk yields
// the forward order backwards.
type childHeap struct {
	cmp      ldb.Comparator
	children []cursor
	order    []int
	reverse  bool
}

func (h *childHeap) Len() int { return len(h.order) }

func (h *childHeap) Less(a, b int) bool {
	x, y := h.order[a], h.order[b]
	r := h.cmp.Compare(h.children[x].key, h.children[y].key)
	if r == 0 {
		return (x < y) != h.reverse
	}
	return (r < 0) != h.reverse
}

func (h *childHeap) Swap(a, b int) { h.order[a], h.order[b] = h.order[b], h.order[a] }

func (h *childHeap) Push(x interface{}) { h.order = append(h.order, x.(int)) }

func (h *childHeap) Pop() interface{} {
	n := len(h.order) - 1
	x := h.order[n]
	h.order = h.order[:n]
	return x
}

// rebuild collects every valid child and orders them for the direction.
func (h *childHeap) rebuild(reverse bool) {
	h.reverse = reverse
	h.order = h.order[:0]
	for i := range h.children {
		if h.children[i].valid {
			h.order = append(h.order, i)
		}
	}
	heap.Init(h)
}

// top returns the index of the child holding the current entry.
func (h *childHeap) top() int {
	return h.order[0]
}

// fixTop restores the order after the top child moved, dropping it once it
// is exhausted.
func (h *childHeap) fixTop() {
	if h.children[h.order[0]].valid {
		heap.Fix(h, 0)
	} else {
		heap.Pop(h)
	}
}

type mergingIterator struct {
	CleanUpIterator
	children []cursor
	heap     childHeap
}

func (m *mergingIterator) IsValid() bool {
	return m.heap.Len() > 0
}

func (m *mergingIterator) SeekToFirst() {
	for i := range m.children {
		m.children[i].move(ldb.Iterator.SeekToFirst)
	}
	m.heap.rebuild(false)
}

func (m *mergingIterator) SeekToLast() {
	for i := range m.children {
		m.children[i].move(ldb.Iterator.SeekToLast)
	}
	m.heap.rebuild(true)
}

func (m *mergingIterator) Seek(target []byte) {
	for i := range m.children {
		m.children[i].seek(target)
	}
	m.heap.rebuild(false)
}

func (m *mergingIterator) Next() {
	if !m.IsValid() {
		panic("mergingIterator: not valid")
	}
	current := m.heap.top()
	if m.heap.reverse {
		// Every other child sits before the current key; move each to
		// the first entry after it.
		key := append([]byte(nil), m.children[current].key...)
		for i := range m.children {
			if i == current {
				continue
			}
			c := &m.children[i]
			c.seek(key)
			if c.valid && m.heap.cmp.Compare(key, c.key) == 0 {
				c.move(ldb.Iterator.Next)
			}
		}
		m.children[current].move(ldb.Iterator.Next)
		m.heap.rebuild(false)
		return
	}
	m.children[current].move(ldb.Iterator.Next)
	m.heap.fixTop()
}

func (m *mergingIterator) Prev() {
	if !m.IsValid() {
		panic("mergingIterator: not valid")
	}
	current := m.heap.top()
	if !m.heap.reverse {
		// Every other child sits at or after the current key; move each
		// to the last entry before it.
		key := append([]byte(nil), m.children[current].key...)
		for i := range m.children {
			if i == current {
				continue
			}
			c := &m.children[i]
			c.seek(key)
			if c.valid {
				c.move(ldb.Iterator.Prev)
			} else {
				c.move(ldb.Iterator.SeekToLast)
			}
		}
		m.children[current].move(ldb.Iterator.Prev)
		m.heap.rebuild(true)
		return
	}
	m.children[current].move(ldb.Iterator.Prev)
	m.heap.fixTop()
}

func (m *mergingIterator) GetKey() []byte {
	if !m.IsValid() {
		panic("mergingIterator: not valid")
	}
	return m.children[m.heap.top()].key
}

func (m *mergingIterator) GetValue() []byte {
	if !m.IsValid() {
		panic("mergingIterator: not valid")
	}
	return m.children[m.heap.top()].value()
}

func (m *mergingIterator) GetStatus() error {
	for i := range m.children {
		if err := m.children[i].status(); err != nil {
			return err
		}
	}
	return nil
}

func (m *mergingIterator) Close() {
	for i := range m.children {
		m.children[i].reset(nil)
	}
	m.heap.order = nil
	m.CleanUpIterator.Close()
}
