package table

import "ldb"

type cleanUpNode struct {
	function ldb.CleanUpFunction
	arg1     interface{}
	arg2     interface{}
	next     *cleanUpNode
}

// CleanUpIterator runs registered functions when the iterator is closed.
// Embed it to satisfy RegisterCleanUp and Close.
type CleanUpIterator struct {
	head   *cleanUpNode
	closed bool
}

func (i *CleanUpIterator) RegisterCleanUp(function ldb.CleanUpFunction, arg1, arg2 interface{}) {
	if function == nil {
		panic("CleanUpIterator: function cannot be nil")
	}
	i.head = &cleanUpNode{function: function, arg1: arg1, arg2: arg2, next: i.head}
}

func (i *CleanUpIterator) Close() {
	if i.closed {
		return
	}
	i.closed = true
	for node := i.head; node != nil; node = node.next {
		node.function(node.arg1, node.arg2)
	}
	i.head = nil
}

type emptyIterator struct {
	CleanUpIterator
	status error
}

func (*emptyIterator) IsValid() bool {
	return false
}

func (*emptyIterator) SeekToFirst() {
}

func (*emptyIterator) SeekToLast() {
}

func (*emptyIterator) Seek([]byte) {
}

func (*emptyIterator) Next() {
	panic("empty iterator")
}

func (*emptyIterator) Prev() {
	panic("empty iterator")
}

func (*emptyIterator) GetKey() []byte {
	panic("empty iterator")
}

func (*emptyIterator) GetValue() []byte {
	panic("empty iterator")
}

func (i *emptyIterator) GetStatus() error {
	return i.status
}

func NewEmptyIterator() ldb.Iterator {
	return &emptyIterator{}
}

func NewErrorIterator(err error) ldb.Iterator {
	return &emptyIterator{status: err}
}
