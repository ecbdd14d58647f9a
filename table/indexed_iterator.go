package table

import (
	"bytes"

	"ldb"
)

// BlockOpener opens the contents an index entry points at: a data block of
// a table, or a whole table for a level of files.
type BlockOpener interface {
	OpenBlock(options *ldb.ReadOptions, indexValue []byte) ldb.Iterator
}

// BlockOpenerFunc adapts a function to BlockOpener.
type BlockOpenerFunc func(options *ldb.ReadOptions, indexValue []byte) ldb.Iterator

func (f BlockOpenerFunc) OpenBlock(options *ldb.ReadOptions, indexValue []byte) ldb.Iterator {
	return f(options, indexValue)
}

// indexedIterator walks an index whose values name blocks, and the entries
// of each block in turn. Blocks with no entries are skipped in the direction
// of travel.
type indexedIterator struct {
	CleanUpIterator
	opener  BlockOpener
	options *ldb.ReadOptions
	index   cursor
	data    cursor
	// opened is the index value data was opened from.
	opened []byte
	err    error
}

// NewIndexedIterator returns an iterator over every entry of every block
// named by index, in index order.
func NewIndexedIterator(index ldb.Iterator, opener BlockOpener, options *ldb.ReadOptions) ldb.Iterator {
	i := &indexedIterator{opener: opener, options: options}
	i.index.reset(index)
	return i
}

func (i *indexedIterator) IsValid() bool {
	return i.data.valid
}

func (i *indexedIterator) SeekToFirst() {
	i.index.move(ldb.Iterator.SeekToFirst)
	i.position(ldb.Iterator.SeekToFirst)
	i.skipEmpty(true)
}

func (i *indexedIterator) SeekToLast() {
	i.index.move(ldb.Iterator.SeekToLast)
	i.position(ldb.Iterator.SeekToLast)
	i.skipEmpty(false)
}

func (i *indexedIterator) Seek(target []byte) {
	i.index.seek(target)
	i.position(func(it ldb.Iterator) { it.Seek(target) })
	i.skipEmpty(true)
}

func (i *indexedIterator) Next() {
	if !i.IsValid() {
		panic("indexedIterator: not valid")
	}
	i.data.move(ldb.Iterator.Next)
	i.skipEmpty(true)
}

func (i *indexedIterator) Prev() {
	if !i.IsValid() {
		panic("indexedIterator: not valid")
	}
	i.data.move(ldb.Iterator.Prev)
	i.skipEmpty(false)
}

func (i *indexedIterator) GetKey() []byte {
	if !i.IsValid() {
		panic("indexedIterator: not valid")
	}
	return i.data.key
}

func (i *indexedIterator) GetValue() []byte {
	return i.data.value()
}

func (i *indexedIterator) GetStatus() error {
	if err := i.index.status(); err != nil {
		return err
	}
	if err := i.data.status(); err != nil {
		return err
	}
	return i.err
}

func (i *indexedIterator) Close() {
	i.data.reset(nil)
	i.index.reset(nil)
	i.CleanUpIterator.Close()
}

// position opens the block under the index and places its iterator with
// place.
func (i *indexedIterator) position(place func(ldb.Iterator)) {
	if i.openBlock() {
		i.data.move(place)
	}
}

// skipEmpty steps the index until the data cursor rests on an entry or the
// index runs out.
func (i *indexedIterator) skipEmpty(forward bool) {
	for !i.data.valid {
		if !i.index.valid {
			i.setData(nil)
			return
		}
		if forward {
			i.index.move(ldb.Iterator.Next)
			i.position(ldb.Iterator.SeekToFirst)
		} else {
			i.index.move(ldb.Iterator.Prev)
			i.position(ldb.Iterator.SeekToLast)
		}
	}
}

// openBlock makes data iterate the block under the index, reusing the open
// block when the index value is unchanged. It reports whether a block is
// open.
func (i *indexedIterator) openBlock() bool {
	if !i.index.valid {
		i.setData(nil)
		return false
	}
	handle := i.index.value()
	if i.data.iter == nil || !bytes.Equal(handle, i.opened) {
		i.opened = append(i.opened[:0], handle...)
		i.setData(i.opener.OpenBlock(i.options, handle))
	}
	return i.data.iter != nil
}

func (i *indexedIterator) setData(iter ldb.Iterator) {
	if err := i.data.status(); err != nil && i.err == nil {
		i.err = err
	}
	i.data.reset(iter)
}
