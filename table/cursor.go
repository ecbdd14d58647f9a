package table

import "ldb"

// cursor tracks an iterator together with its validity and current key, so
// the merging and indexed iterators compare keys without calling through the
// interface on every step. A cursor with no iterator is never valid.
type cursor struct {
	iter  ldb.Iterator
	valid bool
	key   []byte
}

// reset closes the current iterator, if any, and starts tracking iter.
func (c *cursor) reset(iter ldb.Iterator) {
	if c.iter != nil {
		c.iter.Close()
	}
	c.iter = iter
	c.sync()
}

func (c *cursor) sync() {
	c.valid = c.iter != nil && c.iter.IsValid()
	if c.valid {
		c.key = c.iter.GetKey()
	} else {
		c.key = nil
	}
}

// move applies step to the iterator and refreshes the cached state.
func (c *cursor) move(step func(ldb.Iterator)) {
	step(c.iter)
	c.sync()
}

func (c *cursor) seek(target []byte) {
	c.iter.Seek(target)
	c.sync()
}

func (c *cursor) value() []byte {
	if !c.valid {
		panic("cursor: not valid")
	}
	return c.iter.GetValue()
}

func (c *cursor) status() error {
	if c.iter == nil {
		return nil
	}
	return c.iter.GetStatus()
}
