package db

import (
	"bytes"
	"io"

	"github.com/google/btree"

	"ldb"
	"ldb/table"
)

const memTableDegree = 32

// memEntryOverhead approximates the per-entry cost beyond key and value
// bytes: the entry struct, the btree slot and the tag.
const memEntryOverhead = 64

// memEntry is the newest write for one user key.
type memEntry struct {
	key       []byte
	seq       ldb.SequenceNumber
	valueType ldb.ValueType
	value     []byte
}

func (e *memEntry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(*memEntry).key) < 0
}

func (e *memEntry) internalKey() []byte {
	return ldb.MakeInternalKey(e.key, e.seq, e.valueType)
}

func (e *memEntry) charge() int {
	return len(e.key) + len(e.value) + memEntryOverhead
}

// memTable buffers recent writes, keyed by raw user key. A later write for a
// key replaces the earlier one, so the memtable holds one entry per user
// key and replaying a log in order leaves the last write in log order.
type memTable struct {
	tree  *btree.BTree
	usage int
}

func newMemTable() *memTable {
	return &memTable{tree: btree.New(memTableDegree)}
}

func (t *memTable) approximateMemoryUsage() int {
	return t.usage
}

func (t *memTable) len() int {
	return t.tree.Len()
}

func (t *memTable) add(seq ldb.SequenceNumber, vt ldb.ValueType, key, value []byte) {
	e := &memEntry{
		key:       append([]byte(nil), key...),
		seq:       seq,
		valueType: vt,
	}
	if vt == ldb.TypeValue {
		e.value = append([]byte(nil), value...)
	}
	if old := t.tree.ReplaceOrInsert(e); old != nil {
		t.usage -= old.(*memEntry).charge()
	}
	t.usage += e.charge()
}

// get returns the state of key in the memtable. The returned data is owned
// by the caller.
func (t *memTable) get(key []byte) ldb.ResultStatus {
	item := t.tree.Get(&memEntry{key: key})
	if item == nil {
		return ldb.NotFoundResult
	}
	e := item.(*memEntry)
	if e.valueType == ldb.TypeDeletion {
		return ldb.DeletedResult
	}
	return ldb.ExistResult(append([]byte(nil), e.value...))
}

// load replays every batch in the log read by r, in log order, and returns
// the largest sequence number seen.
func (t *memTable) load(r *logReader) (ldb.SequenceNumber, error) {
	var maxSequence ldb.SequenceNumber
	batch := ldb.NewWriteBatch()
	for {
		record, err := r.readRecord()
		if err != nil {
			if err == io.EOF {
				return maxSequence, nil
			}
			return maxSequence, err
		}
		if len(record) < ldb.WriteBatchHeader {
			r.reportCorruption(len(record), "log record too small")
			continue
		}
		if err = batch.SetContents(record); err != nil {
			return maxSequence, err
		}
		if err = insertInto(batch, t); err != nil {
			return maxSequence, err
		}
		last := batch.Sequence() + ldb.SequenceNumber(batch.Count()) - 1
		if batch.Count() > 0 && last > maxSequence {
			maxSequence = last
		}
	}
}

// newIterator returns an iterator over a snapshot of the memtable. Keys are
// internal keys in internal key order.
func (t *memTable) newIterator() ldb.Iterator {
	return &memTableIterator{tree: t.tree.Clone()}
}

type memTableIterator struct {
	table.CleanUpIterator
	tree    *btree.BTree
	current *memEntry
	key     []byte
}

func (i *memTableIterator) setCurrent(e *memEntry) {
	i.current = e
	if e != nil {
		i.key = e.internalKey()
	}
}

func (i *memTableIterator) IsValid() bool {
	return i.current != nil
}

func (i *memTableIterator) SeekToFirst() {
	if min := i.tree.Min(); min != nil {
		i.setCurrent(min.(*memEntry))
		return
	}
	i.setCurrent(nil)
}

func (i *memTableIterator) SeekToLast() {
	if max := i.tree.Max(); max != nil {
		i.setCurrent(max.(*memEntry))
		return
	}
	i.setCurrent(nil)
}

// Seek positions at the first entry whose internal key is at or past
// target.
func (i *memTableIterator) Seek(target []byte) {
	userKey, seq := target, ldb.MaxSequenceNumber
	var parsed ldb.ParsedInternalKey
	if ldb.ParseInternalKey(target, &parsed) {
		userKey, seq = parsed.UserKey, parsed.Sequence
	}
	var found *memEntry
	i.tree.AscendGreaterOrEqual(&memEntry{key: userKey}, func(item btree.Item) bool {
		e := item.(*memEntry)
		if bytes.Equal(e.key, userKey) && e.seq > seq {
			// Newer than target, so it sorts before it.
			return true
		}
		found = e
		return false
	})
	i.setCurrent(found)
}

func (i *memTableIterator) Next() {
	if !i.IsValid() {
		panic("memTableIterator: not valid")
	}
	var next *memEntry
	i.tree.AscendGreaterOrEqual(i.current, func(item btree.Item) bool {
		if item == btree.Item(i.current) {
			return true
		}
		next = item.(*memEntry)
		return false
	})
	i.setCurrent(next)
}

func (i *memTableIterator) Prev() {
	if !i.IsValid() {
		panic("memTableIterator: not valid")
	}
	var prev *memEntry
	i.tree.DescendLessOrEqual(i.current, func(item btree.Item) bool {
		if item == btree.Item(i.current) {
			return true
		}
		prev = item.(*memEntry)
		return false
	})
	i.setCurrent(prev)
}

func (i *memTableIterator) GetKey() []byte {
	if !i.IsValid() {
		panic("memTableIterator: not valid")
	}
	return i.key
}

func (i *memTableIterator) GetValue() []byte {
	if !i.IsValid() {
		panic("memTableIterator: not valid")
	}
	return i.current.value
}

func (i *memTableIterator) GetStatus() error {
	return nil
}

// memTableInserter applies batch records to a memtable, numbering them from
// seq.
type memTableInserter struct {
	seq ldb.SequenceNumber
	mem *memTable
}

func (i *memTableInserter) Put(key, value []byte) {
	i.mem.add(i.seq, ldb.TypeValue, key, value)
	i.seq++
}

func (i *memTableInserter) Delete(key []byte) {
	i.mem.add(i.seq, ldb.TypeDeletion, key, nil)
	i.seq++
}

func insertInto(batch *ldb.WriteBatch, mem *memTable) error {
	return batch.Iterate(&memTableInserter{seq: batch.Sequence(), mem: mem})
}
