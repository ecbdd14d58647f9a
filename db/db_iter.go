package db

import (
	"ldb"
	"ldb/table"
	"ldb/util"
)

// dbIter turns an internal iterator over every layer of the database into
// an iterator over user keys. Each user key appears once with the value of
// its newest entry at or below sequence; keys whose newest entry is a
// deletion are hidden.
//
// The current key and value are held as copies. Moving forward the
// internal iterator rests on the first entry after every version of the
// current key; in reverse it rests on the last entry before them.
type dbIter struct {
	table.CleanUpIterator
	ucmp     ldb.Comparator
	iter     ldb.Iterator
	sequence ldb.SequenceNumber
	err      error
	key      []byte
	value    []byte
	valid    bool
	reverse  bool
}

func newDBIterator(ucmp ldb.Comparator, iter ldb.Iterator, sequence ldb.SequenceNumber) *dbIter {
	return &dbIter{ucmp: ucmp, iter: iter, sequence: sequence}
}

func (i *dbIter) IsValid() bool {
	return i.valid
}

func (i *dbIter) SeekToFirst() {
	i.reverse = false
	i.iter.SeekToFirst()
	i.scanForward()
}

func (i *dbIter) SeekToLast() {
	i.reverse = true
	i.iter.SeekToLast()
	i.scanBackward()
}

func (i *dbIter) Seek(target []byte) {
	i.reverse = false
	i.iter.Seek(ldb.MakeInternalKey(target, i.sequence, ldb.ValueTypeForSeek))
	i.scanForward()
}

func (i *dbIter) Next() {
	if !i.valid {
		panic("dbIter: not valid")
	}
	if i.reverse {
		i.reverse = false
		i.iter.Seek(ldb.MakeLookupKey(i.key))
		i.skipVersions(i.key)
	}
	i.scanForward()
}

func (i *dbIter) Prev() {
	if !i.valid {
		panic("dbIter: not valid")
	}
	if !i.reverse {
		i.reverse = true
		i.iter.Seek(ldb.MakeLookupKey(i.key))
		if i.iter.IsValid() {
			i.iter.Prev()
		} else {
			i.iter.SeekToLast()
		}
		for i.iter.IsValid() && i.ucmp.Compare(ldb.ExtractUserKey(i.iter.GetKey()), i.key) >= 0 {
			i.iter.Prev()
		}
	}
	i.scanBackward()
}

func (i *dbIter) GetKey() []byte {
	if !i.valid {
		panic("dbIter: not valid")
	}
	return i.key
}

func (i *dbIter) GetValue() []byte {
	if !i.valid {
		panic("dbIter: not valid")
	}
	return i.value
}

func (i *dbIter) GetStatus() error {
	if i.err != nil {
		return i.err
	}
	return i.iter.GetStatus()
}

func (i *dbIter) Close() {
	i.iter.Close()
	i.CleanUpIterator.Close()
}

// scanForward settles on the first user key at or after the internal
// iterator whose newest visible entry is a value. Versions are met newest
// first, so the first visible entry of a key decides it.
func (i *dbIter) scanForward() {
	var ikey ldb.ParsedInternalKey
	for i.iter.IsValid() {
		if !i.parse(&ikey) {
			return
		}
		if ikey.Sequence > i.sequence {
			i.iter.Next()
			continue
		}
		live := ikey.ValueType == ldb.TypeValue
		if live {
			i.value = append(i.value[:0], i.iter.GetValue()...)
		}
		i.key = append(i.key[:0], ikey.UserKey...)
		i.skipVersions(i.key)
		if live {
			i.valid = true
			return
		}
	}
	i.valid = false
}

// scanBackward settles on the nearest user key before the internal
// iterator whose newest visible entry is a value. Versions are met oldest
// first, so the last visible entry seen for a key decides it.
func (i *dbIter) scanBackward() {
	var ikey ldb.ParsedInternalKey
	for i.iter.IsValid() {
		if !i.parse(&ikey) {
			return
		}
		i.key = append(i.key[:0], ikey.UserKey...)
		found, live := false, false
		for {
			if ikey.Sequence <= i.sequence {
				found = true
				live = ikey.ValueType == ldb.TypeValue
				if live {
					i.value = append(i.value[:0], i.iter.GetValue()...)
				}
			}
			i.iter.Prev()
			if !i.iter.IsValid() {
				break
			}
			if !i.parse(&ikey) {
				return
			}
			if i.ucmp.Compare(ikey.UserKey, i.key) != 0 {
				break
			}
		}
		if found && live {
			i.valid = true
			return
		}
	}
	i.valid = false
}

// skipVersions advances the internal iterator past every entry of userKey.
func (i *dbIter) skipVersions(userKey []byte) {
	for i.iter.IsValid() && i.ucmp.Compare(ldb.ExtractUserKey(i.iter.GetKey()), userKey) == 0 {
		i.iter.Next()
	}
}

func (i *dbIter) parse(ikey *ldb.ParsedInternalKey) bool {
	if ldb.ParseInternalKey(i.iter.GetKey(), ikey) {
		return true
	}
	i.err = util.CorruptionError2("corrupted internal key in dbIter", util.EscapeString(i.iter.GetKey()))
	i.valid = false
	return false
}
