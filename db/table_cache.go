package db

import (
	"ldb"
	"ldb/table"
	"ldb/util"
)

// tableCache keeps recently used tables open, keyed by file number. A file
// is opened on first use and closed when it is evicted and no iterator
// still holds it.
type tableCache struct {
	env     *ldb.Env
	dbName  string
	options *ldb.Options
	cache   ldb.Cache
}

func newTableCache(dbName string, options *ldb.Options, env *ldb.Env, entries int) *tableCache {
	return &tableCache{
		env:     env,
		dbName:  dbName,
		options: options,
		cache:   ldb.NewLRUCache(entries),
	}
}

func fileCacheKey(fileNumber uint64) []byte {
	var buf [8]byte
	util.EncodeFixed64(buf[:], fileNumber)
	return buf[:]
}

func (c *tableCache) findTable(fileNumber, fileSize uint64) (ldb.Handle, error) {
	key := fileCacheKey(fileNumber)
	if handle := c.cache.Lookup(key); handle != nil {
		return handle, nil
	}
	file, err := c.env.NewRandomAccessFile(tableFileName(c.dbName, fileNumber))
	if err != nil {
		var oldErr error
		if file, oldErr = c.env.NewRandomAccessFile(sstTableFileName(c.dbName, fileNumber)); oldErr != nil {
			return nil, err
		}
	}
	t, err := table.Open(c.options, file, fileSize)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return c.cache.Insert(key, t, 1, closeTable), nil
}

func closeTable(key []byte, value interface{}) {
	_ = value.(*table.Table).Close()
}

func releaseTable(arg1, arg2 interface{}) {
	arg1.(ldb.Cache).Release(arg2)
}

// OpenBlock iterates the table named by a levelFileNumIterator value: the
// file number and size as two fixed64s.
func (c *tableCache) OpenBlock(options *ldb.ReadOptions, fileValue []byte) ldb.Iterator {
	if len(fileValue) != 16 {
		return table.NewErrorIterator(util.CorruptionError1("level file entry has unexpected length"))
	}
	return c.newIterator(options, util.DecodeFixed64(fileValue), util.DecodeFixed64(fileValue[8:]))
}

// newIterator returns an iterator over the table. The table stays open
// until the iterator is closed.
func (c *tableCache) newIterator(options *ldb.ReadOptions, fileNumber, fileSize uint64) ldb.Iterator {
	handle, err := c.findTable(fileNumber, fileSize)
	if err != nil {
		return table.NewErrorIterator(err)
	}
	iter := c.cache.Value(handle).(*table.Table).NewIterator(options)
	iter.RegisterCleanUp(releaseTable, c.cache, handle)
	return iter
}

// get looks userKey up in one table.
func (c *tableCache) get(options *ldb.ReadOptions, fileNumber, fileSize uint64, userKey []byte) (ldb.ResultStatus, error) {
	handle, err := c.findTable(fileNumber, fileSize)
	if err != nil {
		return ldb.NotFoundResult, err
	}
	defer c.cache.Release(handle)
	return c.cache.Value(handle).(*table.Table).Get(options, userKey)
}

// evict drops the cached table for a file that is no longer live.
func (c *tableCache) evict(fileNumber uint64) {
	c.cache.Erase(fileCacheKey(fileNumber))
}

// close closes every table not held by an open iterator.
func (c *tableCache) close() {
	c.cache.Prune()
}
