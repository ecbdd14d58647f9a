package db

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldb"
)

const testTableDB = "/tc"

func newTestTableCache(t *testing.T) (*tableCache, *ldb.Env, *ldb.Options) {
	options := ldb.NewOptions()
	options.FS = afero.NewMemMapFs()
	options = sanitizeOptions(options)
	env := ldb.NewEnv(options.FS)
	require.NoError(t, env.CreateDir(testTableDB))
	return newTableCache(testTableDB, options, env, 100), env, options
}

func buildTestTable(t *testing.T, tc *tableCache, env *ldb.Env, options *ldb.Options, number uint64, n int) *fileMetaData {
	mem := newMemTable()
	for i := 0; i < n; i++ {
		mem.add(ldb.SequenceNumber(i+1), ldb.TypeValue, []byte(fmt.Sprintf("key%05d", i)), []byte(fmt.Sprintf("value%d", i)))
	}
	meta := &fileMetaData{number: number}
	iter := mem.newIterator()
	defer iter.Close()
	require.NoError(t, buildTable(testTableDB, env, options, tc, iter, meta))
	return meta
}

func TestBuildTable(t *testing.T) {
	tc, env, options := newTestTableCache(t)
	meta := buildTestTable(t, tc, env, options, 7, 100)
	assert.Greater(t, meta.fileSize, uint64(0))
	assert.Equal(t, []byte("key00000"), ldb.ExtractUserKey(meta.smallest))
	assert.Equal(t, []byte("key00099"), ldb.ExtractUserKey(meta.largest))
	size, err := env.GetFileSize(tableFileName(testTableDB, 7))
	require.NoError(t, err)
	assert.Equal(t, int64(meta.fileSize), size)
}

func TestBuildTableEmpty(t *testing.T) {
	tc, env, options := newTestTableCache(t)
	meta := buildTestTable(t, tc, env, options, 8, 0)
	assert.Zero(t, meta.fileSize)
	assert.False(t, env.FileExists(tableFileName(testTableDB, 8)))
}

func TestTableCacheGetAndIterate(t *testing.T) {
	tc, env, options := newTestTableCache(t)
	meta := buildTestTable(t, tc, env, options, 5, 50)
	ro := ldb.NewReadOptions()

	result, err := tc.get(ro, meta.number, meta.fileSize, []byte("key00042"))
	require.NoError(t, err)
	assert.Equal(t, ldb.StateExist, result.State)
	assert.Equal(t, []byte("value42"), result.Data)

	result, err = tc.get(ro, meta.number, meta.fileSize, []byte("nope"))
	require.NoError(t, err)
	assert.Equal(t, ldb.StateNotFound, result.State)

	iter := tc.newIterator(ro, meta.number, meta.fileSize)
	count := 0
	for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
		count++
	}
	assert.NoError(t, iter.GetStatus())
	// Evicting while the iterator is open leaves the table readable.
	tc.evict(meta.number)
	iter.SeekToLast()
	require.True(t, iter.IsValid())
	assert.Equal(t, []byte("key00049"), ldb.ExtractUserKey(iter.GetKey()))
	iter.Close()
	assert.Equal(t, 50, count)
	tc.close()
}

func TestTableCacheFallsBackToSST(t *testing.T) {
	tc, env, options := newTestTableCache(t)
	meta := buildTestTable(t, tc, env, options, 9, 10)
	tc.evict(meta.number)
	require.NoError(t, env.RenameFile(tableFileName(testTableDB, 9), sstTableFileName(testTableDB, 9)))

	result, err := tc.get(ldb.NewReadOptions(), meta.number, meta.fileSize, []byte("key00003"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value3"), result.Data)
}

func TestTableCacheMissingFile(t *testing.T) {
	tc, _, _ := newTestTableCache(t)
	_, err := tc.get(ldb.NewReadOptions(), 99, 1000, []byte("k"))
	require.Error(t, err)
	assert.True(t, ldb.IsIOError(err))

	iter := tc.newIterator(ldb.NewReadOptions(), 99, 1000)
	iter.SeekToFirst()
	assert.False(t, iter.IsValid())
	assert.True(t, ldb.IsIOError(iter.GetStatus()))
	iter.Close()
}
