package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldb"
	"ldb/util"
)

func testEncodeDecode(t *testing.T, edit *versionEdit) {
	var encoded, encoded2 []byte
	edit.encodeTo(&encoded)
	parsed := newVersionEdit()
	require.NoError(t, parsed.decodeFrom(encoded))
	parsed.encodeTo(&encoded2)
	assert.Equal(t, encoded, encoded2)
}

func TestVersionEditEncodeDecode(t *testing.T) {
	big := uint64(1 << 50)
	edit := newVersionEdit()
	for i := uint64(0); i < 4; i++ {
		testEncodeDecode(t, edit)
		edit.addFile(3, big+300+i, big+400+i,
			ldb.MakeInternalKey([]byte("foo"), ldb.SequenceNumber(big+500+i), ldb.TypeValue),
			ldb.MakeInternalKey([]byte("zoo"), ldb.SequenceNumber(big+600+i), ldb.TypeDeletion))
		edit.deleteFile(4, big+700+i)
		edit.setCompactPointer(int(i), ldb.MakeInternalKey([]byte("x"), ldb.SequenceNumber(big+900+i), ldb.TypeValue))
	}
	edit.setComparatorName("foo")
	edit.setLogNumber(big + 100)
	edit.setPrevLogNumber(big + 99)
	edit.setNextFile(big + 200)
	edit.setLastSequence(ldb.SequenceNumber(big + 1000))
	testEncodeDecode(t, edit)
}

func TestVersionEditDecodeFields(t *testing.T) {
	edit := newVersionEdit()
	edit.setComparatorName(ldb.BytewiseComparatorName)
	edit.setLogNumber(7)
	edit.setNextFile(9)
	edit.setLastSequence(42)
	edit.addFile(1, 8, 1234, ldb.MakeInternalKey([]byte("a"), 1, ldb.TypeValue), ldb.MakeInternalKey([]byte("m"), 3, ldb.TypeValue))

	var encoded []byte
	edit.encodeTo(&encoded)
	parsed := newVersionEdit()
	require.NoError(t, parsed.decodeFrom(encoded))

	assert.True(t, parsed.hasComparator)
	assert.Equal(t, ldb.BytewiseComparatorName, parsed.comparator)
	assert.Equal(t, uint64(7), parsed.logNumber)
	assert.False(t, parsed.hasPrevLogNumber)
	assert.Equal(t, uint64(9), parsed.nextFileNumber)
	assert.Equal(t, ldb.SequenceNumber(42), parsed.lastSequence)
	require.Len(t, parsed.newFiles, 1)
	f := parsed.newFiles[0]
	assert.Equal(t, 1, f.level)
	assert.Equal(t, uint64(8), f.file.number)
	assert.Equal(t, uint64(1234), f.file.fileSize)
	assert.Equal(t, []byte("a"), ldb.ExtractUserKey(f.file.smallest))
	assert.Equal(t, []byte("m"), ldb.ExtractUserKey(f.file.largest))
}

func TestVersionEditUnknownTag(t *testing.T) {
	var encoded []byte
	util.PutVarInt32(&encoded, 8)
	util.PutVarInt64(&encoded, 1)
	err := newVersionEdit().decodeFrom(encoded)
	require.Error(t, err)
	assert.True(t, ldb.IsNotSupportedError(err))
}

func TestVersionEditTruncated(t *testing.T) {
	edit := newVersionEdit()
	edit.addFile(0, 5, 100, ldb.MakeInternalKey([]byte("a"), 1, ldb.TypeValue), ldb.MakeInternalKey([]byte("b"), 2, ldb.TypeValue))
	var encoded []byte
	edit.encodeTo(&encoded)
	err := newVersionEdit().decodeFrom(encoded[:len(encoded)-3])
	require.Error(t, err)
	assert.True(t, ldb.IsCorruption(err))
}

func TestVersionEditBadLevel(t *testing.T) {
	var encoded []byte
	util.PutVarInt32(&encoded, tagDeletedFile)
	util.PutVarInt32(&encoded, numLevels)
	util.PutVarInt64(&encoded, 3)
	assert.True(t, ldb.IsCorruption(newVersionEdit().decodeFrom(encoded)))
}

func TestFoldDeletedFiles(t *testing.T) {
	small := ldb.MakeInternalKey([]byte("a"), 1, ldb.TypeValue)
	large := ldb.MakeInternalKey([]byte("z"), 2, ldb.TypeValue)

	// Deletion recorded before the addition still removes the file.
	first := newVersionEdit()
	first.deleteFile(0, 10)
	first.setLogNumber(3)
	second := newVersionEdit()
	second.addFile(0, 10, 100, small, large)
	second.addFile(2, 11, 100, small, large)
	second.setLogNumber(4)
	third := newVersionEdit()
	third.addFile(1, 12, 100, small, large)
	third.deleteFile(2, 11)
	third.setNextFile(13)
	third.setLastSequence(99)

	folded := fold([]*versionEdit{first, second, third})
	require.Len(t, folded.newFiles, 1)
	assert.Equal(t, uint64(12), folded.newFiles[0].file.number)
	assert.Equal(t, 1, folded.newFiles[0].level)
	assert.Equal(t, uint64(4), folded.logNumber)
	assert.Equal(t, uint64(13), folded.nextFileNumber)
	assert.Equal(t, ldb.SequenceNumber(99), folded.lastSequence)
	assert.Len(t, folded.deletedFiles, 2)

	// Reordering the edits gives the same live set.
	folded = fold([]*versionEdit{third, second, first})
	require.Len(t, folded.newFiles, 1)
	assert.Equal(t, uint64(12), folded.newFiles[0].file.number)
}

func TestFoldOrdersByLevel(t *testing.T) {
	small := ldb.MakeInternalKey([]byte("a"), 1, ldb.TypeValue)
	large := ldb.MakeInternalKey([]byte("b"), 1, ldb.TypeValue)
	e1 := newVersionEdit()
	e1.addFile(3, 1, 10, small, large)
	e1.addFile(0, 2, 10, small, large)
	e2 := newVersionEdit()
	e2.addFile(1, 3, 10, small, large)
	e2.addFile(0, 4, 10, small, large)

	folded := fold([]*versionEdit{e1, e2})
	var levels []int
	var numbers []uint64
	for _, nf := range folded.newFiles {
		levels = append(levels, nf.level)
		numbers = append(numbers, nf.file.number)
	}
	assert.Equal(t, []int{0, 0, 1, 3}, levels)
	assert.Equal(t, []uint64{2, 4, 3, 1}, numbers)
}

func TestVersionEditDebugString(t *testing.T) {
	edit := newVersionEdit()
	edit.setLogNumber(5)
	edit.deleteFile(1, 3)
	s := edit.debugString()
	assert.Contains(t, s, "LogNumber: 5")
	assert.Contains(t, s, "DeleteFile: 1 3")
}
