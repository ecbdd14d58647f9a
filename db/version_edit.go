package db

import (
	"fmt"
	"sort"
	"strings"

	"ldb"
	"ldb/util"
)

const numLevels = 7

// Tag numbers for serialized VersionEdit. These numbers are written to
// disk and should not be changed. Tag 8 was used for large value refs and
// is no longer understood.
const (
	tagComparator = 1 + iota
	tagLogNumber
	tagNextFileNumber
	tagLastSequence
	tagCompactPointer
	tagDeletedFile
	tagNewFile
	_
	tagPrevLogNumber
)

// fileMetaData describes one live table file. smallest and largest are
// internal keys.
type fileMetaData struct {
	number   uint64
	fileSize uint64
	smallest []byte
	largest  []byte
}

type levelAndNumber struct {
	level  int
	number uint64
}

type levelAndKey struct {
	level int
	key   []byte
}

type levelAndFile struct {
	level int
	file  *fileMetaData
}

type versionEdit struct {
	comparator        string
	logNumber         uint64
	prevLogNumber     uint64
	nextFileNumber    uint64
	lastSequence      ldb.SequenceNumber
	hasComparator     bool
	hasLogNumber      bool
	hasPrevLogNumber  bool
	hasNextFileNumber bool
	hasLastSequence   bool
	compactPointers   []levelAndKey
	deletedFiles      map[levelAndNumber]struct{}
	newFiles          []levelAndFile
}

func newVersionEdit() *versionEdit {
	e := new(versionEdit)
	e.clear()
	return e
}

func (e *versionEdit) clear() {
	*e = versionEdit{deletedFiles: make(map[levelAndNumber]struct{})}
}

func (e *versionEdit) setComparatorName(name string) {
	e.hasComparator = true
	e.comparator = name
}

func (e *versionEdit) setLogNumber(num uint64) {
	e.hasLogNumber = true
	e.logNumber = num
}

func (e *versionEdit) setPrevLogNumber(num uint64) {
	e.hasPrevLogNumber = true
	e.prevLogNumber = num
}

func (e *versionEdit) setNextFile(num uint64) {
	e.hasNextFileNumber = true
	e.nextFileNumber = num
}

func (e *versionEdit) setLastSequence(seq ldb.SequenceNumber) {
	e.hasLastSequence = true
	e.lastSequence = seq
}

func (e *versionEdit) setCompactPointer(level int, key []byte) {
	e.compactPointers = append(e.compactPointers, levelAndKey{level, append([]byte(nil), key...)})
}

// addFile records a new table at level. smallest and largest are the
// smallest and largest internal keys in the file.
func (e *versionEdit) addFile(level int, number, fileSize uint64, smallest, largest []byte) {
	e.newFiles = append(e.newFiles, levelAndFile{level, &fileMetaData{
		number:   number,
		fileSize: fileSize,
		smallest: append([]byte(nil), smallest...),
		largest:  append([]byte(nil), largest...),
	}})
}

func (e *versionEdit) deleteFile(level int, number uint64) {
	e.deletedFiles[levelAndNumber{level, number}] = struct{}{}
}

func (e *versionEdit) sortedDeletedFiles() []levelAndNumber {
	files := make([]levelAndNumber, 0, len(e.deletedFiles))
	for k := range e.deletedFiles {
		files = append(files, k)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].level != files[j].level {
			return files[i].level < files[j].level
		}
		return files[i].number < files[j].number
	})
	return files
}

func (e *versionEdit) encodeTo(dst *[]byte) {
	if e.hasComparator {
		util.PutVarInt32(dst, tagComparator)
		util.PutLengthPrefixedSlice(dst, []byte(e.comparator))
	}
	if e.hasLogNumber {
		util.PutVarInt32(dst, tagLogNumber)
		util.PutVarInt64(dst, e.logNumber)
	}
	if e.hasPrevLogNumber {
		util.PutVarInt32(dst, tagPrevLogNumber)
		util.PutVarInt64(dst, e.prevLogNumber)
	}
	if e.hasNextFileNumber {
		util.PutVarInt32(dst, tagNextFileNumber)
		util.PutVarInt64(dst, e.nextFileNumber)
	}
	if e.hasLastSequence {
		util.PutVarInt32(dst, tagLastSequence)
		util.PutVarInt64(dst, uint64(e.lastSequence))
	}
	for _, p := range e.compactPointers {
		util.PutVarInt32(dst, tagCompactPointer)
		util.PutVarInt32(dst, uint32(p.level))
		util.PutLengthPrefixedSlice(dst, p.key)
	}
	for _, f := range e.sortedDeletedFiles() {
		util.PutVarInt32(dst, tagDeletedFile)
		util.PutVarInt32(dst, uint32(f.level))
		util.PutVarInt64(dst, f.number)
	}
	for _, nf := range e.newFiles {
		util.PutVarInt32(dst, tagNewFile)
		util.PutVarInt32(dst, uint32(nf.level))
		util.PutVarInt64(dst, nf.file.number)
		util.PutVarInt64(dst, nf.file.fileSize)
		util.PutLengthPrefixedSlice(dst, nf.file.smallest)
		util.PutLengthPrefixedSlice(dst, nf.file.largest)
	}
}

func getInternalKey(input *[]byte, dst *[]byte) bool {
	return util.GetLengthPrefixedSlice(input, dst) && len(*dst) >= ldb.TagSize
}

func getLevel(input *[]byte, level *int) bool {
	var v uint32
	if util.GetVarInt32(input, &v) && v < numLevels {
		*level = int(v)
		return true
	}
	return false
}

func (e *versionEdit) decodeFrom(src []byte) error {
	e.clear()
	input := src
	var (
		msg    string
		tag    uint32
		level  int
		number uint64
		str    []byte
		key    []byte
	)
	for msg == "" && len(input) > 0 {
		if !util.GetVarInt32(&input, &tag) {
			msg = "invalid tag"
			break
		}
		switch tag {
		case tagComparator:
			if util.GetLengthPrefixedSlice(&input, &str) {
				e.setComparatorName(string(str))
			} else {
				msg = "comparator name"
			}
		case tagLogNumber:
			if util.GetVarInt64(&input, &number) {
				e.setLogNumber(number)
			} else {
				msg = "log number"
			}
		case tagPrevLogNumber:
			if util.GetVarInt64(&input, &number) {
				e.setPrevLogNumber(number)
			} else {
				msg = "previous log number"
			}
		case tagNextFileNumber:
			if util.GetVarInt64(&input, &number) {
				e.setNextFile(number)
			} else {
				msg = "next file number"
			}
		case tagLastSequence:
			if util.GetVarInt64(&input, &number) {
				e.setLastSequence(ldb.SequenceNumber(number))
			} else {
				msg = "last sequence number"
			}
		case tagCompactPointer:
			if getLevel(&input, &level) && getInternalKey(&input, &key) {
				e.setCompactPointer(level, key)
			} else {
				msg = "compaction pointer"
			}
		case tagDeletedFile:
			if getLevel(&input, &level) && util.GetVarInt64(&input, &number) {
				e.deleteFile(level, number)
			} else {
				msg = "deleted file"
			}
		case tagNewFile:
			f := new(fileMetaData)
			if getLevel(&input, &level) && util.GetVarInt64(&input, &f.number) &&
				util.GetVarInt64(&input, &f.fileSize) && getInternalKey(&input, &f.smallest) &&
				getInternalKey(&input, &f.largest) {
				e.newFiles = append(e.newFiles, levelAndFile{level, f})
			} else {
				msg = "new-file entry"
			}
		default:
			return util.NotSupportedError2("VersionEdit", "unknown tag "+util.NumberToString(uint64(tag)))
		}
	}
	if msg != "" {
		return util.CorruptionError2("VersionEdit", msg)
	}
	return nil
}

// fold merges edits, read in manifest order, into one edit. Scalars take
// the last value set. Deleted and new files accumulate, and a new file
// whose number is deleted at any level is dropped, whichever edit deleted
// it. New files come out ordered by level.
func fold(edits []*versionEdit) *versionEdit {
	result := newVersionEdit()
	deletedNumbers := make(map[uint64]struct{})
	var added []levelAndFile
	for _, e := range edits {
		if e.hasComparator {
			result.setComparatorName(e.comparator)
		}
		if e.hasLogNumber {
			result.setLogNumber(e.logNumber)
		}
		if e.hasPrevLogNumber {
			result.setPrevLogNumber(e.prevLogNumber)
		}
		if e.hasNextFileNumber {
			result.setNextFile(e.nextFileNumber)
		}
		if e.hasLastSequence {
			result.setLastSequence(e.lastSequence)
		}
		result.compactPointers = append(result.compactPointers, e.compactPointers...)
		for k := range e.deletedFiles {
			result.deletedFiles[k] = struct{}{}
			deletedNumbers[k.number] = struct{}{}
		}
		added = append(added, e.newFiles...)
	}
	for _, nf := range added {
		if _, deleted := deletedNumbers[nf.file.number]; !deleted {
			result.newFiles = append(result.newFiles, nf)
		}
	}
	sort.SliceStable(result.newFiles, func(i, j int) bool {
		return result.newFiles[i].level < result.newFiles[j].level
	})
	return result
}

func (e *versionEdit) debugString() string {
	var b strings.Builder
	b.WriteString("VersionEdit {")
	if e.hasComparator {
		b.WriteString("\n  Comparator: " + e.comparator)
	}
	if e.hasLogNumber {
		b.WriteString("\n  LogNumber: " + util.NumberToString(e.logNumber))
	}
	if e.hasPrevLogNumber {
		b.WriteString("\n  PrevLogNumber: " + util.NumberToString(e.prevLogNumber))
	}
	if e.hasNextFileNumber {
		b.WriteString("\n  NextFile: " + util.NumberToString(e.nextFileNumber))
	}
	if e.hasLastSequence {
		b.WriteString("\n  LastSeq: " + util.NumberToString(uint64(e.lastSequence)))
	}
	for _, p := range e.compactPointers {
		fmt.Fprintf(&b, "\n  CompactPointer: %d %s", p.level, ldb.InternalKeyDebugString(p.key))
	}
	for _, f := range e.sortedDeletedFiles() {
		fmt.Fprintf(&b, "\n  DeleteFile: %d %d", f.level, f.number)
	}
	for _, nf := range e.newFiles {
		fmt.Fprintf(&b, "\n  AddFile: %d %d %d %s .. %s", nf.level, nf.file.number, nf.file.fileSize,
			ldb.InternalKeyDebugString(nf.file.smallest), ldb.InternalKeyDebugString(nf.file.largest))
	}
	b.WriteString("\n}\n")
	return b.String()
}
