package db

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"

	"ldb"
	"ldb/table"
	"ldb/util"
)

// maxMemCompactLevel is the deepest level a flushed memtable may be pushed
// to when it overlaps nothing on the way down.
const maxMemCompactLevel = 2

func maxGrandParentOverlapBytes(options *ldb.Options) int64 {
	return int64(10 * options.MaxFileSize)
}

func expandedCompactionByteSizeLimit(options *ldb.Options) int64 {
	return int64(25 * options.MaxFileSize)
}

func maxBytesForLevel(options *ldb.Options, level int) float64 {
	result := float64(options.LevelSizeBase)
	for level > 1 {
		result *= float64(options.LevelSizeBaseFactor)
		level--
	}
	return result
}

func totalFileSize(files []*fileMetaData) (sum int64) {
	for _, file := range files {
		sum += int64(file.fileSize)
	}
	return
}

// version is an immutable view of the live table files. Level 0 files are
// kept in the order they were flushed; deeper levels are sorted by
// smallest key and never overlap.
type version struct {
	vset            *versionSet
	refs            int
	files           [numLevels][]*fileMetaData
	compactionScore float64
	compactionLevel int
}

func newVersion(vset *versionSet) *version {
	return &version{
		vset:            vset,
		compactionScore: -1,
		compactionLevel: -1,
	}
}

func (v *version) ref() {
	v.refs++
	if v.refs == 1 {
		v.vset.versions[v] = struct{}{}
	}
}

func (v *version) unref() {
	if v.refs <= 0 {
		panic("version: refs <= 0")
	}
	v.refs--
	if v.refs == 0 {
		delete(v.vset.versions, v)
	}
}

func (v *version) newConcatenatingIterator(options *ldb.ReadOptions, level int) ldb.Iterator {
	return table.NewIndexedIterator(newLevelFileNumIterator(v.vset.icmp, v.files[level]), v.vset.tableCache, options)
}

// addIterators appends one iterator per level 0 file and one concatenating
// iterator per deeper non-empty level.
func (v *version) addIterators(options *ldb.ReadOptions, iters []ldb.Iterator) []ldb.Iterator {
	for _, f := range v.files[0] {
		iters = append(iters, v.vset.tableCache.newIterator(options, f.number, f.fileSize))
	}
	for level := 1; level < numLevels; level++ {
		if len(v.files[level]) != 0 {
			iters = append(iters, v.newConcatenatingIterator(options, level))
		}
	}
	return iters
}

func newestFirst(files []*fileMetaData) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].number > files[j].number
	})
}

// get looks userKey up level by level. Overlapping level 0 files are searched
// newest first; deeper levels hold at most one candidate file. The first
// table that has the key, live or deleted, decides the result.
func (v *version) get(options *ldb.ReadOptions, userKey []byte) (ldb.ResultStatus, error) {
	icmp := v.vset.icmp
	ucmp := icmp.UserComparator

	tmp := make([]*fileMetaData, 0, len(v.files[0]))
	for _, f := range v.files[0] {
		if ucmp.Compare(userKey, ldb.ExtractUserKey(f.smallest)) >= 0 &&
			ucmp.Compare(userKey, ldb.ExtractUserKey(f.largest)) <= 0 {
			tmp = append(tmp, f)
		}
	}
	newestFirst(tmp)
	for _, f := range tmp {
		result, err := v.vset.tableCache.get(options, f.number, f.fileSize, userKey)
		if err != nil || result.State != ldb.StateNotFound {
			return result, err
		}
	}

	ikey := ldb.MakeLookupKey(userKey)
	for level := 1; level < numLevels; level++ {
		files := v.files[level]
		index := findFile(icmp, files, ikey)
		if index >= len(files) {
			continue
		}
		f := files[index]
		if ucmp.Compare(userKey, ldb.ExtractUserKey(f.smallest)) < 0 {
			continue
		}
		result, err := v.vset.tableCache.get(options, f.number, f.fileSize, userKey)
		if err != nil || result.State != ldb.StateNotFound {
			return result, err
		}
	}
	return ldb.NotFoundResult, nil
}

func (v *version) overlapInLevel(level int, smallestUserKey, largestUserKey []byte) bool {
	return someFileOverlapsRange(v.vset.icmp, level > 0, v.files[level], smallestUserKey, largestUserKey)
}

// pickLevelForMemTableOutput returns the level a new table covering
// [smallestUserKey, largestUserKey] should be placed at.
func (v *version) pickLevelForMemTableOutput(smallestUserKey, largestUserKey []byte) int {
	level := 0
	if v.overlapInLevel(0, smallestUserKey, largestUserKey) {
		return level
	}
	start := ldb.MakeLookupKey(smallestUserKey)
	limit := ldb.MakeInternalKey(largestUserKey, 0, ldb.TypeDeletion)
	for level < maxMemCompactLevel {
		if v.overlapInLevel(level+1, smallestUserKey, largestUserKey) {
			break
		}
		if level+2 < numLevels {
			overlaps := v.getOverlappingInputs(level+2, start, limit)
			if totalFileSize(overlaps) > maxGrandParentOverlapBytes(v.vset.options) {
				break
			}
		}
		level++
	}
	return level
}

// getOverlappingInputs returns the files at level overlapping the internal
// key range [begin, end]. A nil bound is open. For level 0 the range grows
// to cover every file it touches, since those files overlap each other.
func (v *version) getOverlappingInputs(level int, begin, end []byte) []*fileMetaData {
	ucmp := v.vset.icmp.UserComparator
	var userBegin, userEnd []byte
	if begin != nil {
		userBegin = ldb.ExtractUserKey(begin)
	}
	if end != nil {
		userEnd = ldb.ExtractUserKey(end)
	}
	var inputs []*fileMetaData
	for i := 0; i < len(v.files[level]); {
		f := v.files[level][i]
		i++
		fileStart := ldb.ExtractUserKey(f.smallest)
		fileLimit := ldb.ExtractUserKey(f.largest)
		if userBegin != nil && ucmp.Compare(fileLimit, userBegin) < 0 {
			continue
		}
		if userEnd != nil && ucmp.Compare(fileStart, userEnd) > 0 {
			continue
		}
		inputs = append(inputs, f)
		if level == 0 {
			if userBegin != nil && ucmp.Compare(fileStart, userBegin) < 0 {
				userBegin = fileStart
				inputs = inputs[:0]
				i = 0
			} else if userEnd != nil && ucmp.Compare(fileLimit, userEnd) > 0 {
				userEnd = fileLimit
				inputs = inputs[:0]
				i = 0
			}
		}
	}
	return inputs
}

func (v *version) debugString() string {
	var b strings.Builder
	for level := 0; level < numLevels; level++ {
		fmt.Fprintf(&b, "--- level %d ---\n", level)
		for _, f := range v.files[level] {
			fmt.Fprintf(&b, " %d:%d[%s .. %s]\n", f.number, f.fileSize,
				ldb.InternalKeyDebugString(f.smallest), ldb.InternalKeyDebugString(f.largest))
		}
	}
	return b.String()
}

// findFile returns the index of the first file whose largest key is at or
// after key, or len(files) if there is none.
func findFile(icmp *ldb.InternalKeyComparator, files []*fileMetaData, key []byte) int {
	return sort.Search(len(files), func(i int) bool {
		return icmp.Compare(files[i].largest, key) >= 0
	})
}

func afterFile(ucmp ldb.Comparator, userKey []byte, f *fileMetaData) bool {
	return userKey != nil && ucmp.Compare(userKey, ldb.ExtractUserKey(f.largest)) > 0
}

func beforeFile(ucmp ldb.Comparator, userKey []byte, f *fileMetaData) bool {
	return userKey != nil && ucmp.Compare(userKey, ldb.ExtractUserKey(f.smallest)) < 0
}

func someFileOverlapsRange(icmp *ldb.InternalKeyComparator, disjointSortedFiles bool, files []*fileMetaData, smallestUserKey, largestUserKey []byte) bool {
	ucmp := icmp.UserComparator
	if !disjointSortedFiles {
		for _, f := range files {
			if !afterFile(ucmp, smallestUserKey, f) && !beforeFile(ucmp, largestUserKey, f) {
				return true
			}
		}
		return false
	}

	index := 0
	if smallestUserKey != nil {
		index = findFile(icmp, files, ldb.MakeLookupKey(smallestUserKey))
	}
	if index >= len(files) {
		return false
	}
	return !beforeFile(ucmp, largestUserKey, files[index])
}

// levelFileNumIterator yields one entry per file of a sorted level. The key
// is the largest key in the file and the value is the file number and size,
// each encoded with EncodeFixed64.
type levelFileNumIterator struct {
	table.CleanUpIterator
	icmp     *ldb.InternalKeyComparator
	flist    []*fileMetaData
	index    int
	valueBuf [16]byte
}

func newLevelFileNumIterator(icmp *ldb.InternalKeyComparator, flist []*fileMetaData) *levelFileNumIterator {
	return &levelFileNumIterator{
		icmp:  icmp,
		flist: flist,
		index: len(flist),
	}
}

func (i *levelFileNumIterator) IsValid() bool {
	return i.index < len(i.flist)
}

func (i *levelFileNumIterator) SeekToFirst() {
	i.index = 0
}

func (i *levelFileNumIterator) SeekToLast() {
	if l := len(i.flist); l == 0 {
		i.index = 0
	} else {
		i.index = l - 1
	}
}

func (i *levelFileNumIterator) Seek(target []byte) {
	i.index = findFile(i.icmp, i.flist, target)
}

func (i *levelFileNumIterator) Next() {
	if !i.IsValid() {
		panic("levelFileNumIterator: not valid")
	}
	i.index++
}

func (i *levelFileNumIterator) Prev() {
	if !i.IsValid() {
		panic("levelFileNumIterator: not valid")
	}
	if i.index == 0 {
		i.index = len(i.flist)
	} else {
		i.index--
	}
}

func (i *levelFileNumIterator) GetKey() []byte {
	if !i.IsValid() {
		panic("levelFileNumIterator: not valid")
	}
	return i.flist[i.index].largest
}

func (i *levelFileNumIterator) GetValue() []byte {
	if !i.IsValid() {
		panic("levelFileNumIterator: not valid")
	}
	util.EncodeFixed64(i.valueBuf[:8], i.flist[i.index].number)
	util.EncodeFixed64(i.valueBuf[8:], i.flist[i.index].fileSize)
	return i.valueBuf[:]
}

func (i *levelFileNumIterator) GetStatus() error {
	return nil
}


// versionSet owns the current version, the manifest it is persisted in and
// the file number and sequence counters.
type versionSet struct {
	env                *ldb.Env
	dbName             string
	options            *ldb.Options
	tableCache         *tableCache
	icmp               *ldb.InternalKeyComparator
	nextFileNumber     atomic.Uint64
	lastSequence       atomic.Uint64
	manifestFileNumber uint64
	logNumber          uint64
	prevLogNumber      uint64
	descriptorFile     ldb.WritableFile
	descriptorLog      *logWriter
	current            *version
	versions           map[*version]struct{}
	compactPointer     [numLevels][]byte
}

func newVersionSet(dbName string, options *ldb.Options, env *ldb.Env, tableCache *tableCache, icmp *ldb.InternalKeyComparator) *versionSet {
	s := &versionSet{
		env:        env,
		dbName:     dbName,
		options:    options,
		tableCache: tableCache,
		icmp:       icmp,
		versions:   make(map[*version]struct{}),
	}
	s.nextFileNumber.Store(1)
	s.appendVersion(newVersion(s))
	return s
}

func (s *versionSet) close() error {
	s.descriptorLog = nil
	if s.descriptorFile == nil {
		return nil
	}
	err := s.descriptorFile.Close()
	s.descriptorFile = nil
	return err
}

func (s *versionSet) appendVersion(v *version) {
	if v == s.current {
		panic("versionSet: v == current")
	}
	if s.current != nil {
		s.current.unref()
	}
	s.current = v
	v.ref()
}

func (s *versionSet) newFileNumber() uint64 {
	return s.nextFileNumber.Add(1) - 1
}

func (s *versionSet) markFileNumberUsed(number uint64) {
	for {
		next := s.nextFileNumber.Load()
		if next > number || s.nextFileNumber.CompareAndSwap(next, number+1) {
			return
		}
	}
}

func (s *versionSet) getLastSequence() ldb.SequenceNumber {
	return ldb.SequenceNumber(s.lastSequence.Load())
}

func (s *versionSet) setLastSequence(seq ldb.SequenceNumber) {
	if seq < s.getLastSequence() {
		panic("versionSet: last sequence moved backwards")
	}
	s.lastSequence.Store(uint64(seq))
}

// apply returns a new version holding base's files with edit applied. Files
// that overlap within a level above 0 make the edit corrupt.
func (s *versionSet) apply(base *version, edit *versionEdit) (*version, error) {
	v := newVersion(s)
	for level := 0; level < numLevels; level++ {
		for _, f := range base.files[level] {
			if _, deleted := edit.deletedFiles[levelAndNumber{level, f.number}]; !deleted {
				v.files[level] = append(v.files[level], f)
			}
		}
	}
	for _, nf := range edit.newFiles {
		if _, deleted := edit.deletedFiles[levelAndNumber{nf.level, nf.file.number}]; deleted {
			continue
		}
		v.files[nf.level] = append(v.files[nf.level], nf.file)
	}
	sort.Slice(v.files[0], func(i, j int) bool {
		return v.files[0][i].number < v.files[0][j].number
	})
	for level := 1; level < numLevels; level++ {
		files := v.files[level]
		sort.Slice(files, func(i, j int) bool {
			if r := s.icmp.Compare(files[i].smallest, files[j].smallest); r != 0 {
				return r < 0
			}
			return files[i].number < files[j].number
		})
		for i := 1; i < len(files); i++ {
			if s.icmp.Compare(files[i-1].largest, files[i].smallest) >= 0 {
				return nil, util.CorruptionError2(fmt.Sprintf("overlapping ranges in level %d", level),
					fmt.Sprintf("files %d and %d", files[i-1].number, files[i].number))
			}
		}
	}
	for _, p := range edit.compactPointers {
		s.compactPointer[p.level] = p.key
	}
	s.finalizeVersion(v)
	return v, nil
}

// logAndApply persists edit and installs the version it produces. The
// first call after open writes a snapshot of the current version into a
// fresh manifest and points CURRENT at it.
func (s *versionSet) logAndApply(edit *versionEdit) (err error) {
	if edit.hasLogNumber {
		if edit.logNumber < s.logNumber {
			panic("versionSet: edit.logNumber < logNumber")
		}
		if edit.logNumber >= s.nextFileNumber.Load() {
			panic("versionSet: edit.logNumber >= nextFileNumber")
		}
	} else {
		edit.setLogNumber(s.logNumber)
	}
	if !edit.hasPrevLogNumber {
		edit.setPrevLogNumber(s.prevLogNumber)
	}

	v, err := s.apply(s.current, edit)
	if err != nil {
		return err
	}

	var newManifestFile string
	if s.descriptorLog == nil {
		s.manifestFileNumber = s.newFileNumber()
		newManifestFile = descriptorFileName(s.dbName, s.manifestFileNumber)
		if s.descriptorFile, err = s.env.NewWritableFile(newManifestFile); err == nil {
			s.descriptorLog = newLogWriter(s.descriptorFile)
			err = s.writeSnapshot(s.descriptorLog)
		}
	}
	edit.setNextFile(s.nextFileNumber.Load())
	edit.setLastSequence(s.getLastSequence())

	if err == nil {
		var record []byte
		edit.encodeTo(&record)
		if err = s.descriptorLog.addRecord(record); err == nil {
			err = s.descriptorFile.Sync()
		}
		if err != nil {
			ldb.Log(s.options.InfoLog, "MANIFEST write: %v", err)
		}
	}
	if err == nil && newManifestFile != "" {
		err = setCurrentFile(s.env, s.dbName, s.manifestFileNumber)
	}

	if err != nil {
		if newManifestFile != "" {
			if s.descriptorFile != nil {
				_ = s.descriptorFile.Close()
			}
			s.descriptorLog = nil
			s.descriptorFile = nil
			_ = s.env.DeleteFile(newManifestFile)
		}
		return err
	}
	s.appendVersion(v)
	s.logNumber = edit.logNumber
	s.prevLogNumber = edit.prevLogNumber
	return nil
}

// recover rebuilds the current version from the manifest named by CURRENT.
// It reports false when the database has no CURRENT file yet.
func (s *versionSet) recover() (bool, error) {
	name := currentFileName(s.dbName)
	if !s.env.FileExists(name) {
		return false, nil
	}
	current, err := ldb.ReadFileToString(s.env, name)
	if err != nil {
		return true, err
	}
	if len(current) == 0 || current[len(current)-1] != '\n' {
		return true, util.CorruptionError1("CURRENT file does not end with newline")
	}
	current = current[:len(current)-1]
	number, ft, ok := parseFileName(current)
	if !ok || ft != descriptorFile {
		return true, util.CorruptionError2("CURRENT names an invalid manifest", current)
	}
	dscName := ldb.Join(s.dbName, current)
	file, err := s.env.NewSequentialFile(dscName)
	if err != nil {
		return true, util.CorruptionError2("CURRENT points to a non-existent file", err.Error())
	}
	defer file.Close()

	edits, err := s.readManifest(file, dscName)
	if err != nil {
		return true, err
	}
	edit := fold(edits)
	if !edit.hasNextFileNumber {
		return true, util.CorruptionError1("no meta-nextfile entry in descriptor")
	}
	if !edit.hasLogNumber {
		return true, util.CorruptionError1("no meta-lognumber entry in descriptor")
	}
	if !edit.hasLastSequence {
		return true, util.CorruptionError1("no last-sequence-number entry in descriptor")
	}
	if !edit.hasPrevLogNumber {
		edit.setPrevLogNumber(0)
	}

	v, err := s.apply(newVersion(s), edit)
	if err != nil {
		return true, err
	}
	s.appendVersion(v)
	s.manifestFileNumber = number
	s.markFileNumberUsed(number)
	if edit.nextFileNumber > 0 {
		s.markFileNumberUsed(edit.nextFileNumber - 1)
	}
	s.markFileNumberUsed(edit.logNumber)
	s.markFileNumberUsed(edit.prevLogNumber)
	s.lastSequence.Store(uint64(edit.lastSequence))
	s.logNumber = edit.logNumber
	s.prevLogNumber = edit.prevLogNumber
	ldb.Log(s.options.InfoLog, "recovered %s: log %d, next file %d, last sequence %d",
		current, s.logNumber, s.nextFileNumber.Load(), s.getLastSequence())
	return true, nil
}

func (s *versionSet) readManifest(file ldb.SequentialFile, name string) ([]*versionEdit, error) {
	reporter := &logReporter{logger: s.options.InfoLog, name: name}
	reader := newLogReader(file, reporter, true)
	var edits []*versionEdit
	for {
		record, err := reader.readRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		edit := newVersionEdit()
		if err = edit.decodeFrom(record); err != nil {
			return nil, err
		}
		if edit.hasComparator && edit.comparator != s.icmp.UserComparator.Name() {
			return nil, util.InvalidArgumentError2(edit.comparator+" does not match existing comparator ", s.icmp.UserComparator.Name())
		}
		edits = append(edits, edit)
	}
	if reporter.err != nil {
		return nil, reporter.err
	}
	return edits, nil
}

// finalizeVersion picks the level most in need of compaction. Level 0 is
// scored by file count, deeper levels by total bytes.
func (s *versionSet) finalizeVersion(v *version) {
	bestLevel := -1
	bestScore := float64(-1)
	for level := 0; level < numLevels-1; level++ {
		var score float64
		if level == 0 {
			score = float64(len(v.files[level])) / float64(s.options.L0CompactionTrigger)
		} else {
			score = float64(totalFileSize(v.files[level])) / maxBytesForLevel(s.options, level)
		}
		if score > bestScore {
			bestLevel = level
			bestScore = score
		}
	}
	v.compactionLevel = bestLevel
	v.compactionScore = bestScore
}

func (s *versionSet) writeSnapshot(log *logWriter) error {
	edit := newVersionEdit()
	edit.setComparatorName(s.icmp.UserComparator.Name())
	for level := 0; level < numLevels; level++ {
		if len(s.compactPointer[level]) > 0 {
			edit.setCompactPointer(level, s.compactPointer[level])
		}
	}
	for level := 0; level < numLevels; level++ {
		for _, f := range s.current.files[level] {
			edit.addFile(level, f.number, f.fileSize, f.smallest, f.largest)
		}
	}
	var record []byte
	edit.encodeTo(&record)
	return log.addRecord(record)
}

func (s *versionSet) numLevelFiles(level int) int {
	if level < 0 || level >= numLevels {
		panic("versionSet: level out of range")
	}
	return len(s.current.files[level])
}

func (s *versionSet) numLevelBytes(level int) int64 {
	if level < 0 || level >= numLevels {
		panic("versionSet: level out of range")
	}
	return totalFileSize(s.current.files[level])
}

func (s *versionSet) levelSummary() string {
	counts := make([]string, numLevels)
	for level := range counts {
		counts[level] = util.NumberToString(uint64(len(s.current.files[level])))
	}
	return "files[ " + strings.Join(counts, " ") + " ]"
}

// addLiveFiles adds the number of every file referenced by a version that
// is still in use.
func (s *versionSet) addLiveFiles(live map[uint64]struct{}) {
	for v := range s.versions {
		for level := 0; level < numLevels; level++ {
			for _, f := range v.files[level] {
				live[f.number] = struct{}{}
			}
		}
	}
}

// approximateOffsetOf returns the approximate number of bytes of table
// data preceding ikey in v.
func (s *versionSet) approximateOffsetOf(v *version, ikey []byte) (result uint64) {
	for level := 0; level < numLevels; level++ {
		for _, f := range v.files[level] {
			if s.icmp.Compare(f.largest, ikey) <= 0 {
				result += f.fileSize
			} else if s.icmp.Compare(f.smallest, ikey) > 0 {
				if level > 0 {
					break
				}
			} else {
				handle, err := s.tableCache.findTable(f.number, f.fileSize)
				if err == nil {
					result += s.tableCache.cache.Value(handle).(*table.Table).ApproximateOffsetOf(ikey)
					s.tableCache.cache.Release(handle)
				}
			}
		}
	}
	return
}

// getRange returns the smallest and largest internal keys covered by inputs.
func (s *versionSet) getRange(inputs []*fileMetaData) (smallest, largest []byte) {
	if len(inputs) == 0 {
		panic("versionSet: len(inputs) == 0")
	}
	for i, f := range inputs {
		if i == 0 {
			smallest, largest = f.smallest, f.largest
			continue
		}
		if s.icmp.Compare(f.smallest, smallest) < 0 {
			smallest = f.smallest
		}
		if s.icmp.Compare(f.largest, largest) > 0 {
			largest = f.largest
		}
	}
	return
}

func (s *versionSet) getRange2(inputs1, inputs2 []*fileMetaData) (smallest, largest []byte) {
	all := make([]*fileMetaData, 0, len(inputs1)+len(inputs2))
	all = append(all, inputs1...)
	all = append(all, inputs2...)
	return s.getRange(all)
}

// makeInputIterator merges every input of c in internal key order.
func (s *versionSet) makeInputIterator(c *compaction) ldb.Iterator {
	options := ldb.NewReadOptions()
	options.VerifyChecksums = s.options.ParanoidChecks
	options.FillCache = false

	var list []ldb.Iterator
	for which := 0; which < 2; which++ {
		if len(c.inputs[which]) == 0 {
			continue
		}
		if c.level+which == 0 {
			for _, f := range c.inputs[which] {
				list = append(list, s.tableCache.newIterator(options, f.number, f.fileSize))
			}
		} else {
			list = append(list, table.NewIndexedIterator(newLevelFileNumIterator(s.icmp, c.inputs[which]), s.tableCache, options))
		}
	}
	return table.NewMergingIterator(s.icmp, list)
}

func (s *versionSet) needsCompaction() bool {
	return s.current.compactionScore >= 1
}

// pickCompaction returns the compaction for the level with the highest
// score, or nil if no level is over its budget. Within a level, files are
// picked round-robin starting after the level's compact pointer.
func (s *versionSet) pickCompaction() *compaction {
	if !s.needsCompaction() {
		return nil
	}
	level := s.current.compactionLevel
	if level < 0 || level+1 >= numLevels {
		panic("versionSet: bad compaction level")
	}
	c := newCompaction(s.options, level)
	for _, f := range s.current.files[level] {
		if len(s.compactPointer[level]) == 0 || s.icmp.Compare(f.largest, s.compactPointer[level]) > 0 {
			c.inputs[0] = append(c.inputs[0], f)
			break
		}
	}
	if len(c.inputs[0]) == 0 {
		c.inputs[0] = append(c.inputs[0], s.current.files[level][0])
	}
	c.inputVersion = s.current
	c.inputVersion.ref()
	if level == 0 {
		smallest, largest := s.getRange(c.inputs[0])
		// Replaces the single picked file with every level 0 file it
		// overlaps, which includes the picked one.
		c.inputs[0] = s.current.getOverlappingInputs(0, smallest, largest)
	}
	s.setupOtherInputs(c)
	return c
}

func (s *versionSet) setupOtherInputs(c *compaction) {
	level := c.level
	smallest, largest := s.getRange(c.inputs[0])
	c.inputs[1] = s.current.getOverlappingInputs(level+1, smallest, largest)
	allStart, allLimit := s.getRange2(c.inputs[0], c.inputs[1])

	// Grow the level inputs if that does not pull in more files from the
	// next level.
	if len(c.inputs[1]) != 0 {
		expanded0 := s.current.getOverlappingInputs(level, allStart, allLimit)
		input0Size := totalFileSize(c.inputs[0])
		input1Size := totalFileSize(c.inputs[1])
		expanded0Size := totalFileSize(expanded0)
		if len(expanded0) > len(c.inputs[0]) && input1Size+expanded0Size < expandedCompactionByteSizeLimit(s.options) {
			newStart, newLimit := s.getRange(expanded0)
			expanded1 := s.current.getOverlappingInputs(level+1, newStart, newLimit)
			if len(expanded1) == len(c.inputs[1]) {
				ldb.Log(s.options.InfoLog, "Expanding@%d %d+%d (%d+%d bytes) to %d+%d (%d+%d bytes)",
					level, len(c.inputs[0]), len(c.inputs[1]), input0Size, input1Size,
					len(expanded0), len(expanded1), expanded0Size, input1Size)
				largest = newLimit
				c.inputs[0] = expanded0
				c.inputs[1] = expanded1
				allStart, allLimit = s.getRange2(c.inputs[0], c.inputs[1])
			}
		}
	}

	if level+2 < numLevels {
		c.grandParents = s.current.getOverlappingInputs(level+2, allStart, allLimit)
	}

	// The pointer moves now rather than when the edit is applied, so a
	// failed compaction tries a different range next time.
	s.compactPointer[level] = append([]byte(nil), largest...)
	c.edit.setCompactPointer(level, largest)
}

// compactRange returns a compaction of the files at level overlapping the
// internal key range [begin, end], or nil if there are none.
func (s *versionSet) compactRange(level int, begin, end []byte) *compaction {
	inputs := s.current.getOverlappingInputs(level, begin, end)
	if len(inputs) == 0 {
		return nil
	}
	// Level 0 files overlap each other, so they cannot be split.
	if level > 0 {
		limit := uint64(s.options.MaxFileSize)
		total := uint64(0)
		for i, input := range inputs {
			total += input.fileSize
			if total >= limit {
				inputs = inputs[:i+1]
				break
			}
		}
	}
	c := newCompaction(s.options, level)
	c.inputVersion = s.current
	c.inputVersion.ref()
	c.inputs[0] = inputs
	s.setupOtherInputs(c)
	return c
}

// compaction describes the merge of inputs[0] at level with the
// overlapping inputs[1] at level+1.
type compaction struct {
	level             int
	maxOutputFileSize uint64
	inputVersion      *version
	edit              *versionEdit
	inputs            [2][]*fileMetaData
	grandParents      []*fileMetaData
	grandParentIndex  int
	seenKey           bool
	overlappedBytes   int64
	levelPtrs         [numLevels]int
}

func newCompaction(options *ldb.Options, level int) *compaction {
	return &compaction{
		level:             level,
		maxOutputFileSize: uint64(options.MaxFileSize),
		edit:              newVersionEdit(),
	}
}

func (c *compaction) numInputFiles(which int) int {
	return len(c.inputs[which])
}

func (c *compaction) addInputDeletions(edit *versionEdit) {
	for which := 0; which < 2; which++ {
		for _, f := range c.inputs[which] {
			edit.deleteFile(c.level+which, f.number)
		}
	}
}

// isBaseLevelForKey reports whether no level below the output level can
// hold userKey. Keys must be passed in increasing order.
func (c *compaction) isBaseLevelForKey(userKey []byte) bool {
	ucmp := c.inputVersion.vset.icmp.UserComparator
	for lvl := c.level + 2; lvl < numLevels; lvl++ {
		files := c.inputVersion.files[lvl]
		for c.levelPtrs[lvl] < len(files) {
			f := files[c.levelPtrs[lvl]]
			if ucmp.Compare(userKey, ldb.ExtractUserKey(f.largest)) <= 0 {
				if ucmp.Compare(userKey, ldb.ExtractUserKey(f.smallest)) >= 0 {
					return false
				}
				break
			}
			c.levelPtrs[lvl]++
		}
	}
	return true
}

// shouldStopBefore reports whether the current output should be closed
// before internalKey, so that one output never overlaps too much of the
// grandparent level.
func (c *compaction) shouldStopBefore(internalKey []byte) bool {
	vset := c.inputVersion.vset
	for c.grandParentIndex < len(c.grandParents) &&
		vset.icmp.Compare(internalKey, c.grandParents[c.grandParentIndex].largest) > 0 {
		if c.seenKey {
			c.overlappedBytes += int64(c.grandParents[c.grandParentIndex].fileSize)
		}
		c.grandParentIndex++
	}
	c.seenKey = true
	if c.overlappedBytes > maxGrandParentOverlapBytes(vset.options) {
		c.overlappedBytes = 0
		return true
	}
	return false
}

func (c *compaction) releaseInputs() {
	if c.inputVersion != nil {
		c.inputVersion.unref()
		c.inputVersion = nil
	}
}
