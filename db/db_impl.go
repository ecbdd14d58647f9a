package db

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"ldb"
	"ldb/table"
	"ldb/util"
)

const numNonTableCacheFiles = 10

type compactionStats struct {
	duration     time.Duration
	bytesRead    int64
	bytesWritten int64
}

func (s *compactionStats) add(other *compactionStats) {
	s.duration += other.duration
	s.bytesRead += other.bytesRead
	s.bytesWritten += other.bytesWritten
}

type compactionStateOutput struct {
	number   uint64
	fileSize uint64
	smallest []byte
	largest  []byte
}

type compactionState struct {
	compaction *compaction
	outputs    []compactionStateOutput
	outfile    ldb.WritableFile
	builder    *table.Builder
	totalBytes uint64
}

func (s *compactionState) currentOutput() *compactionStateOutput {
	return &s.outputs[len(s.outputs)-1]
}

func clipToRangeInt(ptr *int, minValue, maxValue int) {
	if *ptr > maxValue {
		*ptr = maxValue
	}
	if *ptr < minValue {
		*ptr = minValue
	}
}

func sanitizeOptions(src *ldb.Options) *ldb.Options {
	result := *src
	if result.Comparator == nil {
		result.Comparator = ldb.BytewiseComparator
	}
	if result.FS == nil {
		result.FS = ldb.DefaultEnv().FS()
	}
	clipToRangeInt(&result.MaxOpenFiles, 64+numNonTableCacheFiles, 50000)
	clipToRangeInt(&result.MaxMemCacheSize, 1, 1<<30)
	clipToRangeInt(&result.MaxFileSize, 1<<10, 1<<30)
	clipToRangeInt(&result.BlockSize, 1<<10, 4<<20)
	clipToRangeInt(&result.L0CompactionTrigger, 1, 1<<10)
	clipToRangeInt(&result.LevelSizeBaseFactor, 2, 100)
	if result.LevelSizeBase < 1<<10 {
		result.LevelSizeBase = 1 << 10
	}
	if result.BlockCache == nil && result.BlockCacheCapacity > 0 {
		result.BlockCache = ldb.NewLRUCache(result.BlockCacheCapacity)
	}
	return &result
}

func tableCacheSize(sanitizedOptions *ldb.Options) int {
	return sanitizedOptions.MaxOpenFiles - numNonTableCacheFiles
}

var errClosed = util.InvalidArgumentError1("database is closed")

// db is the single-process store behind Open. One mutex serialises every
// public method; memtable flushes and compactions run on the writing
// goroutine before the write that triggered them.
type db struct {
	env           *ldb.Env
	icmp          *ldb.InternalKeyComparator
	options       *ldb.Options
	ownsCache     bool
	infoLogFile   afero.File
	dbName        string
	tableCache    *tableCache
	mutex         sync.Mutex
	mem           *memTable
	logFile       ldb.WritableFile
	logFileNumber uint64
	log           *logWriter
	versions      *versionSet
	bgError       error
	closed        bool
	stats         [numLevels]compactionStats
}

func newDB(dbName string, rawOptions *ldb.Options) *db {
	options := sanitizeOptions(rawOptions)
	d := &db{
		env:       ldb.NewEnv(options.FS),
		icmp:      ldb.NewInternalKeyComparator(options.Comparator),
		options:   options,
		ownsCache: options.BlockCache != rawOptions.BlockCache,
		dbName:    dbName,
	}
	if options.InfoLog == nil {
		d.openInfoLog()
	}
	d.tableCache = newTableCache(dbName, options, d.env, tableCacheSize(options))
	d.versions = newVersionSet(dbName, options, d.env, d.tableCache, d.icmp)
	return d
}

// openInfoLog points InfoLog at dbname/LOG, keeping the previous LOG as
// LOG.old. Without a writable directory the database runs silently.
func (d *db) openInfoLog() {
	_ = d.env.CreateDir(d.dbName)
	_ = d.env.RenameFile(infoLogFileName(d.dbName), oldInfoLogFileName(d.dbName))
	f, err := d.options.FS.Create(infoLogFileName(d.dbName))
	if err != nil {
		return
	}
	d.infoLogFile = f
	d.options.InfoLog = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
}

// Open opens the database in directory name, creating it if
// options.CreateIfMissing is set.
func Open(name string, options *ldb.Options) (ldb.DB, error) {
	if options == nil {
		options = ldb.NewOptions()
	}
	if options.Comparator != nil && options.Comparator.Name() != ldb.BytewiseComparatorName {
		return nil, util.InvalidArgumentError2("unsupported comparator", options.Comparator.Name())
	}
	d := newDB(name, options)
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := d.recover(); err != nil {
		d.closeLocked()
		return nil, err
	}
	d.deleteObsoleteFiles()
	if err := d.maybeCompact(); err != nil {
		d.closeLocked()
		return nil, err
	}
	return d, nil
}

// Destroy removes every file of the database in directory name.
func Destroy(name string, options *ldb.Options) error {
	if options == nil {
		options = ldb.NewOptions()
	}
	env := ldb.NewEnv(sanitizeOptions(options).FS)
	fileNames, err := env.GetChildren(name)
	if err != nil {
		// Nothing to destroy.
		return nil
	}
	var result error
	for _, fileName := range fileNames {
		if _, _, ok := parseFileName(fileName); ok {
			if err = env.DeleteFile(ldb.Join(name, fileName)); err != nil && result == nil {
				result = err
			}
		}
	}
	if err = env.DeleteFile(name); err != nil && result == nil {
		result = err
	}
	return result
}

func (d *db) userComparator() ldb.Comparator {
	return d.icmp.UserComparator
}

// recover loads the manifest, replays every log that is not yet covered by
// a table and opens the newest log for appending.
func (d *db) recover() error {
	if d.options.CreateIfMissing {
		if err := d.env.CreateDir(d.dbName); err != nil {
			return err
		}
	}
	found, err := d.versions.recover()
	if err != nil {
		return err
	}

	fileNames, err := d.env.GetChildren(d.dbName)
	if err != nil && d.env.FileExists(d.dbName) {
		return err
	}
	var logs []uint64
	for _, fileName := range fileNames {
		number, ft, ok := parseFileName(fileName)
		if !ok {
			continue
		}
		d.versions.markFileNumberUsed(number)
		if ft == logFile && (number >= d.versions.logNumber || number == d.versions.prevLogNumber) {
			logs = append(logs, number)
		}
	}

	exists := found || len(logs) > 0
	if !exists && !d.options.CreateIfMissing {
		return util.InvalidArgumentError2(d.dbName, "does not exist (create_if_missing is false)")
	}
	if exists && d.options.ErrorIfExists {
		return util.InvalidArgumentError2(d.dbName, "exists (error_if_exists is true)")
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i] < logs[j] })
	d.mem = newMemTable()
	maxSequence := d.versions.getLastSequence()
	for _, number := range logs {
		seq, err := d.recoverLogFile(number)
		if err != nil {
			return errors.Wrapf(err, "recovering log %d", number)
		}
		if seq > maxSequence {
			maxSequence = seq
		}
	}
	d.versions.setLastSequence(maxSequence)

	if len(logs) > 0 {
		last := logs[len(logs)-1]
		fname := logFileName(d.dbName, last)
		size, err := d.env.GetFileSize(fname)
		if err != nil {
			return err
		}
		if d.logFile, err = d.env.NewAppendableFile(fname); err != nil {
			return err
		}
		ldb.Log(d.options.InfoLog, "Reusing old log %s", fname)
		d.log = newLogWriterWithLength(d.logFile, uint64(size))
		d.logFileNumber = last
		return nil
	}
	return d.newLogFile()
}

func (d *db) recoverLogFile(number uint64) (ldb.SequenceNumber, error) {
	fname := logFileName(d.dbName, number)
	file, err := d.env.NewSequentialFile(fname)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	ldb.Log(d.options.InfoLog, "Recovering log #%d", number)
	reporter := &logReporter{logger: d.options.InfoLog, name: fname}
	maxSequence, err := d.mem.load(newLogReader(file, reporter, true))
	if err == nil && d.options.ParanoidChecks {
		err = reporter.err
	}
	return maxSequence, err
}

func (d *db) newLogFile() error {
	number := d.versions.newFileNumber()
	file, err := d.env.NewWritableFile(logFileName(d.dbName, number))
	if err != nil {
		return err
	}
	if d.logFile != nil {
		if err = d.logFile.Close(); err != nil {
			ldb.Log(d.options.InfoLog, "closing log #%d: %v", d.logFileNumber, err)
		}
	}
	d.logFile = file
	d.logFileNumber = number
	d.log = newLogWriter(file)
	ldb.Log(d.options.InfoLog, "New log #%d", number)
	return nil
}

func (d *db) recordBackgroundError(err error) {
	if d.bgError == nil {
		d.bgError = err
	}
}

// deleteObsoleteFiles removes logs, manifests and tables that no version in
// use refers to.
func (d *db) deleteObsoleteFiles() {
	if d.bgError != nil {
		return
	}
	live := make(map[uint64]struct{})
	d.versions.addLiveFiles(live)

	fileNames, _ := d.env.GetChildren(d.dbName)
	for _, fileName := range fileNames {
		number, ft, ok := parseFileName(fileName)
		if !ok {
			continue
		}
		keep := true
		switch ft {
		case logFile:
			keep = number >= d.versions.logNumber || number == d.versions.prevLogNumber
		case descriptorFile:
			keep = number >= d.versions.manifestFileNumber
		case tableFile, tempFile:
			_, keep = live[number]
		case currentFile:
			keep = true
		}
		if !keep {
			if ft == tableFile {
				d.tableCache.evict(number)
			}
			ldb.Log(d.options.InfoLog, "Delete type=%s #%d", ft, number)
			_ = d.env.DeleteFile(ldb.Join(d.dbName, fileName))
		}
	}
}

// makeRoomForWrite switches to a new log and flushes the memtable into a
// table once the memtable has outgrown MaxMemCacheSize, or whenever force
// is set and the memtable is not empty.
func (d *db) makeRoomForWrite(force bool) error {
	if d.bgError != nil {
		return d.bgError
	}
	if d.mem.len() == 0 || (!force && d.mem.approximateMemoryUsage() <= d.options.MaxMemCacheSize) {
		return nil
	}
	if err := d.newLogFile(); err != nil {
		return err
	}
	imm := d.mem
	d.mem = newMemTable()
	if err := d.compactMemTable(imm); err != nil {
		return err
	}
	return d.maybeCompact()
}

func (d *db) writeLevel0Table(mem *memTable, edit *versionEdit, base *version) error {
	start := time.Now()
	meta := &fileMetaData{number: d.versions.newFileNumber()}
	iter := mem.newIterator()
	ldb.Log(d.options.InfoLog, "Level-0 table #%d: started", meta.number)
	err := buildTable(d.dbName, d.env, d.options, d.tableCache, iter, meta)
	iter.Close()
	ldb.Log(d.options.InfoLog, "Level-0 table #%d: %d bytes %v", meta.number, meta.fileSize, err)

	level := 0
	if err == nil && meta.fileSize > 0 {
		if base != nil {
			level = base.pickLevelForMemTableOutput(ldb.ExtractUserKey(meta.smallest), ldb.ExtractUserKey(meta.largest))
		}
		edit.addFile(level, meta.number, meta.fileSize, meta.smallest, meta.largest)
	}
	d.stats[level].add(&compactionStats{
		duration:     time.Since(start),
		bytesWritten: int64(meta.fileSize),
	})
	return err
}

// compactMemTable writes imm to a table and records it together with the
// current log number, which makes every older log obsolete.
func (d *db) compactMemTable(imm *memTable) error {
	edit := newVersionEdit()
	base := d.versions.current
	base.ref()
	err := d.writeLevel0Table(imm, edit, base)
	base.unref()
	if err == nil {
		edit.setPrevLogNumber(0)
		edit.setLogNumber(d.logFileNumber)
		err = d.versions.logAndApply(edit)
	}
	if err != nil {
		d.recordBackgroundError(err)
		return err
	}
	d.deleteObsoleteFiles()
	return nil
}

// maybeCompact runs compactions until every level is within its budget.
func (d *db) maybeCompact() error {
	for d.bgError == nil && d.versions.needsCompaction() {
		c := d.versions.pickCompaction()
		if c == nil {
			break
		}
		if err := d.runCompaction(c); err != nil {
			return err
		}
	}
	return d.bgError
}

// runCompaction releases the input version before collecting obsolete
// files so the compacted inputs are no longer counted as live.
func (d *db) runCompaction(c *compaction) error {
	err := d.doCompactionWork(&compactionState{compaction: c})
	c.releaseInputs()
	if err != nil {
		ldb.Log(d.options.InfoLog, "Compaction error: %v", err)
		d.recordBackgroundError(err)
		return err
	}
	d.deleteObsoleteFiles()
	return nil
}

// CompactRange flushes the memtable and then compacts every level holding
// keys in [begin, end] into the level below it.
func (d *db) CompactRange(begin, end []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return errClosed
	}
	maxLevelWithFiles := 1
	base := d.versions.current
	for level := 1; level < numLevels; level++ {
		if base.overlapInLevel(level, begin, end) {
			maxLevelWithFiles = level
		}
	}
	if err := d.makeRoomForWrite(true); err != nil {
		return err
	}
	for level := 0; level < maxLevelWithFiles; level++ {
		if err := d.compactLevelRange(level, begin, end); err != nil {
			return err
		}
	}
	return d.maybeCompact()
}

func (d *db) compactLevelRange(level int, begin, end []byte) error {
	var beginKey, endKey []byte
	if begin != nil {
		beginKey = ldb.MakeLookupKey(begin)
	}
	if end != nil {
		endKey = ldb.MakeInternalKey(end, 0, ldb.TypeDeletion)
	}
	for d.bgError == nil {
		c := d.versions.compactRange(level, beginKey, endKey)
		if c == nil {
			break
		}
		ldb.Log(d.options.InfoLog, "Manual compaction at level-%d", level)
		if err := d.runCompaction(c); err != nil {
			return err
		}
	}
	return d.bgError
}

func (d *db) openCompactionOutputFile(compact *compactionState) error {
	number := d.versions.newFileNumber()
	compact.outputs = append(compact.outputs, compactionStateOutput{number: number})
	file, err := d.env.NewWritableFile(tableFileName(d.dbName, number))
	if err != nil {
		return err
	}
	compact.outfile = file
	compact.builder = table.NewBuilder(d.options, file)
	return nil
}

func (d *db) finishCompactionOutputFile(compact *compactionState, input ldb.Iterator) error {
	out := compact.currentOutput()
	outputNumber := out.number
	err := input.GetStatus()
	currentEntries := compact.builder.NumEntries()
	if err == nil {
		err = compact.builder.Finish()
	} else {
		compact.builder.Abandon()
	}
	currentBytes := compact.builder.FileSize()
	out.fileSize = currentBytes
	compact.totalBytes += currentBytes
	compact.builder = nil

	if err == nil {
		err = compact.outfile.Sync()
	}
	if closeErr := compact.outfile.Close(); err == nil {
		err = closeErr
	}
	compact.outfile = nil

	if err == nil && currentEntries > 0 {
		iter := d.tableCache.newIterator(ldb.NewReadOptions(), outputNumber, currentBytes)
		err = iter.GetStatus()
		iter.Close()
		if err == nil {
			ldb.Log(d.options.InfoLog, "Generated table #%d@%d: %d keys, %d bytes",
				outputNumber, compact.compaction.level, currentEntries, currentBytes)
		}
	}
	return err
}

func (d *db) installCompactionResults(compact *compactionState) error {
	c := compact.compaction
	ldb.Log(d.options.InfoLog, "Compacted %d@%d + %d@%d files => %d bytes",
		c.numInputFiles(0), c.level, c.numInputFiles(1), c.level+1, compact.totalBytes)
	c.addInputDeletions(c.edit)
	for _, out := range compact.outputs {
		c.edit.addFile(c.level+1, out.number, out.fileSize, out.smallest, out.largest)
	}
	return d.versions.logAndApply(c.edit)
}

// cleanupCompaction abandons an unfinished output and removes every output
// file of a failed compaction.
func (d *db) cleanupCompaction(compact *compactionState) {
	if compact.builder != nil {
		compact.builder.Abandon()
		compact.builder = nil
	}
	if compact.outfile != nil {
		_ = compact.outfile.Close()
		compact.outfile = nil
	}
	for _, out := range compact.outputs {
		d.tableCache.evict(out.number)
		_ = d.env.DeleteFile(tableFileName(d.dbName, out.number))
	}
}

// doCompactionWork merges the inputs of compact. Only the newest entry of
// each user key survives, and a deletion is dropped too when no deeper
// level can still hold the key. Outputs are cut at MaxFileSize or when they
// would overlap too much of the grandparent level.
func (d *db) doCompactionWork(compact *compactionState) (err error) {
	start := time.Now()
	c := compact.compaction
	ldb.Log(d.options.InfoLog, "Compacting %d@%d + %d@%d files",
		c.numInputFiles(0), c.level, c.numInputFiles(1), c.level+1)

	input := d.versions.makeInputIterator(c)
	defer input.Close()
	input.SeekToFirst()

	ucmp := d.userComparator()
	var (
		ikey              ldb.ParsedInternalKey
		currentUserKey    []byte
		hasCurrentUserKey bool
	)
	for ; input.IsValid() && err == nil; input.Next() {
		key := input.GetKey()
		if c.shouldStopBefore(key) && compact.builder != nil {
			if err = d.finishCompactionOutputFile(compact, input); err != nil {
				break
			}
		}

		drop := false
		if !ldb.ParseInternalKey(key, &ikey) {
			// Keep corrupt keys so the damage stays visible.
			currentUserKey = currentUserKey[:0]
			hasCurrentUserKey = false
		} else if !hasCurrentUserKey || ucmp.Compare(ikey.UserKey, currentUserKey) != 0 {
			// First occurrence of this user key is its newest entry.
			currentUserKey = append(currentUserKey[:0], ikey.UserKey...)
			hasCurrentUserKey = true
			drop = ikey.ValueType == ldb.TypeDeletion && c.isBaseLevelForKey(ikey.UserKey)
		} else {
			drop = true
		}
		if drop {
			continue
		}

		if compact.builder == nil {
			if err = d.openCompactionOutputFile(compact); err != nil {
				break
			}
		}
		out := compact.currentOutput()
		if compact.builder.NumEntries() == 0 {
			out.smallest = append(out.smallest[:0], key...)
		}
		out.largest = append(out.largest[:0], key...)
		if err = compact.builder.Add(key, input.GetValue()); err != nil {
			break
		}
		if compact.builder.FileSize() >= c.maxOutputFileSize {
			err = d.finishCompactionOutputFile(compact, input)
		}
	}
	if err == nil && compact.builder != nil {
		err = d.finishCompactionOutputFile(compact, input)
	}
	if err == nil {
		err = input.GetStatus()
	}

	stats := compactionStats{duration: time.Since(start)}
	for which := 0; which < 2; which++ {
		stats.bytesRead += totalFileSize(c.inputs[which])
	}
	for _, out := range compact.outputs {
		stats.bytesWritten += int64(out.fileSize)
	}
	d.stats[c.level+1].add(&stats)

	if err == nil {
		err = d.installCompactionResults(compact)
	}
	if err != nil {
		d.cleanupCompaction(compact)
		return err
	}
	ldb.Log(d.options.InfoLog, "compacted to: %s", d.versions.levelSummary())
	return nil
}

func releaseVersion(arg1, arg2 interface{}) {
	d := arg1.(*db)
	d.mutex.Lock()
	arg2.(*version).unref()
	d.mutex.Unlock()
}

// newInternalIterator merges the memtable with every table of the current
// version. The version stays alive until the iterator is closed.
func (d *db) newInternalIterator(options *ldb.ReadOptions) (ldb.Iterator, ldb.SequenceNumber) {
	iters := []ldb.Iterator{d.mem.newIterator()}
	current := d.versions.current
	iters = current.addIterators(options, iters)
	current.ref()
	internalIter := table.NewMergingIterator(d.icmp, iters)
	internalIter.RegisterCleanUp(releaseVersion, d, current)
	return internalIter, d.versions.getLastSequence()
}

func (d *db) Get(options *ldb.ReadOptions, key []byte) ([]byte, error) {
	result, err := d.Lookup(options, key)
	if err != nil {
		return nil, err
	}
	if result.State != ldb.StateExist {
		return nil, util.NotFoundError1(util.EscapeString(key))
	}
	return result.Data, nil
}

// Lookup checks the memtable, then the tables from level 0 down. The first
// layer that knows the key decides.
func (d *db) Lookup(options *ldb.ReadOptions, key []byte) (ldb.ResultStatus, error) {
	if options == nil {
		options = ldb.NewReadOptions()
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return ldb.NotFoundResult, errClosed
	}
	if result := d.mem.get(key); result.State != ldb.StateNotFound {
		return result, nil
	}
	return d.versions.current.get(options, key)
}

func (d *db) NewIterator(options *ldb.ReadOptions) ldb.Iterator {
	if options == nil {
		options = ldb.NewReadOptions()
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return table.NewErrorIterator(errClosed)
	}
	iter, latestSequence := d.newInternalIterator(options)
	return newDBIterator(d.userComparator(), iter, latestSequence)
}

func (d *db) Write(options *ldb.WriteOptions, updates *ldb.WriteBatch) error {
	if options == nil {
		options = ldb.NewWriteOptions()
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return errClosed
	}
	if err := d.makeRoomForWrite(false); err != nil {
		return err
	}
	sequence := d.versions.getLastSequence() + 1
	updates.SetSequence(sequence)
	lastSequence := sequence + ldb.SequenceNumber(updates.Count()) - 1

	err := d.log.addRecord(updates.Contents())
	if err == nil && options.Sync {
		err = d.logFile.Sync()
	}
	if err != nil {
		// The log may now hold a partial record; refuse further writes.
		d.recordBackgroundError(err)
		return err
	}
	if err = insertInto(updates, d.mem); err != nil {
		return err
	}
	d.versions.setLastSequence(lastSequence)
	return nil
}

func (d *db) Put(options *ldb.WriteOptions, key, value []byte) error {
	batch := ldb.NewWriteBatch()
	batch.Put(key, value)
	return d.Write(options, batch)
}

func (d *db) Delete(options *ldb.WriteOptions, key []byte) error {
	batch := ldb.NewWriteBatch()
	batch.Delete(key)
	return d.Write(options, batch)
}

// GetProperty supports "ldb.num-files-at-level<N>", "ldb.stats",
// "ldb.sstables" and "ldb.approximate-memory-usage".
func (d *db) GetProperty(property string) (string, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	const prefix = "ldb."
	if !strings.HasPrefix(property, prefix) {
		return "", false
	}
	in := strings.TrimPrefix(property, prefix)
	switch {
	case strings.HasPrefix(in, "num-files-at-level"):
		in = strings.TrimPrefix(in, "num-files-at-level")
		var level uint64
		if !util.ConsumeDecimalNumber(&in, &level) || len(in) != 0 || level >= numLevels {
			return "", false
		}
		return util.NumberToString(uint64(d.versions.numLevelFiles(int(level)))), true
	case in == "stats":
		var b strings.Builder
		b.WriteString("                               Compactions\n")
		b.WriteString("Level  Files Size(MB) Time(sec) Read(MB) Write(MB)\n")
		b.WriteString("--------------------------------------------------\n")
		for level := 0; level < numLevels; level++ {
			files := d.versions.numLevelFiles(level)
			if d.stats[level].duration > 0 || files > 0 {
				fmt.Fprintf(&b, "%3d %8d %8.0f %9.0f %8.0f %9.0f\n", level,
					files, float64(d.versions.numLevelBytes(level))/1048576.0,
					d.stats[level].duration.Seconds(),
					float64(d.stats[level].bytesRead)/1048576.0,
					float64(d.stats[level].bytesWritten)/1048576.0)
			}
		}
		return b.String(), true
	case in == "sstables":
		return d.versions.current.debugString(), true
	case in == "approximate-memory-usage":
		totalUsage := d.mem.approximateMemoryUsage()
		if d.options.BlockCache != nil {
			totalUsage += d.options.BlockCache.TotalCharge()
		}
		return util.NumberToString(uint64(totalUsage)), true
	}
	return "", false
}

func (d *db) GetApproximateSizes(ranges []ldb.Range) []uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	sizes := make([]uint64, len(ranges))
	v := d.versions.current
	for i, r := range ranges {
		start := d.versions.approximateOffsetOf(v, ldb.MakeLookupKey(r.Start))
		limit := d.versions.approximateOffsetOf(v, ldb.MakeLookupKey(r.Limit))
		if limit >= start {
			sizes[i] = limit - start
		}
	}
	return sizes
}

// Close releases the log, the manifest and every cached table. Iterators
// still open keep their tables until they are closed.
func (d *db) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return nil
	}
	return d.closeLocked()
}

func (d *db) closeLocked() error {
	d.closed = true
	var err error
	if d.logFile != nil {
		err = d.logFile.Close()
		d.logFile = nil
		d.log = nil
	}
	if verr := d.versions.close(); err == nil {
		err = verr
	}
	d.tableCache.close()
	if d.infoLogFile != nil {
		_ = d.infoLogFile.Close()
		d.infoLogFile = nil
	}
	if d.ownsCache {
		d.options.BlockCache.Prune()
	}
	return err
}
