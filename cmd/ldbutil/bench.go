package main

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/spf13/cobra"

	"ldb"
	"ldb/db"
	"ldb/util"
)

const benchKeySize = 16

type benchFlags struct {
	benchmarks       []string
	num              int
	reads            int
	valueSize        int
	compressionRatio float64
	memSize          int
	maxFileSize      int
	blockSize        int
	cacheSize        int
	bloomBits        int
	useExistingDB    bool
}

type randomGenerator struct {
	data []byte
	pos  int
}

func newRandomGenerator(compressionRatio float64) *randomGenerator {
	g := &randomGenerator{data: make([]byte, 0, 1048576)}
	rnd := util.NewRandom(301)
	for len(g.data) < 1048576 {
		g.data = append(g.data, util.CompressibleString(rnd, compressionRatio, 100)...)
	}
	return g
}

func (g *randomGenerator) generate(l int) []byte {
	if g.pos+l > len(g.data) {
		g.pos = 0
		if l >= len(g.data) {
			panic("randomGenerator: l >= len(data)")
		}
	}
	g.pos += l
	return g.data[g.pos-l : g.pos]
}

type stats struct {
	start      time.Time
	elapsed    time.Duration
	done       int
	nextReport int
	bytes      int64
	message    string
	progress   io.Writer
}

func newStats(progress io.Writer) *stats {
	return &stats{start: time.Now(), nextReport: 100, progress: progress}
}

func (s *stats) stop() {
	s.elapsed = time.Since(s.start)
}

func (s *stats) addMessage(msg string) {
	if s.message != "" {
		s.message += " "
	}
	s.message += msg
}

func (s *stats) finishSingleOp() {
	s.done++
	if s.done >= s.nextReport {
		switch {
		case s.nextReport < 1000:
			s.nextReport += 100
		case s.nextReport < 5000:
			s.nextReport += 500
		case s.nextReport < 10000:
			s.nextReport += 1000
		case s.nextReport < 50000:
			s.nextReport += 5000
		case s.nextReport < 100000:
			s.nextReport += 10000
		case s.nextReport < 500000:
			s.nextReport += 50000
		default:
			s.nextReport += 100000
		}
		fmt.Fprintf(s.progress, "... finished %d ops%30s\r", s.done, "")
	}
}

func (s *stats) report(w io.Writer, name string) {
	if s.done < 1 {
		s.done = 1
	}
	extra := ""
	if s.bytes > 0 && s.elapsed > 0 {
		extra = fmt.Sprintf("%6.1f MB/s", float64(s.bytes)/1048576.0/s.elapsed.Seconds())
	}
	if s.message != "" {
		if extra != "" {
			extra += " "
		}
		extra += s.message
	}
	if extra != "" {
		extra = " " + extra
	}
	micros := float64(s.elapsed.Microseconds()) / float64(s.done)
	fmt.Fprintf(w, "%-12s : %11.3f micros/op;%s\n", name, micros, extra)
}

type benchmark struct {
	c            *config
	flags        *benchFlags
	out          io.Writer
	progress     io.Writer
	cache        ldb.Cache
	filterPolicy ldb.FilterPolicy
	db           ldb.DB
	rnd          *util.Random
	num          int
	reads        int
	valueSize    int
	writeOptions *ldb.WriteOptions
}

func newBenchmark(c *config, flags *benchFlags, out, progress io.Writer) *benchmark {
	b := &benchmark{
		c:        c,
		flags:    flags,
		out:      out,
		progress: progress,
		rnd:      util.NewRandom(1000),
	}
	if flags.cacheSize >= 0 {
		b.cache = ldb.NewLRUCache(flags.cacheSize)
	}
	if flags.bloomBits >= 0 {
		b.filterPolicy = ldb.NewBloomFilterPolicy(flags.bloomBits)
	}
	return b
}

func (b *benchmark) options() *ldb.Options {
	options := b.c.options()
	options.CreateIfMissing = !b.flags.useExistingDB
	if b.cache != nil {
		options.BlockCache = b.cache
	}
	if b.filterPolicy != nil {
		options.FilterPolicy = b.filterPolicy
	}
	if b.flags.memSize > 0 {
		options.MaxMemCacheSize = b.flags.memSize
	}
	if b.flags.maxFileSize > 0 {
		options.MaxFileSize = b.flags.maxFileSize
	}
	if b.flags.blockSize > 0 {
		options.BlockSize = b.flags.blockSize
	}
	return options
}

func (b *benchmark) open() error {
	var err error
	b.db, err = db.Open(b.c.dir, b.options())
	return err
}

func (b *benchmark) closeDB() {
	if b.db != nil {
		_ = b.db.Close()
		b.db = nil
	}
}

func (b *benchmark) printHeader() {
	ratio := b.flags.compressionRatio
	fmt.Fprintf(b.out, "CPU:        %d * %s/%s\n", runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(b.out, "Date:       %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(b.out, "Keys:       %d bytes each\n", benchKeySize)
	fmt.Fprintf(b.out, "Values:     %d bytes each (%d bytes after compression)\n",
		b.flags.valueSize, int64(float64(b.flags.valueSize)*ratio+0.5))
	fmt.Fprintf(b.out, "Entries:    %d\n", b.flags.num)
	fmt.Fprintf(b.out, "RawSize:    %.1f MB (estimated)\n",
		float64(benchKeySize+b.flags.valueSize)*float64(b.flags.num)/1048576.0)
	fmt.Fprintf(b.out, "FileSize:   %.1f MB (estimated)\n",
		(benchKeySize+float64(b.flags.valueSize)*ratio)*float64(b.flags.num)/1048576.0)
	fmt.Fprintf(b.out, "------------------------------------------------\n")
}

func (b *benchmark) run() error {
	if !b.flags.useExistingDB {
		if err := db.Destroy(b.c.dir, b.options()); err != nil {
			return err
		}
	}
	b.printHeader()
	if err := b.open(); err != nil {
		return err
	}
	defer b.closeDB()

	for _, name := range b.flags.benchmarks {
		b.num = b.flags.num
		b.reads = b.flags.reads
		if b.reads < 0 {
			b.reads = b.flags.num
		}
		b.valueSize = b.flags.valueSize
		b.writeOptions = ldb.NewWriteOptions()

		var method func(*stats) error
		freshDB := false
		switch name {
		case "fillseq":
			freshDB = true
			method = b.writeSeq
		case "fillrandom":
			freshDB = true
			method = b.writeRandom
		case "overwrite":
			method = b.writeRandom
		case "fillsync":
			freshDB = true
			b.num /= 1000
			b.writeOptions.Sync = true
			method = b.writeRandom
		case "fill100K":
			freshDB = true
			b.num /= 1000
			b.valueSize = 100 * 1000
			method = b.writeRandom
		case "readseq":
			method = b.readSequential
		case "readreverse":
			method = b.readReverse
		case "readrandom":
			method = b.readRandom
		case "seekrandom":
			method = b.seekRandom
		case "deleterandom":
			method = b.deleteRandom
		case "compact":
			method = b.compact
		case "crc32c":
			method = crc32c
		case "snappycomp":
			method = b.snappyCompress
		case "snappyuncomp":
			method = b.snappyUncompress
		case "stats", "sstables":
			if v, ok := b.db.GetProperty("ldb." + name); ok {
				fmt.Fprintf(b.out, "\n%s\n", v)
			}
		default:
			if name != "" {
				fmt.Fprintf(b.progress, "unknown benchmark '%s'\n", name)
			}
		}

		if freshDB {
			if b.flags.useExistingDB {
				fmt.Fprintf(b.out, "%-12s : skipped (--use-existing-db is set)\n", name)
				method = nil
			} else {
				b.closeDB()
				if err := db.Destroy(b.c.dir, b.options()); err != nil {
					return err
				}
				if err := b.open(); err != nil {
					return err
				}
			}
		}
		if method != nil {
			s := newStats(b.progress)
			if err := method(s); err != nil {
				return errors.Wrapf(err, "%s", name)
			}
			s.stop()
			s.report(b.out, name)
		}
	}
	return nil
}

func benchKey(buf *bytes.Buffer, k int) []byte {
	buf.Reset()
	fmt.Fprintf(buf, "%016d", k)
	return buf.Bytes()
}

func (b *benchmark) writeSeq(s *stats) error {
	return b.doWrite(s, true)
}

func (b *benchmark) writeRandom(s *stats) error {
	return b.doWrite(s, false)
}

func (b *benchmark) doWrite(s *stats, seq bool) error {
	if b.num != b.flags.num {
		s.addMessage(fmt.Sprintf("(%d ops)", b.num))
	}
	gen := newRandomGenerator(b.flags.compressionRatio)
	var buf bytes.Buffer
	for i := 0; i < b.num; i++ {
		k := i
		if !seq {
			k = int(b.rnd.Next()) % b.flags.num
		}
		key := benchKey(&buf, k)
		if err := b.db.Put(b.writeOptions, key, gen.generate(b.valueSize)); err != nil {
			return err
		}
		s.bytes += int64(b.valueSize + len(key))
		s.finishSingleOp()
	}
	return nil
}

func (b *benchmark) readSequential(s *stats) error {
	iter := b.db.NewIterator(nil)
	defer iter.Close()
	for iter.SeekToFirst(); s.done < b.reads && iter.IsValid(); iter.Next() {
		s.bytes += int64(len(iter.GetKey()) + len(iter.GetValue()))
		s.finishSingleOp()
	}
	return iter.GetStatus()
}

func (b *benchmark) readReverse(s *stats) error {
	iter := b.db.NewIterator(nil)
	defer iter.Close()
	for iter.SeekToLast(); s.done < b.reads && iter.IsValid(); iter.Prev() {
		s.bytes += int64(len(iter.GetKey()) + len(iter.GetValue()))
		s.finishSingleOp()
	}
	return iter.GetStatus()
}

func (b *benchmark) readRandom(s *stats) error {
	found := 0
	var buf bytes.Buffer
	for i := 0; i < b.reads; i++ {
		k := int(b.rnd.Next()) % b.flags.num
		_, err := b.db.Get(nil, benchKey(&buf, k))
		switch {
		case err == nil:
			found++
		case !ldb.IsNotFound(err):
			return err
		}
		s.finishSingleOp()
	}
	s.addMessage(fmt.Sprintf("(%d of %d found)", found, b.num))
	return nil
}

func (b *benchmark) seekRandom(s *stats) error {
	found := 0
	var buf bytes.Buffer
	for i := 0; i < b.reads; i++ {
		iter := b.db.NewIterator(nil)
		key := benchKey(&buf, int(b.rnd.Next())%b.flags.num)
		iter.Seek(key)
		if iter.IsValid() && bytes.Equal(iter.GetKey(), key) {
			found++
		}
		iter.Close()
		s.finishSingleOp()
	}
	s.addMessage(fmt.Sprintf("(%d of %d found)", found, b.num))
	return nil
}

func (b *benchmark) deleteRandom(s *stats) error {
	var buf bytes.Buffer
	for i := 0; i < b.num; i++ {
		key := benchKey(&buf, int(b.rnd.Next())%b.flags.num)
		if err := b.db.Delete(b.writeOptions, key); err != nil {
			return err
		}
		s.finishSingleOp()
	}
	return nil
}

func (b *benchmark) compact(s *stats) error {
	return b.db.CompactRange(nil, nil)
}

func crc32c(s *stats) error {
	const size = 4096
	data := bytes.Repeat([]byte{'x'}, size)
	var crc uint32
	for s.bytes < 500*1048576 {
		crc = util.Value(data)
		s.finishSingleOp()
		s.bytes += size
	}
	s.addMessage(fmt.Sprintf("(4K per op) crc=0x%x", crc))
	return nil
}

func (b *benchmark) snappyCompress(s *stats) error {
	input := newRandomGenerator(b.flags.compressionRatio).generate(ldb.NewOptions().BlockSize)
	var produced int64
	for s.bytes < 1024*1048576 {
		produced += int64(len(snappy.Encode(nil, input)))
		s.bytes += int64(len(input))
		s.finishSingleOp()
	}
	s.addMessage(fmt.Sprintf("(output: %.1f%%)", float64(produced*100)/float64(s.bytes)))
	return nil
}

func (b *benchmark) snappyUncompress(s *stats) error {
	input := newRandomGenerator(b.flags.compressionRatio).generate(ldb.NewOptions().BlockSize)
	compressed := snappy.Encode(nil, input)
	for s.bytes < 1024*1048576 {
		if _, err := snappy.Decode(nil, compressed); err != nil {
			return err
		}
		s.bytes += int64(len(input))
		s.finishSingleOp()
	}
	return nil
}

func newBenchCommand(c *config) *cobra.Command {
	flags := new(benchFlags)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "run write and read benchmarks against a database directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.dir == "" {
				return errNoDB
			}
			return newBenchmark(c, flags, cmd.OutOrStdout(), cmd.ErrOrStderr()).run()
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&flags.benchmarks, "benchmarks", []string{
		"fillseq", "fillrandom", "overwrite", "readrandom", "readseq",
		"readreverse", "compact", "readrandom", "readseq", "fill100K",
		"crc32c", "snappycomp", "snappyuncomp",
	}, "comma separated list of benchmarks to run in order")
	f.IntVar(&flags.num, "num", 1000000, "number of key/value pairs")
	f.IntVar(&flags.reads, "reads", -1, "number of reads, or -1 for --num")
	f.IntVar(&flags.valueSize, "value-size", 100, "size of each value")
	f.Float64Var(&flags.compressionRatio, "compression-ratio", 0.5, "fraction of each value that is incompressible")
	f.IntVar(&flags.memSize, "mem-size", 0, "memtable flush threshold in bytes, 0 for the default")
	f.IntVar(&flags.maxFileSize, "max-file-size", 0, "table size limit in bytes, 0 for the default")
	f.IntVar(&flags.blockSize, "block-size", 0, "table block size in bytes, 0 for the default")
	f.IntVar(&flags.cacheSize, "cache-size", -1, "block cache capacity in bytes, negative for the default")
	f.IntVar(&flags.bloomBits, "bloom-bits", -1, "bloom filter bits per key, negative for the default")
	f.BoolVar(&flags.useExistingDB, "use-existing-db", false, "keep the existing database instead of starting fresh")
	return cmd
}
