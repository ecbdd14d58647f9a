package db

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"ldb"
	"ldb/table"
	"ldb/util"
)

// FileInfo summarises one database file.
type FileInfo struct {
	Name    string
	Type    string
	Number  uint64
	Size    int64
	Records int
}

func guessType(name string) (uint64, fileType, bool) {
	return parseFileName(filepath.Base(name))
}

type corruptionReporter struct {
	dst io.Writer
}

func (r *corruptionReporter) corruption(n int, err error) {
	fmt.Fprintf(r.dst, "corruption: %d bytes; %v\n", n, err)
}

func printLogContents(env *ldb.Env, name string, f func(record []byte, dst io.Writer), dst io.Writer) (int, error) {
	file, err := env.NewSequentialFile(name)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	reader := newLogReader(file, &corruptionReporter{dst: dst}, true)
	records := 0
	for {
		record, err := reader.readRecord()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records++
		f(record, dst)
	}
}

type writeBatchItemPrinter struct {
	dst io.Writer
}

func (p *writeBatchItemPrinter) Put(key, value []byte) {
	fmt.Fprintf(p.dst, "  put '%s' '%s'\n", util.EscapeString(key), util.EscapeString(value))
}

func (p *writeBatchItemPrinter) Delete(key []byte) {
	fmt.Fprintf(p.dst, "  del '%s'\n", util.EscapeString(key))
}

func writeBatchPrinter(record []byte, dst io.Writer) {
	if len(record) < ldb.WriteBatchHeader {
		fmt.Fprintf(dst, "--- log record length %d is too small\n", len(record))
		return
	}
	batch := ldb.NewWriteBatch()
	if err := batch.SetContents(record); err != nil {
		fmt.Fprintf(dst, "--- %v\n", err)
		return
	}
	fmt.Fprintf(dst, "--- sequence %d\n", batch.Sequence())
	if err := batch.Iterate(&writeBatchItemPrinter{dst: dst}); err != nil {
		fmt.Fprintf(dst, "  error: %v\n", err)
	}
}

func versionEditPrinter(record []byte, dst io.Writer) {
	edit := newVersionEdit()
	if err := edit.decodeFrom(record); err != nil {
		fmt.Fprintf(dst, "--- %v\n", err)
		return
	}
	fmt.Fprintf(dst, "--- %s", edit.debugString())
}

func dumpTable(env *ldb.Env, name string, dst io.Writer) (int, error) {
	fileSize, err := env.GetFileSize(name)
	if err != nil {
		return 0, err
	}
	file, err := env.NewRandomAccessFile(name)
	if err != nil {
		return 0, err
	}
	options := ldb.NewOptions()
	options.FilterPolicy = nil
	t, err := table.Open(options, file, uint64(fileSize))
	if err != nil {
		_ = file.Close()
		return 0, err
	}
	defer t.Close()

	ro := ldb.NewReadOptions()
	ro.FillCache = false
	iter := t.NewIterator(ro)
	defer iter.Close()
	records := 0
	var key ldb.ParsedInternalKey
	for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
		records++
		if !ldb.ParseInternalKey(iter.GetKey(), &key) {
			fmt.Fprintf(dst, "badkey '%s' => '%s'\n", util.EscapeString(iter.GetKey()), util.EscapeString(iter.GetValue()))
			continue
		}
		kind := util.NumberToString(uint64(key.ValueType))
		switch key.ValueType {
		case ldb.TypeDeletion:
			kind = "del"
		case ldb.TypeValue:
			kind = "val"
		}
		fmt.Fprintf(dst, "'%s' @ %d : %s => '%s'\n", util.EscapeString(key.UserKey), key.Sequence, kind, util.EscapeString(iter.GetValue()))
	}
	if err = iter.GetStatus(); err != nil {
		fmt.Fprintf(dst, "iterator error: %v\n", err)
	}
	return records, nil
}

// DumpFile writes a readable rendering of the log, manifest or table file
// name to dst and returns a summary of it.
func DumpFile(fs afero.Fs, name string, dst io.Writer) (*FileInfo, error) {
	number, ft, ok := guessType(name)
	if !ok {
		return nil, util.InvalidArgumentError2(name, "unknown file type")
	}
	env := ldb.NewEnv(fs)
	size, err := env.GetFileSize(name)
	if err != nil {
		return nil, err
	}
	info := &FileInfo{Name: name, Type: ft.String(), Number: number, Size: size}
	switch ft {
	case logFile:
		info.Records, err = printLogContents(env, name, writeBatchPrinter, dst)
	case descriptorFile:
		info.Records, err = printLogContents(env, name, versionEditPrinter, dst)
	case tableFile:
		info.Records, err = dumpTable(env, name, dst)
	default:
		return nil, util.InvalidArgumentError2(name, "not a dump-able file type")
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}
