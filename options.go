package ldb

import (
	"log"

	"github.com/spf13/afero"
)

type CompressionType uint8

// Block compression identifiers stored in each block trailer.
const (
	NoCompression         CompressionType = 0
	SnappyCompression     CompressionType = 1
	ZlibCompression       CompressionType = 2
	RawDeflateCompression CompressionType = 4
)

func (t CompressionType) String() string {
	switch t {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case ZlibCompression:
		return "zlib"
	case RawDeflateCompression:
		return "raw-deflate"
	default:
		return "deflate"
	}
}

type Options struct {
	Comparator      Comparator
	CreateIfMissing bool
	ErrorIfExists   bool
	ParanoidChecks  bool
	FS              afero.Fs
	InfoLog         *log.Logger

	// MaxMemCacheSize is the approximate memtable size at which it is
	// flushed to a level-0 table.
	MaxMemCacheSize int
	// MaxOpenFiles bounds the number of tables kept open by the table cache.
	MaxOpenFiles         int
	BlockSize            int
	BlockRestartInterval int
	// MaxFileSize is the size at which compaction output is split.
	MaxFileSize        int
	BlockCache         Cache
	BlockCacheCapacity int
	CompressionType    CompressionType
	FilterPolicy       FilterPolicy

	// L0CompactionTrigger is the level-0 file count that triggers a
	// compaction.
	L0CompactionTrigger int
	// LevelSizeBase is the size budget of level 1. Level n is allowed
	// LevelSizeBase * LevelSizeBaseFactor^(n-1) bytes.
	LevelSizeBase       int64
	LevelSizeBaseFactor int
}

func NewOptions() *Options {
	return &Options{
		Comparator:           BytewiseComparator,
		CreateIfMissing:      false,
		ErrorIfExists:        false,
		ParanoidChecks:       false,
		FS:                   afero.NewOsFs(),
		InfoLog:              nil,
		MaxMemCacheSize:      4 * 1024 * 1024,
		MaxOpenFiles:         1000,
		BlockSize:            4 * 1024,
		BlockRestartInterval: 16,
		MaxFileSize:          2 * 1024 * 1024,
		BlockCacheCapacity:   8 * 1024 * 1024,
		CompressionType:      RawDeflateCompression,
		FilterPolicy:         NewBloomFilterPolicy(10),
		L0CompactionTrigger:  4,
		LevelSizeBase:        10 * 1024 * 1024,
		LevelSizeBaseFactor:  10,
	}
}

type ReadOptions struct {
	VerifyChecksums bool
	FillCache       bool
}

func NewReadOptions() *ReadOptions {
	return &ReadOptions{
		VerifyChecksums: false,
		FillCache:       true,
	}
}

type WriteOptions struct {
	Sync bool
}

func NewWriteOptions() *WriteOptions {
	return &WriteOptions{Sync: false}
}
