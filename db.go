package ldb

// Range is the user key range [Start, Limit).
type Range struct {
	Start []byte
	Limit []byte
}

// DB is an ordered, persistent map from byte keys to byte values. Its
// methods may be called from several goroutines; they are serialised
// internally.
type DB interface {
	Put(options *WriteOptions, key []byte, value []byte) error
	Delete(options *WriteOptions, key []byte) error
	Write(options *WriteOptions, updates *WriteBatch) error
	// Get returns the value of key, or a NotFound error.
	Get(options *ReadOptions, key []byte) ([]byte, error)
	// Lookup reports whether key is live, deleted or unknown.
	Lookup(options *ReadOptions, key []byte) (ResultStatus, error)
	NewIterator(options *ReadOptions) Iterator
	GetProperty(property string) (string, bool)
	GetApproximateSizes(ranges []Range) []uint64
	// CompactRange compacts the key range [begin, end]. A nil bound is open.
	CompactRange(begin, end []byte) error
	Close() error
}
