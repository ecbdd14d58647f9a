package ldb

type CleanUpFunction func(arg1, arg2 interface{})

// Iterator yields key/value pairs in comparator order. Key and Value are only
// valid while IsValid returns true and until the next move. Errors are
// reported through GetStatus; a corrupt source invalidates the iterator.
type Iterator interface {
	IsValid() bool
	SeekToFirst()
	SeekToLast()
	Seek(target []byte)
	Next()
	Prev()
	GetKey() []byte
	GetValue() []byte
	GetStatus() error
	RegisterCleanUp(function CleanUpFunction, arg1, arg2 interface{})
	Close()
}
