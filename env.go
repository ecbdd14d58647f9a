package ldb

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"ldb/util"
)

// Env is the file layer used by the engine. Everything goes through an
// afero filesystem so the same code runs against the OS or an in-memory
// tree.
type Env struct {
	fs afero.Fs
}

func NewEnv(fs afero.Fs) *Env {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Env{fs: fs}
}

func DefaultEnv() *Env {
	return NewEnv(afero.NewOsFs())
}

func (e *Env) FS() afero.Fs {
	return e.fs
}

type SequentialFile interface {
	io.Reader
	Closer
}

// RandomAccessFile serves positional reads. Read returns a view of n bytes
// at offset that stays valid until Close.
type RandomAccessFile interface {
	Read(offset int64, n int) ([]byte, error)
	Size() int64
	Closer
}

type WritableFile interface {
	Append(data []byte) error
	Flush() error
	Sync() error
	Close() error
}

func (e *Env) NewSequentialFile(name string) (SequentialFile, error) {
	f, err := e.fs.Open(name)
	if err != nil {
		return nil, util.WrapIOError(err, name)
	}
	return f, nil
}

// NewRandomAccessFile maps name into memory. Files on the OS filesystem are
// mmapped where the platform allows it; anything else is read in full.
func (e *Env) NewRandomAccessFile(name string) (RandomAccessFile, error) {
	f, err := e.fs.Open(name)
	if err != nil {
		return nil, util.WrapIOError(err, name)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, util.WrapIOError(err, name)
	}
	size := fi.Size()
	if osFile, ok := f.(*os.File); ok && size > 0 {
		if data, err := mmapFile(osFile, size); err == nil {
			return &mappedFile{name: name, data: data, unmap: munmapFile}, nil
		}
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, util.WrapIOError(err, name)
	}
	return &mappedFile{name: name, data: data}, nil
}

type mappedFile struct {
	name  string
	data  []byte
	unmap func([]byte) error
}

func (f *mappedFile) Read(offset int64, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+int64(n) > int64(len(f.data)) {
		return nil, util.IOError2(f.name, "read past end of file")
	}
	return f.data[offset : offset+int64(n)], nil
}

func (f *mappedFile) Size() int64 {
	return int64(len(f.data))
}

func (f *mappedFile) Close() error {
	data := f.data
	f.data = nil
	if f.unmap != nil && data != nil {
		return util.WrapIOError(f.unmap(data), f.name)
	}
	return nil
}

const writableFileBufferSize = 65536

type bufferedFile struct {
	name string
	file afero.File
	w    *bufio.Writer
}

func (f *bufferedFile) Append(data []byte) error {
	_, err := f.w.Write(data)
	return util.WrapIOError(err, f.name)
}

func (f *bufferedFile) Flush() error {
	return util.WrapIOError(f.w.Flush(), f.name)
}

func (f *bufferedFile) Sync() error {
	if err := f.Flush(); err != nil {
		return err
	}
	return util.WrapIOError(f.file.Sync(), f.name)
}

func (f *bufferedFile) Close() error {
	err := f.w.Flush()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return util.WrapIOError(err, f.name)
}

func (e *Env) NewWritableFile(name string) (WritableFile, error) {
	f, err := e.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, util.WrapIOError(err, name)
	}
	return &bufferedFile{name: name, file: f, w: bufio.NewWriterSize(f, writableFileBufferSize)}, nil
}

func (e *Env) NewAppendableFile(name string) (WritableFile, error) {
	f, err := e.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, util.WrapIOError(err, name)
	}
	return &bufferedFile{name: name, file: f, w: bufio.NewWriterSize(f, writableFileBufferSize)}, nil
}

func (e *Env) FileExists(name string) bool {
	ok, err := afero.Exists(e.fs, name)
	return err == nil && ok
}

// GetChildren lists the base names in dir in sorted order.
func (e *Env) GetChildren(dir string) ([]string, error) {
	infos, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return nil, util.WrapIOError(err, dir)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (e *Env) DeleteFile(name string) error {
	return util.WrapIOError(e.fs.Remove(name), name)
}

func (e *Env) CreateDir(name string) error {
	return util.WrapIOError(e.fs.MkdirAll(name, 0755), name)
}

func (e *Env) GetFileSize(name string) (int64, error) {
	fi, err := e.fs.Stat(name)
	if err != nil {
		return 0, util.WrapIOError(err, name)
	}
	return fi.Size(), nil
}

func (e *Env) RenameFile(from, to string) error {
	return util.WrapIOError(e.fs.Rename(from, to), from)
}

func WriteStringToFileSync(env *Env, data string, name string) error {
	file, err := env.NewWritableFile(name)
	if err != nil {
		return err
	}
	err = file.Append([]byte(data))
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = env.DeleteFile(name)
	}
	return err
}

func ReadFileToString(env *Env, name string) (string, error) {
	data, err := afero.ReadFile(env.fs, name)
	if err != nil {
		return "", util.WrapIOError(err, name)
	}
	return string(data), nil
}

// Join builds a path inside a database directory.
func Join(dir, name string) string {
	return filepath.Join(dir, name)
}

var errMmapUnsupported = errors.New("mmap not supported on this platform")
