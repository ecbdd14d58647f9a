package util

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
)

type Code int8

const (
	OK Code = iota
	NotFound
	Corruption
	NotSupported
	InvalidArgument
	IOError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case Corruption:
		return "Corruption"
	case NotSupported:
		return "Not implemented"
	case InvalidArgument:
		return "Invalid argument"
	case IOError:
		return "IO error"
	default:
		return fmt.Sprintf("Unknown code(%d)", int8(c))
	}
}

// DBError carries one of the storage error codes. Errors returned by this
// module are DBErrors wrapped with a stack trace, so callers should classify
// them with CodeOf or the Is* predicates rather than type assertions.
type DBError struct {
	code  Code
	msg   string
	msg2  string
	cause error
}

func NewError(code Code, msg string, msg2 string) error {
	if code == OK {
		panic("code cannot be OK")
	}
	return errors.WithStackDepth(&DBError{code: code, msg: msg, msg2: msg2}, 2)
}

func NotFoundError1(msg string) error {
	return NewError(NotFound, msg, "")
}

func NotFoundError2(msg string, msg2 string) error {
	return NewError(NotFound, msg, msg2)
}

func CorruptionError1(msg string) error {
	return NewError(Corruption, msg, "")
}

func CorruptionError2(msg string, msg2 string) error {
	return NewError(Corruption, msg, msg2)
}

func NotSupportedError1(msg string) error {
	return NewError(NotSupported, msg, "")
}

func NotSupportedError2(msg string, msg2 string) error {
	return NewError(NotSupported, msg, msg2)
}

func InvalidArgumentError1(msg string) error {
	return NewError(InvalidArgument, msg, "")
}

func InvalidArgumentError2(msg string, msg2 string) error {
	return NewError(InvalidArgument, msg, msg2)
}

func IOError1(msg string) error {
	return NewError(IOError, msg, "")
}

func IOError2(msg string, msg2 string) error {
	return NewError(IOError, msg, msg2)
}

// WrapIOError turns a filesystem error into an IOError about name. A nil err
// yields nil.
func WrapIOError(err error, name string) error {
	if err == nil {
		return nil
	}
	var e *DBError
	if errors.As(err, &e) {
		return err
	}
	return errors.WithStackDepth(&DBError{code: IOError, msg: name, cause: err}, 1)
}

func (e *DBError) Error() string {
	return e.String()
}

func (e *DBError) String() string {
	buf := bytes.NewBufferString(e.code.String())
	buf.WriteString(": ")
	buf.WriteString(e.msg)
	if e.msg2 != "" {
		fmt.Fprintf(buf, ": %s", e.msg2)
	}
	if e.cause != nil {
		fmt.Fprintf(buf, ": %v", e.cause)
	}
	return buf.String()
}

func (e *DBError) Code() Code {
	return e.code
}

func (e *DBError) Unwrap() error {
	return e.cause
}

// CodeOf reports the code of the first DBError in err's chain. It returns OK
// for nil and IOError for errors that did not originate here.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *DBError
	if errors.As(err, &e) {
		return e.code
	}
	return IOError
}
