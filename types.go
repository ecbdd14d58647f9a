package ldb

import "fmt"

type ValueType int8

const (
	TypeDeletion = ValueType(iota)
	TypeValue
)

// ValueTypeForSeek is the type used when building a key to seek with. It must
// be the highest numbered type so that it sorts first among equal sequences.
const ValueTypeForSeek = TypeValue

type SequenceNumber uint64

const MaxSequenceNumber SequenceNumber = (1 << 56) - 1

// State is the outcome of a point lookup at one layer. StateDeleted is
// distinct from StateNotFound so a lookup can stop before searching older
// layers.
type State int8

const (
	StateNotFound State = iota
	StateExist
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateNotFound:
		return "NotFound"
	case StateExist:
		return "Exist"
	case StateDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", int8(s))
	}
}

type ResultStatus struct {
	State State
	Data  []byte
}

var NotFoundResult = ResultStatus{State: StateNotFound}

func ExistResult(data []byte) ResultStatus {
	return ResultStatus{State: StateExist, Data: data}
}

var DeletedResult = ResultStatus{State: StateDeleted}

type Closer interface {
	Close() error
}
