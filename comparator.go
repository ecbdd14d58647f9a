package ldb

import (
	"bytes"
)

type Comparator interface {
	Compare(a, b []byte) int
	Name() string
}

const BytewiseComparatorName = "leveldb.BytewiseComparator"

var BytewiseComparator bytewiseComparator

type bytewiseComparator struct{}

func (bytewiseComparator) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (bytewiseComparator) Name() string {
	return BytewiseComparatorName
}
