package ldb

import (
	"bytes"
	"fmt"

	"ldb/util"
)

const TagSize = 8

type ParsedInternalKey struct {
	UserKey   []byte
	Sequence  SequenceNumber
	ValueType ValueType
}

func (k *ParsedInternalKey) DebugString() string {
	return fmt.Sprintf("'%s' @ %d : %d", util.EscapeString(k.UserKey), k.Sequence, int(k.ValueType))
}

func PackSequenceAndType(seq SequenceNumber, t ValueType) uint64 {
	if seq > MaxSequenceNumber {
		panic("seq > MaxSequenceNumber")
	}
	if t > ValueTypeForSeek {
		panic("t > ValueTypeForSeek")
	}
	return (uint64(seq) << 8) | uint64(t)
}

func AppendInternalKey(dst *[]byte, key *ParsedInternalKey) {
	*dst = append(*dst, key.UserKey...)
	util.PutFixed64(dst, PackSequenceAndType(key.Sequence, key.ValueType))
}

// MakeInternalKey returns a fresh user key + tag.
func MakeInternalKey(userKey []byte, seq SequenceNumber, t ValueType) []byte {
	dst := make([]byte, 0, len(userKey)+TagSize)
	AppendInternalKey(&dst, &ParsedInternalKey{UserKey: userKey, Sequence: seq, ValueType: t})
	return dst
}

// MakeLookupKey returns the internal key that sorts before every stored
// version of userKey.
func MakeLookupKey(userKey []byte) []byte {
	return MakeInternalKey(userKey, MaxSequenceNumber, ValueTypeForSeek)
}

func ParseInternalKey(internalKey []byte, result *ParsedInternalKey) bool {
	n := len(internalKey)
	if n < TagSize {
		return false
	}
	num := util.DecodeFixed64(internalKey[n-TagSize:])
	c := byte(num & 0xff)
	result.Sequence = SequenceNumber(num >> 8)
	result.ValueType = ValueType(c)
	result.UserKey = internalKey[:n-TagSize]
	return c <= byte(TypeValue)
}

func ExtractUserKey(internalKey []byte) []byte {
	if len(internalKey) < TagSize {
		panic("len(internalKey) < 8")
	}
	return internalKey[:len(internalKey)-TagSize]
}

func ExtractTag(internalKey []byte) uint64 {
	return util.DecodeFixed64(internalKey[len(internalKey)-TagSize:])
}

func InternalKeyDebugString(internalKey []byte) string {
	var parsed ParsedInternalKey
	if ParseInternalKey(internalKey, &parsed) {
		return parsed.DebugString()
	}
	return "(bad)" + util.EscapeString(internalKey)
}

const InternalKeyComparatorName = "leveldb.InternalKeyComparator"

// InternalKeyComparator orders internal keys by increasing user key, then by
// decreasing tag, so the newest version of a key is met first. Keys shorter
// than a tag are compared as bare user keys ahead of any tagged version.
type InternalKeyComparator struct {
	UserComparator Comparator
}

func NewInternalKeyComparator(c Comparator) *InternalKeyComparator {
	return &InternalKeyComparator{UserComparator: c}
}

func (c *InternalKeyComparator) Compare(a, b []byte) int {
	ua, ta, oka := splitInternalKey(a)
	ub, tb, okb := splitInternalKey(b)
	r := c.UserComparator.Compare(ua, ub)
	if r != 0 {
		return r
	}
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return -1
	case !okb:
		return 1
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	}
	return 0
}

func (c *InternalKeyComparator) Name() string {
	return InternalKeyComparatorName
}

// CompareUserKeys compares the user key portions of two internal keys.
func (c *InternalKeyComparator) CompareUserKeys(a, b []byte) int {
	ua, _, _ := splitInternalKey(a)
	ub, _, _ := splitInternalKey(b)
	return c.UserComparator.Compare(ua, ub)
}

func splitInternalKey(k []byte) ([]byte, uint64, bool) {
	if len(k) < TagSize {
		return k, 0, false
	}
	n := len(k) - TagSize
	return k[:n], util.DecodeFixed64(k[n:]), true
}

// InternalFilterPolicy adapts a user key filter policy to internal keys by
// stripping the tag before hashing.
type InternalFilterPolicy struct {
	UserPolicy FilterPolicy
}

func NewInternalFilterPolicy(p FilterPolicy) *InternalFilterPolicy {
	return &InternalFilterPolicy{UserPolicy: p}
}

func (p *InternalFilterPolicy) Name() string {
	return p.UserPolicy.Name()
}

func (p *InternalFilterPolicy) CreateFilter(keys [][]byte, dst *[]byte) {
	userKeys := make([][]byte, len(keys))
	for i := range keys {
		userKeys[i], _, _ = splitInternalKey(keys[i])
	}
	p.UserPolicy.CreateFilter(userKeys, dst)
}

func (p *InternalFilterPolicy) KeyMayMatch(key []byte, filter []byte) bool {
	userKey, _, _ := splitInternalKey(key)
	return p.UserPolicy.KeyMayMatch(userKey, filter)
}

// SameUserKey reports whether two internal keys carry the same user key.
func SameUserKey(a, b []byte) bool {
	ua, _, _ := splitInternalKey(a)
	ub, _, _ := splitInternalKey(b)
	return bytes.Equal(ua, ub)
}
