package ldb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ikey(userKey string, seq SequenceNumber, t ValueType) []byte {
	return MakeInternalKey([]byte(userKey), seq, t)
}

func TestInternalKeyEncodeDecode(t *testing.T) {
	keys := []string{"", "k", "hello", "longggggggggggggggggggggg"}
	seqs := []SequenceNumber{1, 2, 3, (1 << 8) - 1, 1 << 8, (1 << 8) + 1, (1 << 16) - 1,
		1 << 16, (1 << 32) - 1, 1 << 32, MaxSequenceNumber}
	for _, k := range keys {
		for _, s := range seqs {
			for _, vt := range []ValueType{TypeValue, TypeDeletion} {
				encoded := ikey(k, s, vt)
				var decoded ParsedInternalKey
				require.True(t, ParseInternalKey(encoded, &decoded))
				assert.Equal(t, k, string(decoded.UserKey))
				assert.Equal(t, s, decoded.Sequence)
				assert.Equal(t, vt, decoded.ValueType)
			}
		}
	}
	var decoded ParsedInternalKey
	assert.False(t, ParseInternalKey([]byte("bar"), &decoded))
}

func TestInternalKeyTagLayout(t *testing.T) {
	k := ikey("a", 0x0102, TypeValue)
	assert.Equal(t, []byte{'a', 0x01, 0x02, 0x01, 0, 0, 0, 0, 0}, k)
}

func TestInternalKeyComparatorOrder(t *testing.T) {
	c := NewInternalKeyComparator(BytewiseComparator)
	// User keys ascend, then newer sequences first.
	assert.Equal(t, -1, c.Compare(ikey("a", 5, TypeValue), ikey("b", 99, TypeValue)))
	assert.Equal(t, -1, c.Compare(ikey("a", 5, TypeValue), ikey("a", 4, TypeValue)))
	assert.Equal(t, -1, c.Compare(ikey("a", 5, TypeValue), ikey("a", 5, TypeDeletion)))
	assert.Equal(t, 0, c.Compare(ikey("a", 5, TypeValue), ikey("a", 5, TypeValue)))
	// A prefix user key sorts first whatever its tag is.
	assert.Equal(t, -1, c.Compare(ikey("a", 1, TypeValue), ikey("a\x00", 100, TypeValue)))
	assert.True(t, bytes.Compare(ikey("a", 1, TypeValue), ikey("a\x00", 100, TypeValue)) > 0)
	// The lookup key sorts before every stored version.
	assert.Equal(t, -1, c.Compare(MakeLookupKey([]byte("a")), ikey("a", MaxSequenceNumber, TypeDeletion)))
	// Untagged keys compare as user keys.
	assert.Equal(t, -1, c.Compare([]byte("b"), ikey("b", 1, TypeValue)))
	assert.Equal(t, 1, c.Compare([]byte("c"), ikey("b", 1, TypeValue)))
	assert.Equal(t, InternalKeyComparatorName, c.Name())
}

func TestInternalFilterPolicyStripsTag(t *testing.T) {
	p := NewInternalFilterPolicy(NewBloomFilterPolicy(10))
	var filter []byte
	p.CreateFilter([][]byte{ikey("foo", 7, TypeValue), ikey("bar", 9, TypeDeletion)}, &filter)
	assert.True(t, p.KeyMayMatch(ikey("foo", 1, TypeValue), filter))
	assert.True(t, NewBloomFilterPolicy(10).KeyMayMatch([]byte("bar"), filter))
	assert.False(t, p.KeyMayMatch(ikey("baz", 7, TypeValue), filter))
}

func TestDebugString(t *testing.T) {
	assert.Equal(t, "'foo' @ 3 : 1", InternalKeyDebugString(ikey("foo", 3, TypeValue)))
	assert.Equal(t, "(bad)x", InternalKeyDebugString([]byte("x")))
}
