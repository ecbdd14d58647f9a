package ldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldb/util"
)

func nextLength(length int) int {
	switch {
	case length < 10:
		return length + 1
	case length < 100:
		return length + 10
	case length < 1000:
		return length + 100
	default:
		return length + 1000
	}
}

func bloomKey(i int) []byte {
	var buffer [4]byte
	util.EncodeFixed32(buffer[:], uint32(i))
	return buffer[:]
}

type bloomTest struct {
	policy FilterPolicy
	filter []byte
	keys   [][]byte
}

func newBloomTest() *bloomTest {
	return &bloomTest{policy: NewBloomFilterPolicy(10)}
}

func (bt *bloomTest) reset() {
	bt.filter = nil
	bt.keys = nil
}

func (bt *bloomTest) add(key []byte) {
	bt.keys = append(bt.keys, append([]byte(nil), key...))
}

func (bt *bloomTest) build() {
	bt.filter = bt.filter[:0]
	bt.policy.CreateFilter(bt.keys, &bt.filter)
	bt.keys = nil
}

func (bt *bloomTest) matches(b []byte) bool {
	if len(bt.keys) > 0 {
		bt.build()
	}
	return bt.policy.KeyMayMatch(b, bt.filter)
}

func (bt *bloomTest) falsePositiveRate() float64 {
	result := 0
	for i := 0; i < 10000; i++ {
		if bt.matches(bloomKey(i + 1000000000)) {
			result++
		}
	}
	return float64(result) / 10000.0
}

func TestEmptyFilter(t *testing.T) {
	bt := newBloomTest()
	assert.False(t, bt.matches([]byte("hello")))
	assert.False(t, bt.matches([]byte("world")))
}

func TestSmall(t *testing.T) {
	bt := newBloomTest()
	bt.add([]byte("hello"))
	bt.add([]byte("world"))
	assert.True(t, bt.matches([]byte("hello")))
	assert.True(t, bt.matches([]byte("world")))
	assert.False(t, bt.matches([]byte("x")))
	assert.False(t, bt.matches([]byte("foo")))
}

func TestFilterLayout(t *testing.T) {
	bt := newBloomTest()
	bt.add([]byte("a"))
	bt.build()
	// 64 bit minimum plus the hash count byte.
	require.Len(t, bt.filter, 9)
	assert.Equal(t, byte(7), bt.filter[8])
	assert.Equal(t, BloomFilterName, bt.policy.Name())
}

func TestUnknownProbeCountMatchesEverything(t *testing.T) {
	filter := make([]byte, 9)
	filter[8] = 31
	assert.True(t, newBloomTest().policy.KeyMayMatch([]byte("anything"), filter))
}

func TestVaryingLengths(t *testing.T) {
	bt := newBloomTest()
	mediocreFilters, goodFilters := 0, 0
	for length := 1; length <= 10000; length = nextLength(length) {
		bt.reset()
		for i := 0; i < length; i++ {
			bt.add(bloomKey(i))
		}
		bt.build()
		assert.LessOrEqual(t, len(bt.filter), length*10/8+40, "filter size @ length %d", length)
		for i := 0; i < length; i++ {
			require.True(t, bt.matches(bloomKey(i)), "length %d key %d", length, i)
		}

		rate := bt.falsePositiveRate()
		t.Logf("False positives: %5.2f%% @ length = %6d ; bytes = %6d", rate*100.0, length, len(bt.filter))
		// Small filters are padded to 64 bits, which costs a little
		// accuracy at a few lengths with seven hashes.
		assert.LessOrEqual(t, rate, 0.025, "false positive rate @ length %d", length)
		if rate > 0.0125 {
			mediocreFilters++
		} else {
			goodFilters++
		}
	}
	t.Logf("Filters: %d good, %d mediocre", goodFilters, mediocreFilters)
	assert.LessOrEqual(t, mediocreFilters, goodFilters/5)
}
