package table

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"ldb"
	"ldb/util"
)

// hashFilter stores one 32-bit hash per key, so its answers are exact for
// the small key sets used here.
type hashFilter struct{}

func (hashFilter) Name() string { return "TestHashFilter" }

func (hashFilter) CreateFilter(keys [][]byte, dst *[]byte) {
	for _, key := range keys {
		util.PutFixed32(dst, util.Hash(key, 1))
	}
}

func (hashFilter) KeyMayMatch(key []byte, filter []byte) bool {
	h := util.Hash(key, 1)
	for i := 0; i+4 <= len(filter); i += 4 {
		if h == util.DecodeFixed32(filter[i:]) {
			return true
		}
	}
	return false
}

var _ ldb.FilterPolicy = hashFilter{}

var _ = Describe("filter block", func() {
	var policy hashFilter

	It("should build an empty block", func() {
		builder := newFilterBlockBuilder(policy)
		block := builder.finish()
		Expect(util.EscapeString(block)).To(Equal(`\x00\x00\x00\x00\x0b`))

		reader := newFilterBlockReader(policy, block)
		Expect(reader.keyMayMatch(0, []byte("foo"))).To(BeTrue())
		Expect(reader.keyMayMatch(100000, []byte("foo"))).To(BeTrue())
	})

	It("should build a single chunk", func() {
		builder := newFilterBlockBuilder(policy)
		builder.startBlock(100)
		builder.addKey([]byte("foo"))
		builder.addKey([]byte("bar"))
		builder.addKey([]byte("box"))
		builder.startBlock(200)
		builder.addKey([]byte("box"))
		builder.startBlock(300)
		builder.addKey([]byte("hello"))

		reader := newFilterBlockReader(policy, builder.finish())
		for _, key := range []string{"foo", "bar", "box", "hello"} {
			Expect(reader.keyMayMatch(100, []byte(key))).To(BeTrue(), key)
		}
		Expect(reader.keyMayMatch(100, []byte("missing"))).To(BeFalse())
		Expect(reader.keyMayMatch(100, []byte("other"))).To(BeFalse())
	})

	It("should build multiple chunks", func() {
		builder := newFilterBlockBuilder(policy)
		builder.startBlock(0)
		builder.addKey([]byte("foo"))
		builder.startBlock(2000)
		builder.addKey([]byte("bar"))
		builder.startBlock(3100)
		builder.addKey([]byte("box"))
		builder.startBlock(9000)
		builder.addKey([]byte("box"))
		builder.addKey([]byte("hello"))

		reader := newFilterBlockReader(policy, builder.finish())

		// First filter
		Expect(reader.keyMayMatch(0, []byte("foo"))).To(BeTrue())
		Expect(reader.keyMayMatch(2000, []byte("bar"))).To(BeTrue())
		Expect(reader.keyMayMatch(0, []byte("box"))).To(BeFalse())
		Expect(reader.keyMayMatch(0, []byte("hello"))).To(BeFalse())

		// Second filter
		Expect(reader.keyMayMatch(3100, []byte("box"))).To(BeTrue())
		Expect(reader.keyMayMatch(3100, []byte("foo"))).To(BeFalse())
		Expect(reader.keyMayMatch(3100, []byte("bar"))).To(BeFalse())
		Expect(reader.keyMayMatch(3100, []byte("hello"))).To(BeFalse())

		// Third filter is empty
		for _, key := range []string{"foo", "bar", "box", "hello"} {
			Expect(reader.keyMayMatch(4100, []byte(key))).To(BeFalse(), key)
		}

		// Last filter
		Expect(reader.keyMayMatch(9000, []byte("box"))).To(BeTrue())
		Expect(reader.keyMayMatch(9000, []byte("hello"))).To(BeTrue())
		Expect(reader.keyMayMatch(9000, []byte("foo"))).To(BeFalse())
		Expect(reader.keyMayMatch(9000, []byte("bar"))).To(BeFalse())
	})

	It("should treat malformed blocks as matching", func() {
		reader := newFilterBlockReader(policy, []byte{1, 2})
		Expect(reader.keyMayMatch(0, []byte("foo"))).To(BeTrue())
	})
})
