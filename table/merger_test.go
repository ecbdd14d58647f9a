package table

import (
	"sort"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"ldb"
	"ldb/util"
)

func blockOf(keys ...string) ldb.Iterator {
	b := newBlockBuilder(ldb.BytewiseComparator, 2)
	for _, key := range keys {
		ExpectWithOffset(1, b.add([]byte(key), []byte(key+"-value"))).To(Succeed())
	}
	return newBlock(b.finish()).newIterator(ldb.BytewiseComparator)
}

var _ = Describe("merging iterator", func() {
	var (
		iter ldb.Iterator
		all  []string
	)

	BeforeEach(func() {
		groups := [][]string{
			{"a", "d", "g", "j"},
			{"b", "e", "h"},
			{"c", "f", "i", "k", "l"},
		}
		all = all[:0]
		var children []ldb.Iterator
		for _, g := range groups {
			all = append(all, g...)
			children = append(children, blockOf(g...))
		}
		sort.Strings(all)
		iter = NewMergingIterator(ldb.BytewiseComparator, children)
	})

	AfterEach(func() {
		iter.Close()
	})

	It("should merge forwards", func() {
		var seen []string
		for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
			seen = append(seen, string(iter.GetKey()))
		}
		Expect(seen).To(Equal(all))
		Expect(iter.GetStatus()).To(Succeed())
	})

	It("should merge backwards", func() {
		var seen []string
		for iter.SeekToLast(); iter.IsValid(); iter.Prev() {
			seen = append([]string{string(iter.GetKey())}, seen...)
		}
		Expect(seen).To(Equal(all))
	})

	It("should seek", func() {
		iter.Seek([]byte("ee"))
		Expect(iter.IsValid()).To(BeTrue())
		Expect(string(iter.GetKey())).To(Equal("f"))
		Expect(string(iter.GetValue())).To(Equal("f-value"))

		iter.Seek([]byte("z"))
		Expect(iter.IsValid()).To(BeFalse())
	})

	It("should switch direction", func() {
		iter.Seek([]byte("e"))
		iter.Prev()
		Expect(string(iter.GetKey())).To(Equal("d"))
		iter.Prev()
		Expect(string(iter.GetKey())).To(Equal("c"))
		iter.Next()
		Expect(string(iter.GetKey())).To(Equal("d"))
		iter.Next()
		Expect(string(iter.GetKey())).To(Equal("e"))
		iter.Next()
		Expect(string(iter.GetKey())).To(Equal("f"))
	})
})

var _ = Describe("NewMergingIterator", func() {
	It("should yield equal keys from earlier children first", func() {
		first := blockOf("a", "b")
		second := newBlockBuilder(ldb.BytewiseComparator, 16)
		Expect(second.add([]byte("b"), []byte("second"))).To(Succeed())
		iter := NewMergingIterator(ldb.BytewiseComparator, []ldb.Iterator{
			first, newBlock(second.finish()).newIterator(ldb.BytewiseComparator),
		})
		defer iter.Close()

		iter.Seek([]byte("b"))
		Expect(string(iter.GetValue())).To(Equal("b-value"))
		iter.Next()
		Expect(string(iter.GetValue())).To(Equal("second"))
		iter.Next()
		Expect(iter.IsValid()).To(BeFalse())
	})

	It("should handle zero and one children", func() {
		empty := NewMergingIterator(ldb.BytewiseComparator, nil)
		empty.SeekToFirst()
		Expect(empty.IsValid()).To(BeFalse())

		only := blockOf("x")
		Expect(NewMergingIterator(ldb.BytewiseComparator, []ldb.Iterator{only})).To(BeIdenticalTo(only))
		only.Close()
	})

	It("should report child errors", func() {
		iter := NewMergingIterator(ldb.BytewiseComparator, []ldb.Iterator{
			blockOf("a"), NewErrorIterator(util.CorruptionError1("broken")),
		})
		defer iter.Close()
		iter.SeekToFirst()
		Expect(ldb.IsCorruption(iter.GetStatus())).To(BeTrue())
	})

	It("should run clean up functions once on close", func() {
		var calls int
		iter := NewMergingIterator(ldb.BytewiseComparator, []ldb.Iterator{blockOf("a"), blockOf("b")})
		iter.RegisterCleanUp(func(arg1, arg2 interface{}) { calls++ }, nil, nil)
		iter.Close()
		Expect(calls).To(Equal(1))
	})
})
