package table

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"ldb"
	"ldb/util"
)

var _ = Describe("indexed iterator", func() {
	var (
		groups map[string][]string
		iter   ldb.Iterator
	)

	newIndexed := func(entries ...string) ldb.Iterator {
		b := newBlockBuilder(ldb.BytewiseComparator, 1)
		for i := 0; i < len(entries); i += 2 {
			ExpectWithOffset(1, b.add([]byte(entries[i]), []byte(entries[i+1]))).To(Succeed())
		}
		index := newBlock(b.finish()).newIterator(ldb.BytewiseComparator)
		return NewIndexedIterator(index, BlockOpenerFunc(func(_ *ldb.ReadOptions, value []byte) ldb.Iterator {
			keys, ok := groups[string(value)]
			if !ok {
				return NewErrorIterator(util.CorruptionError2("no such group", string(value)))
			}
			return blockOf(keys...)
		}), nil)
	}

	BeforeEach(func() {
		groups = map[string][]string{
			"g0": {"a", "b"},
			"g1": {},
			"g2": {"d", "e", "f"},
		}
		iter = newIndexed("b", "g0", "c", "g1", "f", "g2")
	})

	AfterEach(func() {
		iter.Close()
	})

	It("should walk every block in order", func() {
		var seen []string
		for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
			seen = append(seen, string(iter.GetKey()))
			Expect(iter.GetValue()).To(Equal([]byte(string(iter.GetKey()) + "-value")))
		}
		Expect(seen).To(Equal([]string{"a", "b", "d", "e", "f"}))
		Expect(iter.GetStatus()).To(Succeed())
	})

	It("should walk backwards over empty blocks", func() {
		var seen []string
		for iter.SeekToLast(); iter.IsValid(); iter.Prev() {
			seen = append(seen, string(iter.GetKey()))
		}
		Expect(seen).To(Equal([]string{"f", "e", "d", "b", "a"}))
	})

	It("should seek past an empty block", func() {
		iter.Seek([]byte("c"))
		Expect(iter.IsValid()).To(BeTrue())
		Expect(iter.GetKey()).To(Equal([]byte("d")))
		iter.Prev()
		Expect(iter.GetKey()).To(Equal([]byte("b")))

		iter.Seek([]byte("g"))
		Expect(iter.IsValid()).To(BeFalse())
	})

	It("should report a block that fails to open", func() {
		bad := newIndexed("b", "g0", "c", "missing", "f", "g2")
		defer bad.Close()
		var seen []string
		for bad.SeekToFirst(); bad.IsValid(); bad.Next() {
			seen = append(seen, string(bad.GetKey()))
		}
		Expect(seen).To(Equal([]string{"a", "b", "d", "e", "f"}))
		Expect(ldb.IsCorruption(bad.GetStatus())).To(BeTrue())
	})
})
