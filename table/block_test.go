package table

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"ldb"
	"ldb/util"
)

var _ = Describe("block", func() {
	var (
		builder *blockBuilder
		keys    []string
	)

	BeforeEach(func() {
		builder = newBlockBuilder(ldb.BytewiseComparator, 4)
		keys = keys[:0]
		for i := 0; i < 50; i++ {
			key := fmt.Sprintf("key%03d", i*2)
			keys = append(keys, key)
			Expect(builder.add([]byte(key), []byte("v"+key))).To(Succeed())
		}
	})

	open := func() ldb.Iterator {
		return newBlock(builder.finish()).newIterator(ldb.BytewiseComparator)
	}

	It("should enumerate entries in order", func() {
		iter := open()
		defer iter.Close()

		var seen []string
		for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
			seen = append(seen, string(iter.GetKey()))
			Expect(string(iter.GetValue())).To(Equal("v" + string(iter.GetKey())))
		}
		Expect(iter.GetStatus()).To(Succeed())
		Expect(seen).To(Equal(keys))
	})

	It("should enumerate entries in reverse", func() {
		iter := open()
		defer iter.Close()

		var seen []string
		for iter.SeekToLast(); iter.IsValid(); iter.Prev() {
			seen = append([]string{string(iter.GetKey())}, seen...)
		}
		Expect(seen).To(Equal(keys))
	})

	It("should seek every key", func() {
		iter := open()
		defer iter.Close()

		for _, key := range keys {
			iter.Seek([]byte(key))
			Expect(iter.IsValid()).To(BeTrue())
			Expect(string(iter.GetKey())).To(Equal(key))
		}
	})

	It("should seek between keys", func() {
		iter := open()
		defer iter.Close()

		iter.Seek([]byte("key001"))
		Expect(iter.IsValid()).To(BeTrue())
		Expect(string(iter.GetKey())).To(Equal("key002"))

		iter.Seek([]byte("a"))
		Expect(iter.IsValid()).To(BeTrue())
		Expect(string(iter.GetKey())).To(Equal("key000"))

		iter.Seek([]byte("key099"))
		Expect(iter.IsValid()).To(BeFalse())
		Expect(iter.GetStatus()).To(Succeed())
	})

	It("should place restart points by interval", func() {
		b := newBlock(builder.finish())
		Expect(b.malformed).To(BeFalse())
		Expect(b.numRestarts).To(Equal(13))
	})

	It("should reject empty and out-of-order keys", func() {
		err := builder.add(nil, []byte("x"))
		Expect(ldb.IsInvalidArgument(err)).To(BeTrue())

		err = builder.add([]byte("key000"), []byte("x"))
		Expect(ldb.IsInvalidArgument(err)).To(BeTrue())
	})

	It("should support empty blocks", func() {
		empty := newBlockBuilder(ldb.BytewiseComparator, 16)
		Expect(empty.empty()).To(BeTrue())
		iter := newBlock(empty.finish()).newIterator(ldb.BytewiseComparator)
		defer iter.Close()

		iter.SeekToFirst()
		Expect(iter.IsValid()).To(BeFalse())
		iter.Seek([]byte("foo"))
		Expect(iter.IsValid()).To(BeFalse())
		Expect(iter.GetStatus()).To(Succeed())
	})

	It("should treat zero restart points as empty", func() {
		data := make([]byte, 4)
		iter := newBlock(data).newIterator(ldb.BytewiseComparator)
		defer iter.Close()

		iter.SeekToFirst()
		Expect(iter.IsValid()).To(BeFalse())
		Expect(iter.GetStatus()).To(Succeed())
	})

	It("should detect truncated blocks", func() {
		iter := newBlock([]byte{1, 2}).newIterator(ldb.BytewiseComparator)
		defer iter.Close()

		iter.SeekToFirst()
		Expect(iter.IsValid()).To(BeFalse())
		Expect(ldb.IsCorruption(iter.GetStatus())).To(BeTrue())
	})

	It("should detect entries sharing more than the previous key", func() {
		data := []byte{5, 1, 1, 'a', 'v'}
		util.PutFixed32(&data, 0)
		util.PutFixed32(&data, 1)
		iter := newBlock(data).newIterator(ldb.BytewiseComparator)
		defer iter.Close()

		iter.SeekToFirst()
		Expect(iter.IsValid()).To(BeFalse())
		Expect(ldb.IsCorruption(iter.GetStatus())).To(BeTrue())
	})

	It("should detect entries overrunning the block", func() {
		data := []byte{0, 9, 1, 'a', 'v'}
		util.PutFixed32(&data, 0)
		util.PutFixed32(&data, 1)
		iter := newBlock(data).newIterator(ldb.BytewiseComparator)
		defer iter.Close()

		iter.Seek([]byte("a"))
		Expect(iter.IsValid()).To(BeFalse())
		Expect(ldb.IsCorruption(iter.GetStatus())).To(BeTrue())
	})
})
