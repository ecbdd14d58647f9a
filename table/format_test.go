package table

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"ldb"
	"ldb/util"
)

var _ = Describe("BlockHandle", func() {
	It("should encode and decode", func() {
		h := BlockHandle{Offset: 1 << 40, Size: 300}
		input := h.Encode()
		Expect(len(input)).To(BeNumerically("<=", MaxBlockHandleEncodedLength))

		var decoded BlockHandle
		Expect(decoded.DecodeFrom(&input)).To(Succeed())
		Expect(decoded).To(Equal(h))
		Expect(input).To(BeEmpty())
	})

	It("should reject truncated input", func() {
		_, err := DecodeBlockHandle([]byte{0x80})
		Expect(ldb.IsCorruption(err)).To(BeTrue())
	})
})

var _ = Describe("Footer", func() {
	footer := Footer{
		MetaIndexHandle: BlockHandle{Offset: 1000, Size: 20},
		IndexHandle:     BlockHandle{Offset: 1025, Size: 300000},
	}

	It("should have a fixed length", func() {
		var dst []byte
		footer.EncodeTo(&dst)
		Expect(dst).To(HaveLen(FooterEncodedLength))
		Expect(util.DecodeFixed64(dst[40:])).To(Equal(TableMagicNumber))

		var decoded Footer
		Expect(decoded.DecodeFrom(dst)).To(Succeed())
		Expect(decoded).To(Equal(footer))
	})

	It("should reject a bad magic number", func() {
		var dst []byte
		footer.EncodeTo(&dst)
		dst[FooterEncodedLength-1] ^= 0xff

		var decoded Footer
		err := decoded.DecodeFrom(dst)
		Expect(ldb.IsCorruption(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("bad magic number"))
	})

	It("should reject short input", func() {
		var decoded Footer
		Expect(ldb.IsCorruption(decoded.DecodeFrom(make([]byte, 10)))).To(BeTrue())
	})
})

var _ = Describe("readBlock", func() {
	raw := bytes.Repeat([]byte("compressible block contents "), 100)

	store := func(t ldb.CompressionType) (*memSource, BlockHandle, ldb.CompressionType) {
		contents, stored, err := compressBlock(raw, t)
		Expect(err).NotTo(HaveOccurred())
		sink := new(memSink)
		b := &Builder{file: sink}
		handle := b.writeRawBlock(contents, stored)
		Expect(b.err).NotTo(HaveOccurred())
		return &memSource{data: sink.data}, handle, stored
	}

	It("should round-trip every supported compression", func() {
		for t, cachable := range map[ldb.CompressionType]bool{
			ldb.NoCompression:         false,
			ldb.ZlibCompression:       true,
			ldb.RawDeflateCompression: true,
		} {
			src, handle, stored := store(t)
			Expect(stored).To(Equal(t))
			if t != ldb.NoCompression {
				Expect(handle.Size).To(BeNumerically("<", len(raw)))
			}
			contents, err := readBlock(src, true, handle)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents.data).To(Equal(raw))
			Expect(contents.cachable).To(Equal(cachable), t.String())
		}
	})

	It("should decode unknown types as raw deflate", func() {
		contents, _, err := compressBlock(raw, ldb.RawDeflateCompression)
		Expect(err).NotTo(HaveOccurred())
		sink := new(memSink)
		b := &Builder{file: sink}
		handle := b.writeRawBlock(contents, ldb.CompressionType(7))
		decoded, err := readBlock(&memSource{data: sink.data}, true, handle)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.data).To(Equal(raw))
	})

	It("should store incompressible data raw", func() {
		rnd := util.NewRandom(301)
		data := make([]byte, 1000)
		for i := range data {
			data[i] = byte(rnd.Uniform(256))
		}
		contents, stored, err := compressBlock(data, ldb.RawDeflateCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(ldb.NoCompression))
		Expect(contents).To(Equal(data))
	})

	It("should not support snappy", func() {
		_, _, err := compressBlock(raw, ldb.SnappyCompression)
		Expect(ldb.IsNotSupportedError(err)).To(BeTrue())

		sink := new(memSink)
		b := &Builder{file: sink}
		handle := b.writeRawBlock(raw, ldb.SnappyCompression)
		_, err = readBlock(&memSource{data: sink.data}, true, handle)
		Expect(ldb.IsNotSupportedError(err)).To(BeTrue())
	})

	It("should detect checksum mismatches", func() {
		src, handle, _ := store(ldb.NoCompression)
		src.data[7] ^= 0x01

		_, err := readBlock(src, true, handle)
		Expect(ldb.IsCorruption(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("checksum mismatch"))

		contents, err := readBlock(src, false, handle)
		Expect(err).NotTo(HaveOccurred())
		Expect(contents.data).NotTo(Equal(raw))
	})

	It("should detect truncated files", func() {
		src, handle, _ := store(ldb.NoCompression)
		src.data = src.data[:len(src.data)-1]
		_, err := readBlock(src, true, handle)
		Expect(ldb.IsCorruption(err)).To(BeTrue())
	})
})
