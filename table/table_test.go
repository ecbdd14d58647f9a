package table

import (
	"bytes"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	gltable "github.com/syndtr/goleveldb/leveldb/table"

	"ldb"
	"ldb/util"
)

var _ = Describe("Table", func() {
	var (
		options *ldb.Options
		entries []kv
	)

	BeforeEach(func() {
		options = testOptions()
		entries = []kv{
			{ikey("a", 5, ldb.TypeValue), []byte("a5")},
			{ikey("a", 3, ldb.TypeValue), []byte("a3")},
			{ikey("b", 7, ldb.TypeDeletion), nil},
			{ikey("b", 2, ldb.TypeValue), []byte("b2")},
			{ikey("c", 1, ldb.TypeValue), []byte("c1")},
		}
	})

	It("should open and close", func() {
		t, src := openTable(options, buildTable(options, entries))
		Expect(t.Close()).To(Succeed())
		Expect(src.closed).To(BeTrue())
	})

	It("should enumerate internal keys in order", func() {
		t, _ := openTable(options, buildTable(options, entries))
		defer t.Close()

		iter := t.NewIterator(nil)
		defer iter.Close()
		Expect(collect(iter)).To(Equal(entries))
		Expect(iter.GetStatus()).To(Succeed())
	})

	It("should enumerate in reverse", func() {
		t, _ := openTable(options, buildTable(options, entries))
		defer t.Close()

		iter := t.NewIterator(nil)
		defer iter.Close()
		n := len(entries)
		for iter.SeekToLast(); iter.IsValid(); iter.Prev() {
			n--
			Expect(iter.GetKey()).To(Equal(entries[n].key))
		}
		Expect(n).To(Equal(0))
	})

	It("should get the newest version of a key", func() {
		t, _ := openTable(options, buildTable(options, entries))
		defer t.Close()

		res, err := t.Get(nil, []byte("a"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(ldb.StateExist))
		Expect(res.Data).To(Equal([]byte("a5")))

		res, err = t.Get(nil, []byte("b"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(ldb.StateDeleted))

		res, err = t.Get(nil, []byte("c"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ldb.ExistResult([]byte("c1"))))

		for _, missing := range []string{"", "0", "aa", "bz", "d"} {
			res, err = t.Get(nil, []byte(missing))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(ldb.StateNotFound), missing)
		}
	})

	It("should reject keys added out of order", func() {
		b := NewBuilder(options, new(memSink))
		Expect(b.Add(ikey("b", 1, ldb.TypeValue), nil)).To(Succeed())
		err := b.Add(ikey("a", 1, ldb.TypeValue), nil)
		Expect(ldb.IsInvalidArgument(err)).To(BeTrue())
		Expect(b.Status()).To(MatchError(err))
		Expect(b.Add(ikey("c", 1, ldb.TypeValue), nil)).To(MatchError(err))
		Expect(b.Finish()).To(MatchError(err))
	})

	It("should keep prefix user keys apart in internal key order", func() {
		prefixed := []kv{
			{ikey("a", 2, ldb.TypeValue), []byte("a2")},
			{ikey("a\x00", 1, ldb.TypeValue), []byte("a0")},
		}
		t, _ := openTable(options, buildTable(options, prefixed))
		defer t.Close()
		Expect(t.Get(nil, []byte("a"))).To(Equal(ldb.ExistResult([]byte("a2"))))
		Expect(t.Get(nil, []byte("a\x00"))).To(Equal(ldb.ExistResult([]byte("a0"))))

		// Byte-wise order of the stored keys puts "a\x00"@1 first, which
		// the builder refuses.
		b := NewBuilder(options, new(memSink))
		Expect(b.Add(prefixed[1].key, prefixed[1].value)).To(Succeed())
		err := b.Add(prefixed[0].key, prefixed[0].value)
		Expect(ldb.IsInvalidArgument(err)).To(BeTrue())
		Expect(b.Finish()).To(MatchError(err))
	})

	It("should build an empty table", func() {
		t, _ := openTable(options, buildTable(options, nil))
		defer t.Close()

		iter := t.NewIterator(nil)
		defer iter.Close()
		iter.SeekToFirst()
		Expect(iter.IsValid()).To(BeFalse())
		Expect(iter.GetStatus()).To(Succeed())

		res, err := t.Get(nil, []byte("a"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(ldb.StateNotFound))
	})

	It("should reject files that are not tables", func() {
		data := buildTable(options, entries)

		_, err := Open(options, &memSource{data: data[:10]}, 10)
		Expect(ldb.IsCorruption(err)).To(BeTrue())

		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xff
		_, err = Open(options, &memSource{data: bad}, uint64(len(bad)))
		Expect(ldb.IsCorruption(err)).To(BeTrue())
	})

	It("should detect corrupted data blocks when checking", func() {
		options.CompressionType = ldb.NoCompression
		data := buildTable(options, entries)
		data[4] ^= 0x40

		t, _ := openTable(options, data)
		_, err := t.Get(&ldb.ReadOptions{VerifyChecksums: true}, []byte("a"))
		Expect(ldb.IsCorruption(err)).To(BeTrue())
		Expect(t.Close()).To(Succeed())

		options.ParanoidChecks = true
		t, _ = openTable(options, data)
		defer t.Close()
		iter := t.NewIterator(nil)
		defer iter.Close()
		iter.SeekToFirst()
		Expect(iter.IsValid()).To(BeFalse())
		Expect(ldb.IsCorruption(iter.GetStatus())).To(BeTrue())
	})

	It("should skip blocks ruled out by the filter", func() {
		options.FilterPolicy = hashFilter{}
		entries = entries[:0]
		for i := 0; i < 100; i += 2 {
			entries = append(entries, kv{ikey(fmt.Sprintf("key%03d", i), 1, ldb.TypeValue), []byte("v")})
		}
		t, src := openTable(options, buildTable(options, entries))
		defer t.Close()
		Expect(t.filter).NotTo(BeNil())

		reads := src.reads
		for i := 1; i < 100; i += 2 {
			res, err := t.Get(nil, []byte(fmt.Sprintf("key%03d", i)))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(ldb.StateNotFound))
		}
		Expect(src.reads).To(Equal(reads))

		res, err := t.Get(nil, []byte("key042"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(ldb.StateExist))
		Expect(src.reads).To(BeNumerically(">", reads))
	})

	It("should ignore filters built by another policy", func() {
		options.FilterPolicy = hashFilter{}
		data := buildTable(options, entries)

		options.FilterPolicy = ldb.NewBloomFilterPolicy(10)
		t, _ := openTable(options, data)
		defer t.Close()
		Expect(t.filter).To(BeNil())

		res, err := t.Get(nil, []byte("a"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(ldb.StateExist))
	})

	It("should serve repeated reads from the block cache", func() {
		options.BlockCache = ldb.NewLRUCache(8 << 20)
		options.CompressionType = ldb.RawDeflateCompression
		entries = entries[:0]
		for i := 0; i < 1000; i++ {
			entries = append(entries, kv{ikey(fmt.Sprintf("key%04d", i), 1, ldb.TypeValue), bytes.Repeat([]byte{'x'}, 100)})
		}
		t, src := openTable(options, buildTable(options, entries))
		defer t.Close()

		iter := t.NewIterator(&ldb.ReadOptions{FillCache: true})
		Expect(collect(iter)).To(HaveLen(1000))
		iter.Close()
		Expect(options.BlockCache.TotalCharge()).To(BeNumerically(">", 0))

		reads := src.reads
		iter = t.NewIterator(&ldb.ReadOptions{FillCache: true})
		Expect(collect(iter)).To(HaveLen(1000))
		iter.Close()
		Expect(src.reads).To(Equal(reads))
	})

	It("should approximate offsets of plain tables", func() {
		options.CompressionType = ldb.NoCompression
		options.BlockSize = 1024
		values := []struct {
			key  string
			size int
		}{
			{"k01", 5}, {"k02", 6}, {"k03", 10000}, {"k04", 200000},
			{"k05", 300000}, {"k06", 6}, {"k07", 100000},
		}
		entries = entries[:0]
		rnd := util.NewRandom(301)
		for _, v := range values {
			entries = append(entries, kv{ikey(v.key, 1, ldb.TypeValue), []byte(util.RandomString(rnd, v.size))})
		}
		t, _ := openTable(options, buildTable(options, entries))
		defer t.Close()

		between := func(key string, low, high uint64) {
			offset := t.ApproximateOffsetOf(ldb.MakeLookupKey([]byte(key)))
			ExpectWithOffset(1, offset).To(BeNumerically(">=", low), key)
			ExpectWithOffset(1, offset).To(BeNumerically("<=", high), key)
		}
		between("abc", 0, 0)
		between("k01", 0, 0)
		between("k01a", 0, 0)
		between("k02", 0, 0)
		between("k03", 0, 0)
		between("k04", 10000, 11000)
		between("k04a", 210000, 211000)
		between("k05", 210000, 211000)
		between("k06", 510000, 511000)
		between("k07", 510000, 511000)
		between("xyz", 610000, 612000)
	})

	It("should enumerate a large table in ascending order", func() {
		entries = entries[:0]
		rnd := util.NewRandom(5322)
		for i := 0; i < 5322; i++ {
			entries = append(entries, kv{
				ikey(fmt.Sprintf("%010d", i*7), ldb.SequenceNumber(i+1), ldb.TypeValue),
				[]byte(util.RandomString(rnd, int(rnd.Uniform(200)))),
			})
		}
		t, _ := openTable(options, buildTable(options, entries))
		defer t.Close()

		iter := t.NewIterator(nil)
		defer iter.Close()
		var count int
		var prev []byte
		for iter.SeekToFirst(); iter.IsValid(); iter.Next() {
			key := iter.GetKey()
			Expect(ldb.ExtractUserKey(key)).NotTo(BeEmpty())
			if prev != nil {
				Expect(bytes.Compare(ldb.ExtractUserKey(prev), ldb.ExtractUserKey(key))).To(Equal(-1))
			}
			Expect(iter.GetValue()).To(Equal(entries[count].value))
			prev = append(prev[:0], key...)
			count++
		}
		Expect(iter.GetStatus()).To(Succeed())
		Expect(count).To(Equal(5322))

		for _, i := range []int{0, 1, 2660, 5321} {
			iter.Seek(entries[i].key)
			Expect(iter.IsValid()).To(BeTrue())
			Expect(iter.GetKey()).To(Equal(entries[i].key))
		}
	})
})

// internalComparer exposes internal key ordering to goleveldb. Returning nil
// from Separator and Successor keeps full last keys in the index, as Builder
// does.
type internalComparer struct {
	*ldb.InternalKeyComparator
}

func (internalComparer) Separator(dst, a, b []byte) []byte { return nil }
func (internalComparer) Successor(dst, b []byte) []byte    { return nil }

var _ = Describe("goleveldb compatibility", func() {
	var (
		cmp     internalComparer
		entries []kv
	)

	BeforeEach(func() {
		cmp = internalComparer{ldb.NewInternalKeyComparator(ldb.BytewiseComparator)}
		entries = entries[:0]
		for i := 0; i < 2000; i++ {
			entries = append(entries, kv{
				ikey(fmt.Sprintf("user-%05d", i), ldb.SequenceNumber(2000-i), ldb.TypeValue),
				[]byte(strings.Repeat(fmt.Sprint(i), 3)),
			})
		}
	})

	It("should read tables written by goleveldb", func() {
		var buf bytes.Buffer
		w := gltable.NewWriter(&buf, &opt.Options{Comparer: cmp, Compression: opt.NoCompression})
		for _, e := range entries {
			Expect(w.Append(e.key, e.value)).To(Succeed())
		}
		Expect(w.Close()).To(Succeed())

		options := testOptions()
		t, _ := openTable(options, buf.Bytes())
		defer t.Close()

		iter := t.NewIterator(nil)
		defer iter.Close()
		Expect(collect(iter)).To(Equal(entries))

		res, err := t.Get(nil, []byte("user-01234"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Data).To(Equal(entries[1234].value))
	})

	It("should write tables readable by goleveldb", func() {
		options := testOptions()
		options.CompressionType = ldb.NoCompression
		data := buildTable(options, entries)

		r, err := gltable.NewReader(bytes.NewReader(data), int64(len(data)),
			storage.FileDesc{Type: storage.TypeTable, Num: 1}, nil, nil, &opt.Options{Comparer: cmp})
		Expect(err).NotTo(HaveOccurred())
		defer r.Release()

		iter := r.NewIterator(nil, nil)
		defer iter.Release()
		var n int
		for iter.First(); iter.Valid(); iter.Next() {
			Expect(iter.Key()).To(Equal(entries[n].key))
			Expect(iter.Value()).To(Equal(entries[n].value))
			n++
		}
		Expect(iter.Error()).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(entries)))
	})
})
