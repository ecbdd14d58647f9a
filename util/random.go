package util

import "strings"

const m = uint32(2147483647)

// Random is a small deterministic Lehmer generator used by tests and
// benchmarks that must reproduce the same key sequence.
type Random struct {
	seed uint32
}

func NewRandom(s uint32) *Random {
	r := &Random{seed: s & 0x7fffffff}
	if r.seed == 0 || r.seed == m {
		r.seed = 1
	}
	return r
}

func (r *Random) Next() uint32 {
	const a = 16807
	product := uint64(r.seed) * a
	r.seed = uint32((product >> 31) + (product & uint64(m)))
	if r.seed > m {
		r.seed -= m
	}
	return r.seed
}

func (r *Random) Uniform(n int) uint32 {
	return r.Next() % uint32(n)
}

func (r *Random) OneIn(n int) bool {
	return r.Next()%uint32(n) == 0
}

func (r *Random) Skewed(maxLog int) uint32 {
	return r.Uniform(1 << r.Uniform(maxLog+1))
}

func RandomString(rnd *Random, l int) string {
	dst := make([]byte, l)
	for i := range dst {
		dst[i] = byte(' ' + rnd.Uniform(95))
	}
	return string(dst)
}

func RandomKey(rnd *Random, l int) string {
	testChars := [...]byte{'\000', '\001', 'a', 'b', 'c',
		'd', 'e', '\xfd', '\xfe', '\xff'}
	var b strings.Builder
	for i := 0; i < l; i++ {
		b.WriteByte(testChars[rnd.Uniform(len(testChars))])
	}
	return b.String()
}

func CompressibleString(rnd *Random, compressedFraction float64, l int) string {
	raw := int(float64(l) * compressedFraction)
	if raw < 1 {
		raw = 1
	}
	rawData := RandomString(rnd, raw)
	var b strings.Builder
	for b.Len() < l {
		b.WriteString(rawData)
	}
	return b.String()[:l]
}
