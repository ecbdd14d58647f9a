package util

// Hash is the 32-bit hash used by the bloom filter. Its output is persisted
// in filter blocks and must not change.
func Hash(data []byte, seed uint32) uint32 {
	const m = uint32(0xc6a4a793)
	const r = 24
	limit := len(data)
	h := seed ^ (uint32(limit) * m)
	i := 0
	for ; i+4 <= limit; i += 4 {
		h += DecodeFixed32(data[i:])
		h *= m
		h ^= h >> 16
	}
	switch limit - i {
	case 3:
		h += uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h += uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h += uint32(data[i])
		h *= m
		h ^= h >> r
	}
	return h
}
