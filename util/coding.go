package util

import "encoding/binary"

// Fixed-width integers are little-endian on disk. Varints use the base-128
// encoding with the high bit as the continuation flag.

const (
	MaxVarInt32Length = 5
	MaxVarInt64Length = 10
)

func DecodeFixed32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func DecodeFixed64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func EncodeFixed32(dst []byte, value uint32) {
	binary.LittleEndian.PutUint32(dst, value)
}

func EncodeFixed64(dst []byte, value uint64) {
	binary.LittleEndian.PutUint64(dst, value)
}

func PutFixed32(dst *[]byte, value uint32) {
	var buf [4]byte
	EncodeFixed32(buf[:], value)
	*dst = append(*dst, buf[:]...)
}

func PutFixed64(dst *[]byte, value uint64) {
	var buf [8]byte
	EncodeFixed64(buf[:], value)
	*dst = append(*dst, buf[:]...)
}

func EncodeVarInt32(dst []byte, v uint32) int {
	return EncodeVarInt64(dst, uint64(v))
}

func EncodeVarInt64(dst []byte, v uint64) int {
	const b = 128
	i := 0
	for v >= b {
		dst[i] = byte(v | b)
		i++
		v >>= 7
	}
	dst[i] = byte(v)
	return i + 1
}

func PutVarInt32(dst *[]byte, v uint32) {
	var buf [MaxVarInt32Length]byte
	n := EncodeVarInt32(buf[:], v)
	*dst = append(*dst, buf[:n]...)
}

func PutVarInt64(dst *[]byte, v uint64) {
	var buf [MaxVarInt64Length]byte
	n := EncodeVarInt64(buf[:], v)
	*dst = append(*dst, buf[:n]...)
}

func VarIntLength(v uint64) int {
	l := 1
	for v >= 128 {
		v >>= 7
		l++
	}
	return l
}

// GetVarInt32Ptr decodes a varint32 from the front of input and returns the
// number of bytes consumed, or -1 if input is truncated or overflows.
func GetVarInt32Ptr(input []byte, value *uint32) int {
	if len(input) > 0 && input[0]&128 == 0 {
		*value = uint32(input[0])
		return 1
	}
	result := uint32(0)
	for i, shift := 0, uint(0); shift <= 28 && i < len(input); shift += 7 {
		b := uint32(input[i])
		i++
		if b&128 != 0 {
			result |= (b & 127) << shift
		} else {
			result |= b << shift
			*value = result
			return i
		}
	}
	return -1
}

func GetVarInt64Ptr(input []byte, value *uint64) int {
	result := uint64(0)
	for i, shift := 0, uint(0); shift <= 63 && i < len(input); shift += 7 {
		b := uint64(input[i])
		i++
		if b&128 != 0 {
			result |= (b & 127) << shift
		} else {
			result |= b << shift
			*value = result
			return i
		}
	}
	return -1
}

func GetVarInt32(input *[]byte, value *uint32) bool {
	i := GetVarInt32Ptr(*input, value)
	if i == -1 {
		return false
	}
	*input = (*input)[i:]
	return true
}

func GetVarInt64(input *[]byte, value *uint64) bool {
	i := GetVarInt64Ptr(*input, value)
	if i == -1 {
		return false
	}
	*input = (*input)[i:]
	return true
}

func PutLengthPrefixedSlice(dst *[]byte, value []byte) {
	PutVarInt32(dst, uint32(len(value)))
	*dst = append(*dst, value...)
}

// GetLengthPrefixedSlice copies the next length-prefixed slice out of input.
func GetLengthPrefixedSlice(input *[]byte, result *[]byte) bool {
	var l uint32
	if GetVarInt32(input, &l) && len(*input) >= int(l) {
		*result = make([]byte, l)
		copy(*result, (*input)[:l])
		*input = (*input)[l:]
		return true
	}
	return false
}

// DecodeLengthPrefixedSlice returns the next length-prefixed slice as a view
// into b, and the remainder.
func DecodeLengthPrefixedSlice(b []byte) (value, rest []byte, ok bool) {
	var l uint32
	n := GetVarInt32Ptr(b, &l)
	if n == -1 || len(b)-n < int(l) {
		return nil, nil, false
	}
	return b[n : n+int(l)], b[n+int(l):], true
}
