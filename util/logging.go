package util

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

func AppendNumberTo(s *string, num uint64) {
	*s += strconv.FormatUint(num, 10)
}

func AppendEscapedStringTo(s *string, value []byte) {
	buf := bytes.NewBufferString(*s)
	for _, v := range value {
		if v >= ' ' && v <= '~' {
			buf.WriteByte(v)
		} else {
			fmt.Fprintf(buf, "\\x%02x", v)
		}
	}
	*s = buf.String()
}

func NumberToString(num uint64) string {
	var s string
	AppendNumberTo(&s, num)
	return s
}

func EscapeString(value []byte) string {
	var r string
	AppendEscapedStringTo(&r, value)
	return r
}

func ConsumeDecimalNumber(in *string, val *uint64) bool {
	const lastDigit = '0' + byte(math.MaxUint64%10)
	value := uint64(0)
	consumed := 0
	for i := 0; i < len(*in); i++ {
		b := (*in)[i]
		if b < '0' || b > '9' {
			break
		}
		if value > math.MaxUint64/10 || (value == math.MaxUint64/10 && b > lastDigit) {
			return false
		}
		value = (value * 10) + uint64(b-'0')
		consumed++
	}
	*val = value
	*in = (*in)[consumed:]
	return consumed != 0
}
