package sass

import (
	"fmt"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [128]int8 {
	var idx [128]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		idx[base64Chars[i]] = int8(i)
	}
	return idx
}()

// segment holds the absolute values of one mapping segment: generated column
// and, when present, source index, original line, original column, name index.
type segment []int

// decodeMappings expands a "mappings" string into absolute segments per
// generated line.
func decodeMappings(mappings string) ([][]segment, error) {
	var (
		lines [][]segment
		prev  [5]int
	)
	for _, line := range strings.Split(mappings, ";") {
		prev[0] = 0
		var segs []segment
		for _, raw := range strings.Split(line, ",") {
			if raw == "" {
				continue
			}
			fields, err := decodeVLQ(raw)
			if err != nil {
				return nil, err
			}
			if n := len(fields); n != 1 && n != 4 && n != 5 {
				return nil, fmt.Errorf("invalid segment %q: %d fields", raw, n)
			}
			seg := make(segment, len(fields))
			for i, v := range fields {
				prev[i] += v
				seg[i] = prev[i]
			}
			segs = append(segs, seg)
		}
		lines = append(lines, segs)
	}
	return lines, nil
}

func encodeMappings(lines [][]segment) string {
	var (
		b    strings.Builder
		prev [5]int
	)
	for li, segs := range lines {
		if li > 0 {
			b.WriteByte(';')
		}
		prev[0] = 0
		for si, seg := range segs {
			if si > 0 {
				b.WriteByte(',')
			}
			for i, v := range seg {
				encodeVLQ(&b, v-prev[i])
				prev[i] = v
			}
		}
	}
	return b.String()
}

func decodeVLQ(s string) ([]int, error) {
	var (
		out          []int
		value, shift int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 128 || base64Index[c] < 0 {
			return nil, fmt.Errorf("invalid base64 character %q", c)
		}
		digit := int(base64Index[c])
		value += (digit & 31) << shift
		if digit&32 != 0 {
			shift += 5
			continue
		}
		if value&1 != 0 {
			out = append(out, -(value >> 1))
		} else {
			out = append(out, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("truncated segment %q", s)
	}
	return out, nil
}

func encodeVLQ(b *strings.Builder, v int) {
	if v < 0 {
		v = (-v << 1) | 1
	} else {
		v <<= 1
	}
	for {
		digit := v & 31
		v >>= 5
		if v > 0 {
			digit |= 32
		}
		b.WriteByte(base64Chars[digit])
		if v == 0 {
			return
		}
	}
}
