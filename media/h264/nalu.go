package h264

import (
	"bytes"
)

// NAL unit types the decoder cares about (spec table 7-1).
const (
	NaluNonIDRSlice = 1
	NaluIDRSlice    = 5
	NaluSEI         = 6
	NaluSPS         = 7
	NaluPPS         = 8
	NaluAUD         = 9
	NaluEOSeq       = 10
	NaluEOStream    = 11
)

var startCode = []byte{0, 0, 1}

// Nalu is one Annex-B NAL unit located in the current stream chunk.
// Raw covers the NAL header byte and the (still escaped) payload; the
// start code is excluded.
type Nalu struct {
	Type   int
	RefIdc int
	Raw    []byte
}

// IsSlice reports whether the unit carries coded slice data.
func (n *Nalu) IsSlice() bool {
	return n.Type == NaluNonIDRSlice || n.Type == NaluIDRSlice
}

// nextStartCode returns the index of the next 00 00 01 sequence in b at
// or after from, and the index just past it, or (-1, -1).
func nextStartCode(b []byte, from int) (int, int) {
	i := bytes.Index(b[from:], startCode)
	if i < 0 {
		return -1, -1
	}
	return from + i, from + i + len(startCode)
}

// unescapeRBSP strips emulation prevention bytes (00 00 03 -> 00 00)
// from a NAL payload, returning the raw byte sequence payload.
func unescapeRBSP(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for i := 0; i < len(b); i++ {
		if zeros == 2 && b[i] == 3 {
			zeros = 0
			continue
		}
		if b[i] == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b[i])
	}
	return out
}
