package h264

import (
	"github.com/bugVanisher/hwdec/common/errs"
)

// bitReader reads H.264 RBSP bit syntax (fixed-width fields, flags and
// Exp-Golomb codes) from a byte slice that already had emulation
// prevention bytes removed.
type bitReader struct {
	data []byte
	pos  int // next byte
	n    uint64
	bits int
	read int // bits consumed so far
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

var errOutOfBits = errs.New(errs.CodeInvalidStream, "bitstream ended mid syntax element")

// u reads an n-bit unsigned field, n <= 32.
func (br *bitReader) u(n int) (uint32, error) {
	for n > br.bits {
		if br.pos >= len(br.data) {
			return 0, errOutOfBits
		}
		br.n <<= 8
		br.n |= uint64(br.data[br.pos])
		br.pos++
		br.bits += 8
	}
	r := (br.n >> uint(br.bits-n)) & ((1 << uint(n)) - 1)
	br.bits -= n
	br.read += n
	return uint32(r), nil
}

// flag reads a one-bit flag.
func (br *bitReader) flag() (bool, error) {
	b, err := br.u(1)
	return b != 0, err
}

// ue reads an unsigned Exp-Golomb code (spec 9.1).
func (br *bitReader) ue() (uint32, error) {
	zeros := 0
	for {
		b, err := br.u(1)
		if err != nil {
			return 0, err
		}
		if b != 0 {
			break
		}
		zeros++
		if zeros > 31 {
			return 0, errs.New(errs.CodeInvalidStream, "exp-golomb code too long")
		}
	}
	if zeros == 0 {
		return 0, nil
	}
	rest, err := br.u(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << uint(zeros)) - 1 + rest, nil
}

// se reads a signed Exp-Golomb code (spec 9.1.1).
func (br *bitReader) se() (int32, error) {
	v, err := br.ue()
	if err != nil {
		return 0, err
	}
	if v%2 == 0 {
		return -int32(v / 2), nil
	}
	return int32(v/2) + 1, nil
}

// bitsRead returns how many bits have been consumed, which is the
// header_bit_size handed to the codec for slice headers.
func (br *bitReader) bitsRead() int { return br.read }

// hasMoreRBSPData reports whether syntax elements remain before the
// rbsp_stop_one_bit (spec 7.2).
func (br *bitReader) hasMoreRBSPData() bool {
	remaining := br.bits + (len(br.data)-br.pos)*8
	if remaining <= 0 {
		return false
	}
	// All that is left must not be only the stop bit plus alignment zeros.
	save := *br
	defer func() { *br = save }()
	b, err := br.u(1)
	if err != nil {
		return false
	}
	if b == 0 {
		return true
	}
	for {
		v, err := br.u(1)
		if err != nil {
			return false
		}
		if v != 0 {
			return true
		}
	}
}
