package h264

import (
	"io"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// Parser cuts an Annex-B elementary stream into NAL units and parses the
// parameter sets and slice headers the decoder consumes. Parsed SPS/PPS
// survive SetStream and Reset so decode can resume mid-stream.
type Parser struct {
	data []byte
	pos  int

	sps map[int]*SPS
	pps map[int]*PPS
}

func NewParser() *Parser {
	return &Parser{
		sps: make(map[int]*SPS),
		pps: make(map[int]*PPS),
	}
}

// SetStream points the parser at a new stream chunk.
func (p *Parser) SetStream(data []byte) {
	p.data = data
	p.pos = 0
}

// Reset drops the current stream position but keeps parameter sets.
func (p *Parser) Reset() {
	p.data = nil
	p.pos = 0
}

// AdvanceToNextNalu locates the next NAL unit. io.EOF means the current
// chunk is exhausted (more stream data is needed); any other error is a
// stream error.
func (p *Parser) AdvanceToNextNalu() (*Nalu, error) {
	_, start := nextStartCode(p.data, p.pos)
	if start < 0 {
		p.pos = len(p.data)
		return nil, io.EOF
	}
	if start >= len(p.data) {
		p.pos = len(p.data)
		return nil, io.EOF
	}

	end, _ := nextStartCode(p.data, start)
	if end < 0 {
		end = len(p.data)
	} else {
		// A four-byte start code owns the preceding zero byte.
		for end > start && p.data[end-1] == 0 {
			end--
		}
	}
	raw := p.data[start:end]
	p.pos = end

	if len(raw) == 0 {
		return nil, errs.New(errs.CodeInvalidStream, "empty NAL unit")
	}
	hdr := raw[0]
	if hdr&0x80 != 0 {
		return nil, errs.New(errs.CodeInvalidStream, "forbidden_zero_bit set")
	}
	nalu := &Nalu{
		Type:   int(hdr & 0x1f),
		RefIdc: int(hdr>>5) & 0x3,
		Raw:    raw,
	}
	log.Debug().Int("type", nalu.Type).Int("size", len(raw)).Msg("[Parser] NALU found")
	return nalu, nil
}

// ParseSPS parses an SPS NAL unit and registers it, returning its id.
func (p *Parser) ParseSPS(nalu *Nalu) (int, error) {
	sps, err := parseSPSData(unescapeRBSP(nalu.Raw[1:]))
	if err != nil {
		return 0, errs.Wrapf(err, "parse SPS")
	}
	p.sps[sps.SeqParameterSetID] = sps
	return sps.SeqParameterSetID, nil
}

// ParsePPS parses a PPS NAL unit and registers it, returning its id.
func (p *Parser) ParsePPS(nalu *Nalu) (int, error) {
	pps, err := parsePPSData(unescapeRBSP(nalu.Raw[1:]), p.SPS)
	if err != nil {
		return 0, errs.Wrapf(err, "parse PPS")
	}
	p.pps[pps.PicParameterSetID] = pps
	return pps.PicParameterSetID, nil
}

// ParseSliceHeader parses the header of a slice NAL unit.
func (p *Parser) ParseSliceHeader(nalu *Nalu) (*SliceHeader, error) {
	hdr, err := parseSliceHeaderData(nalu, p.SPS, p.PPS)
	if err != nil {
		return nil, errs.Wrapf(err, "parse slice header")
	}
	return hdr, nil
}

// SPS returns the registered SPS with the given id, or nil.
func (p *Parser) SPS(id int) *SPS { return p.sps[id] }

// PPS returns the registered PPS with the given id, or nil.
func (p *Parser) PPS(id int) *PPS { return p.pps[id] }
