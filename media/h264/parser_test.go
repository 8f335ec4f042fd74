package h264

import (
	"io"
	mbits "math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

// bitWriter builds RBSP test vectors, MSB first.
type bitWriter struct {
	data  []byte
	nbits int
}

func (w *bitWriter) writeBit(b uint32) {
	if w.nbits%8 == 0 {
		w.data = append(w.data, 0)
	}
	if b != 0 {
		w.data[len(w.data)-1] |= 1 << uint(7-w.nbits%8)
	}
	w.nbits++
}

func (w *bitWriter) u(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit((v >> uint(i)) & 1)
	}
}

func (w *bitWriter) flag(b bool) {
	if b {
		w.writeBit(1)
	} else {
		w.writeBit(0)
	}
}

func (w *bitWriter) ue(v uint32) {
	code := v + 1
	n := mbits.Len32(code)
	w.u(code, 2*n-1)
}

func (w *bitWriter) se(v int32) {
	if v > 0 {
		w.ue(uint32(2*v - 1))
	} else {
		w.ue(uint32(-2 * v))
	}
}

func (w *bitWriter) rbspTrailing() {
	w.writeBit(1)
	for w.nbits%8 != 0 {
		w.writeBit(0)
	}
}

func TestBitReaderFixedAndGolomb(t *testing.T) {
	// 1000 1111 1110 0011
	br := newBitReader([]byte{0x8f, 0xe3})
	v, err := br.u(4)
	require.Nil(t, err)
	require.Equal(t, uint32(0x8), v)
	v, err = br.u(2)
	require.Nil(t, err)
	require.Equal(t, uint32(0x3), v)
	v, err = br.u(10)
	require.Nil(t, err)
	require.Equal(t, uint32(0x3e3), v)
	require.Equal(t, 16, br.bitsRead())

	_, err = br.u(1)
	require.NotNil(t, err)

	// ue: 1, 010, 011, 00100 -> 0, 1, 2, 3
	br = newBitReader([]byte{0xa6, 0x40}) // 1 010 011 00100 0...
	for _, want := range []uint32{0, 1, 2, 3} {
		v, err := br.ue()
		require.Nil(t, err)
		require.Equal(t, want, v)
	}

	// se: code nums 0..4 -> 0, 1, -1, 2, -2
	for codeNum, want := range map[int32]int32{1: 1, 2: -1, 3: 2, 4: -2} {
		w := &bitWriter{}
		w.ue(uint32(codeNum))
		w.rbspTrailing()
		br := newBitReader(w.data)
		v, err := br.se()
		require.Nil(t, err)
		require.Equal(t, want, v)
	}
}

func TestBitWriterReaderRoundTrip(t *testing.T) {
	w := &bitWriter{}
	w.ue(17)
	w.se(-9)
	w.u(0x5, 3)
	w.flag(true)
	w.rbspTrailing()

	br := newBitReader(w.data)
	v, err := br.ue()
	require.Nil(t, err)
	require.Equal(t, uint32(17), v)
	sv, err := br.se()
	require.Nil(t, err)
	require.Equal(t, int32(-9), sv)
	v, err = br.u(3)
	require.Nil(t, err)
	require.Equal(t, uint32(5), v)
	f, err := br.flag()
	require.Nil(t, err)
	require.True(t, f)
}

func TestUnescapeRBSP(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x12, 0x00, 0x00, 0x03, 0x00, 0x42}
	want := []byte{0x00, 0x00, 0x01, 0x12, 0x00, 0x00, 0x00, 0x42}
	require.Equal(t, want, unescapeRBSP(in))

	// No escapes: unchanged.
	plain := []byte{0x01, 0x02, 0x03, 0x04}
	require.Equal(t, plain, unescapeRBSP(plain))
}

// buildTestSPS encodes a Baseline SPS matching the semantics of
// testSPS(): 320x240, poc type 0, VUI with max_num_reorder_frames.
func buildTestSPS() []byte {
	w := &bitWriter{}
	w.u(66, 8) // profile_idc
	w.u(0, 8)  // constraint flags + reserved
	w.u(40, 8) // level_idc
	w.ue(0)    // seq_parameter_set_id
	w.ue(0)    // log2_max_frame_num_minus4
	w.ue(0)    // pic_order_cnt_type
	w.ue(0)    // log2_max_pic_order_cnt_lsb_minus4
	w.ue(4)    // max_num_ref_frames
	w.flag(false)
	w.ue(19) // pic_width_in_mbs_minus1
	w.ue(14) // pic_height_in_map_units_minus1
	w.flag(true)  // frame_mbs_only_flag
	w.flag(true)  // direct_8x8_inference_flag
	w.flag(false) // frame_cropping_flag
	w.flag(true)  // vui_parameters_present_flag
	// vui_parameters()
	w.flag(false) // aspect_ratio_info
	w.flag(false) // overscan_info
	w.flag(false) // video_signal_type
	w.flag(false) // chroma_loc_info
	w.flag(false) // timing_info
	w.flag(false) // nal_hrd
	w.flag(false) // vcl_hrd
	w.flag(false) // pic_struct
	w.flag(true)  // bitstream_restriction_flag
	w.flag(true)  // motion_vectors_over_pic_boundaries_flag
	w.ue(0)       // max_bytes_per_pic_denom
	w.ue(0)       // max_bits_per_mb_denom
	w.ue(9)       // log2_max_mv_length_horizontal
	w.ue(9)       // log2_max_mv_length_vertical
	w.ue(2)       // max_num_reorder_frames
	w.ue(4)       // max_dec_frame_buffering
	w.rbspTrailing()
	return append([]byte{0x67}, w.data...)
}

func TestParseSPS(t *testing.T) {
	p := NewParser()
	id, err := p.ParseSPS(&Nalu{Type: NaluSPS, Raw: buildTestSPS()})
	require.Nil(t, err)
	require.Equal(t, 0, id)

	sps := p.SPS(0)
	require.NotNil(t, sps)
	require.Equal(t, 66, sps.ProfileIdc)
	require.Equal(t, 40, sps.LevelIdc)
	require.Equal(t, 0, sps.PicOrderCntType)
	require.Equal(t, int32(16), sps.MaxFrameNum())
	require.Equal(t, int32(16), sps.MaxPicOrderCntLsb())
	require.Equal(t, 4, sps.MaxNumRefFrames)
	require.Equal(t, 19, sps.PicWidthInMbsMinus1)
	require.Equal(t, 14, sps.PicHeightInMapUnitsMinus1)
	require.True(t, sps.FrameMbsOnlyFlag)
	require.False(t, sps.GapsInFrameNumValueAllowed)
	require.True(t, sps.VuiParametersPresentFlag)
	require.True(t, sps.BitstreamRestrictionFlag)
	require.Equal(t, 2, sps.MaxNumReorderFrames)
	require.Equal(t, 4, sps.MaxDecFrameBuffering)
	// Absent scaling matrices fall back to flat 16s.
	require.Equal(t, byte(16), sps.ScalingList4x4[0][0])
	require.Equal(t, byte(16), sps.ScalingList8x8[1][63])
}

func buildTestPPS() []byte {
	w := &bitWriter{}
	w.ue(0)       // pic_parameter_set_id
	w.ue(0)       // seq_parameter_set_id
	w.flag(true)  // entropy_coding_mode_flag
	w.flag(false) // pic_order_present_flag
	w.ue(0)       // num_slice_groups_minus1
	w.ue(1)       // num_ref_idx_l0_default_active_minus1
	w.ue(0)       // num_ref_idx_l1_default_active_minus1
	w.flag(false) // weighted_pred_flag
	w.u(0, 2)     // weighted_bipred_idc
	w.se(5)       // pic_init_qp_minus26
	w.se(0)       // pic_init_qs_minus26
	w.se(-2)      // chroma_qp_index_offset
	w.flag(true)  // deblocking_filter_control_present_flag
	w.flag(false) // constrained_intra_pred_flag
	w.flag(false) // redundant_pic_cnt_present_flag
	w.rbspTrailing()
	return append([]byte{0x68}, w.data...)
}

func TestParsePPS(t *testing.T) {
	p := NewParser()
	_, err := p.ParseSPS(&Nalu{Type: NaluSPS, Raw: buildTestSPS()})
	require.Nil(t, err)

	id, err := p.ParsePPS(&Nalu{Type: NaluPPS, Raw: buildTestPPS()})
	require.Nil(t, err)
	require.Equal(t, 0, id)

	pps := p.PPS(0)
	require.NotNil(t, pps)
	require.True(t, pps.EntropyCodingModeFlag)
	require.Equal(t, 1, pps.NumRefIdxL0DefaultMinus1)
	require.Equal(t, int32(5), pps.PicInitQpMinus26)
	require.Equal(t, int32(-2), pps.ChromaQpIndexOffset)
	require.True(t, pps.DeblockingFilterControl)
	// No extension data: the second chroma offset mirrors the first and
	// scaling lists inherit from the SPS.
	require.Equal(t, int32(-2), pps.SecondChromaQpIndexOffset)
	require.False(t, pps.Transform8x8ModeFlag)
	require.Equal(t, byte(16), pps.ScalingList4x4[3][7])

	// A PPS against an unknown SPS is rejected.
	q := NewParser()
	_, err = q.ParsePPS(&Nalu{Type: NaluPPS, Raw: buildTestPPS()})
	require.NotNil(t, err)
}

// buildTestPSlice encodes a P slice header referencing the test PPS:
// frame_num 1, pic_order_cnt_lsb 2, one list modification, cabac.
func buildTestPSlice() []byte {
	w := &bitWriter{}
	w.ue(0)      // first_mb_in_slice
	w.ue(0)      // slice_type P
	w.ue(0)      // pic_parameter_set_id
	w.u(1, 4)    // frame_num
	w.u(2, 4)    // pic_order_cnt_lsb
	w.flag(true) // num_ref_idx_active_override_flag
	w.ue(0)      // num_ref_idx_l0_active_minus1
	w.flag(true) // ref_pic_list_modification_flag_l0
	w.ue(0)      // modification_of_pic_nums_idc 0
	w.ue(0)      // abs_diff_pic_num_minus1
	w.ue(3)      // modification_of_pic_nums_idc 3: done
	w.flag(false) // adaptive_ref_pic_marking_mode_flag
	w.ue(1)       // cabac_init_idc
	w.se(2)       // slice_qp_delta
	w.ue(1)       // disable_deblocking_filter_idc
	w.rbspTrailing()
	return append([]byte{0x41}, w.data...)
}

func TestParseSliceHeader(t *testing.T) {
	p := NewParser()
	_, err := p.ParseSPS(&Nalu{Type: NaluSPS, Raw: buildTestSPS()})
	require.Nil(t, err)
	_, err = p.ParsePPS(&Nalu{Type: NaluPPS, Raw: buildTestPPS()})
	require.Nil(t, err)

	raw := buildTestPSlice()
	hdr, err := p.ParseSliceHeader(&Nalu{Type: NaluNonIDRSlice, RefIdc: 2, Raw: raw})
	require.Nil(t, err)

	require.False(t, hdr.IdrPicFlag)
	require.Equal(t, 2, hdr.NalRefIdc)
	require.True(t, hdr.IsPSlice())
	require.Equal(t, 0, hdr.FirstMbInSlice)
	require.Equal(t, int32(1), hdr.FrameNum)
	require.Equal(t, int32(2), hdr.PicOrderCntLsb)
	require.Equal(t, 0, hdr.NumRefIdxL0ActiveMinus1)
	require.True(t, hdr.RefPicListModificationFlagL0)
	require.Equal(t, 0, hdr.RefListL0Modifications[0].ModificationOfPicNumsIdc)
	require.Equal(t, int32(0), hdr.RefListL0Modifications[0].AbsDiffPicNumMinus1)
	require.Equal(t, 3, hdr.RefListL0Modifications[1].ModificationOfPicNumsIdc)
	require.False(t, hdr.AdaptiveRefPicMarkingModeFlag)
	require.Equal(t, 1, hdr.CabacInitIdc)
	require.Equal(t, int32(2), hdr.SliceQpDelta)
	require.Equal(t, 1, hdr.DisableDeblockingFilterIdc)
	require.Equal(t, raw, hdr.NaluData)
	// Header bit size counts the NAL header byte.
	require.True(t, hdr.HeaderBitSize > 8)
}

func TestAdvanceToNextNalu(t *testing.T) {
	var stream []byte
	stream = append(stream, 0, 0, 0, 1, 0x67, 0xAA) // SPS, 4-byte start code
	stream = append(stream, 0, 0, 1, 0x68, 0xBB)    // PPS, 3-byte start code
	stream = append(stream, 0, 0, 0, 1, 0x65, 0x01, 0x02)

	p := NewParser()
	p.SetStream(stream)

	nalu, err := p.AdvanceToNextNalu()
	require.Nil(t, err)
	require.Equal(t, NaluSPS, nalu.Type)
	require.Equal(t, 3, nalu.RefIdc)
	require.Equal(t, []byte{0x67, 0xAA}, nalu.Raw)

	nalu, err = p.AdvanceToNextNalu()
	require.Nil(t, err)
	require.Equal(t, NaluPPS, nalu.Type)
	require.Equal(t, []byte{0x68, 0xBB}, nalu.Raw)

	nalu, err = p.AdvanceToNextNalu()
	require.Nil(t, err)
	require.Equal(t, NaluIDRSlice, nalu.Type)
	require.Equal(t, []byte{0x65, 0x01, 0x02}, nalu.Raw)

	_, err = p.AdvanceToNextNalu()
	require.Equal(t, io.EOF, err)

	// Garbage before the first start code is skipped.
	p.SetStream(append([]byte{0xde, 0xad}, 0, 0, 1, 0x09, 0xF0))
	nalu, err = p.AdvanceToNextNalu()
	require.Nil(t, err)
	require.Equal(t, NaluAUD, nalu.Type)
}
