package h264

import (
	"github.com/bugVanisher/hwdec/common/errs"
)

// Default scaling lists, spec tables 7-3 and 7-4.
var (
	default4x4Intra = [16]byte{
		6, 13, 13, 20, 20, 20, 28, 28, 28, 28, 32, 32, 32, 37, 37, 42,
	}
	default4x4Inter = [16]byte{
		10, 14, 14, 20, 20, 20, 24, 24, 24, 24, 27, 27, 27, 30, 30, 34,
	}
	default8x8Intra = [64]byte{
		6, 10, 10, 13, 11, 13, 16, 16, 16, 16, 18, 18, 18, 18, 18, 23,
		23, 23, 23, 23, 23, 25, 25, 25, 25, 25, 25, 25, 27, 27, 27, 27,
		27, 27, 27, 27, 29, 29, 29, 29, 29, 29, 29, 31, 31, 31, 31, 31,
		31, 33, 33, 33, 33, 33, 36, 36, 36, 36, 38, 38, 38, 40, 40, 42,
	}
	default8x8Inter = [64]byte{
		9, 13, 13, 15, 13, 15, 17, 17, 17, 17, 19, 19, 19, 19, 19, 21,
		21, 21, 21, 21, 21, 22, 22, 22, 22, 22, 22, 22, 24, 24, 24, 24,
		24, 24, 24, 24, 25, 25, 25, 25, 25, 25, 25, 27, 27, 27, 27, 27,
		27, 28, 28, 28, 28, 28, 30, 30, 30, 30, 32, 32, 32, 33, 33, 35,
	}
)

// SPS is a parsed sequence parameter set (spec 7.3.2.1).
type SPS struct {
	ProfileIdc         int
	ConstraintSet0Flag bool
	ConstraintSet1Flag bool
	ConstraintSet2Flag bool
	ConstraintSet3Flag bool
	LevelIdc           int
	SeqParameterSetID  int

	ChromaFormatIdc              int
	SeparateColourPlaneFlag      bool
	BitDepthLumaMinus8           int
	BitDepthChromaMinus8         int
	QpprimeYZeroTransformBypass  bool
	SeqScalingMatrixPresentFlag  bool
	ScalingList4x4               [6][16]byte
	ScalingList8x8               [6][64]byte
	Log2MaxFrameNumMinus4        int
	PicOrderCntType              int
	Log2MaxPicOrderCntLsbMinus4  int
	DeltaPicOrderAlwaysZeroFlag  bool
	OffsetForNonRefPic           int32
	OffsetForTopToBottomField    int32
	NumRefFramesInPicOrderCnt    int
	OffsetForRefFrame            [255]int32
	ExpectedDeltaPerPicOrderCnt  int32
	MaxNumRefFrames              int
	GapsInFrameNumValueAllowed   bool
	PicWidthInMbsMinus1          int
	PicHeightInMapUnitsMinus1    int
	FrameMbsOnlyFlag             bool
	MbAdaptiveFrameFieldFlag     bool
	Direct8x8InferenceFlag       bool
	FrameCroppingFlag            bool
	FrameCropLeftOffset          int
	FrameCropRightOffset         int
	FrameCropTopOffset           int
	FrameCropBottomOffset        int
	VuiParametersPresentFlag     bool
	BitstreamRestrictionFlag     bool
	MaxNumReorderFrames          int
	MaxDecFrameBuffering         int
}

// parseScalingList reads one scaling_list() (spec 7.3.2.1.1.1). It
// returns useDefault when the stream asked for the default matrix.
func parseScalingList(br *bitReader, out []byte) (useDefault bool, err error) {
	lastScale := int32(8)
	nextScale := int32(8)

	for i := range out {
		if nextScale != 0 {
			delta, err := br.se()
			if err != nil {
				return false, err
			}
			nextScale = (lastScale + delta + 256) % 256
			if i == 0 && nextScale == 0 {
				return true, nil
			}
		}
		if nextScale == 0 {
			out[i] = byte(lastScale)
		} else {
			out[i] = byte(nextScale)
			lastScale = nextScale
		}
	}
	return false, nil
}

// parseSPSScalingLists fills the SPS matrices applying fall-back rule A
// (spec table 7-2).
func parseSPSScalingLists(br *bitReader, sps *SPS, count int) error {
	for i := 0; i < count; i++ {
		present, err := br.flag()
		if err != nil {
			return err
		}

		if i < 6 {
			list := sps.ScalingList4x4[i][:]
			if !present {
				// Rule A: defaults for 0 and 3, otherwise the previous list.
				switch i {
				case 0:
					copy(list, default4x4Intra[:])
				case 3:
					copy(list, default4x4Inter[:])
				default:
					copy(list, sps.ScalingList4x4[i-1][:])
				}
				continue
			}
			useDefault, err := parseScalingList(br, list)
			if err != nil {
				return err
			}
			if useDefault {
				if i < 3 {
					copy(list, default4x4Intra[:])
				} else {
					copy(list, default4x4Inter[:])
				}
			}
			continue
		}

		j := i - 6
		list := sps.ScalingList8x8[j][:]
		if !present {
			switch j {
			case 0:
				copy(list, default8x8Intra[:])
			case 1:
				copy(list, default8x8Inter[:])
			default:
				copy(list, sps.ScalingList8x8[j-2][:])
			}
			continue
		}
		useDefault, err := parseScalingList(br, list)
		if err != nil {
			return err
		}
		if useDefault {
			if j%2 == 0 {
				copy(list, default8x8Intra[:])
			} else {
				copy(list, default8x8Inter[:])
			}
		}
	}
	return nil
}

func flatScalingLists(sps *SPS) {
	for i := range sps.ScalingList4x4 {
		for j := range sps.ScalingList4x4[i] {
			sps.ScalingList4x4[i][j] = 16
		}
	}
	for i := range sps.ScalingList8x8 {
		for j := range sps.ScalingList8x8[i] {
			sps.ScalingList8x8[i][j] = 16
		}
	}
}

func parseSPSData(rbsp []byte) (*SPS, error) {
	br := newBitReader(rbsp)
	sps := &SPS{}

	profile, err := br.u(8)
	if err != nil {
		return nil, err
	}
	sps.ProfileIdc = int(profile)

	cs, err := br.u(8)
	if err != nil {
		return nil, err
	}
	sps.ConstraintSet0Flag = cs&0x80 != 0
	sps.ConstraintSet1Flag = cs&0x40 != 0
	sps.ConstraintSet2Flag = cs&0x20 != 0
	sps.ConstraintSet3Flag = cs&0x10 != 0

	level, err := br.u(8)
	if err != nil {
		return nil, err
	}
	sps.LevelIdc = int(level)

	id, err := br.ue()
	if err != nil {
		return nil, err
	}
	if id > 31 {
		return nil, errs.New(errs.CodeInvalidStream, "seq_parameter_set_id out of range")
	}
	sps.SeqParameterSetID = int(id)

	sps.ChromaFormatIdc = 1
	switch sps.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128:
		chroma, err := br.ue()
		if err != nil {
			return nil, err
		}
		sps.ChromaFormatIdc = int(chroma)
		if sps.ChromaFormatIdc == 3 {
			if sps.SeparateColourPlaneFlag, err = br.flag(); err != nil {
				return nil, err
			}
		}
		bdl, err := br.ue()
		if err != nil {
			return nil, err
		}
		sps.BitDepthLumaMinus8 = int(bdl)
		bdc, err := br.ue()
		if err != nil {
			return nil, err
		}
		sps.BitDepthChromaMinus8 = int(bdc)
		if sps.QpprimeYZeroTransformBypass, err = br.flag(); err != nil {
			return nil, err
		}
		if sps.SeqScalingMatrixPresentFlag, err = br.flag(); err != nil {
			return nil, err
		}
		if sps.SeqScalingMatrixPresentFlag {
			count := 8
			if sps.ChromaFormatIdc == 3 {
				count = 12
			}
			if count > 8 {
				// 4:4:4 would need 6 8x8 lists; the HW path only carries 2.
				return nil, errs.New(errs.CodeUnsupportedStream, "chroma_format_idc 3 not supported")
			}
			if err := parseSPSScalingLists(br, sps, count); err != nil {
				return nil, err
			}
		} else {
			flatScalingLists(sps)
		}
	default:
		flatScalingLists(sps)
	}

	l2fn, err := br.ue()
	if err != nil {
		return nil, err
	}
	if l2fn > 12 {
		return nil, errs.New(errs.CodeInvalidStream, "log2_max_frame_num_minus4 out of range")
	}
	sps.Log2MaxFrameNumMinus4 = int(l2fn)

	poct, err := br.ue()
	if err != nil {
		return nil, err
	}
	sps.PicOrderCntType = int(poct)

	switch sps.PicOrderCntType {
	case 0:
		l2poc, err := br.ue()
		if err != nil {
			return nil, err
		}
		if l2poc > 12 {
			return nil, errs.New(errs.CodeInvalidStream, "log2_max_pic_order_cnt_lsb_minus4 out of range")
		}
		sps.Log2MaxPicOrderCntLsbMinus4 = int(l2poc)
	case 1:
		if sps.DeltaPicOrderAlwaysZeroFlag, err = br.flag(); err != nil {
			return nil, err
		}
		if sps.OffsetForNonRefPic, err = br.se(); err != nil {
			return nil, err
		}
		if sps.OffsetForTopToBottomField, err = br.se(); err != nil {
			return nil, err
		}
		n, err := br.ue()
		if err != nil {
			return nil, err
		}
		if n > 254 {
			return nil, errs.New(errs.CodeInvalidStream, "num_ref_frames_in_pic_order_cnt_cycle out of range")
		}
		sps.NumRefFramesInPicOrderCnt = int(n)
		for i := 0; i < sps.NumRefFramesInPicOrderCnt; i++ {
			if sps.OffsetForRefFrame[i], err = br.se(); err != nil {
				return nil, err
			}
			sps.ExpectedDeltaPerPicOrderCnt += sps.OffsetForRefFrame[i]
		}
	case 2:
		// Nothing to parse.
	default:
		return nil, errs.New(errs.CodeInvalidStream, "invalid pic_order_cnt_type")
	}

	mrf, err := br.ue()
	if err != nil {
		return nil, err
	}
	sps.MaxNumRefFrames = int(mrf)

	if sps.GapsInFrameNumValueAllowed, err = br.flag(); err != nil {
		return nil, err
	}

	w, err := br.ue()
	if err != nil {
		return nil, err
	}
	sps.PicWidthInMbsMinus1 = int(w)
	h, err := br.ue()
	if err != nil {
		return nil, err
	}
	sps.PicHeightInMapUnitsMinus1 = int(h)

	if sps.FrameMbsOnlyFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if !sps.FrameMbsOnlyFlag {
		if sps.MbAdaptiveFrameFieldFlag, err = br.flag(); err != nil {
			return nil, err
		}
	}
	if sps.Direct8x8InferenceFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if sps.FrameCroppingFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if sps.FrameCroppingFlag {
		vals := []*int{
			&sps.FrameCropLeftOffset, &sps.FrameCropRightOffset,
			&sps.FrameCropTopOffset, &sps.FrameCropBottomOffset,
		}
		for _, v := range vals {
			c, err := br.ue()
			if err != nil {
				return nil, err
			}
			*v = int(c)
		}
	}

	if sps.VuiParametersPresentFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if sps.VuiParametersPresentFlag {
		if err := parseVUI(br, sps); err != nil {
			return nil, err
		}
	}

	return sps, nil
}

// parseVUI extracts the subset of vui_parameters() (spec E.1.1) the
// decoder consumes: the bitstream restriction block, in particular
// max_num_reorder_frames. Everything else is skipped field by field.
func parseVUI(br *bitReader, sps *SPS) error {
	aspectPresent, err := br.flag()
	if err != nil {
		return err
	}
	if aspectPresent {
		idc, err := br.u(8)
		if err != nil {
			return err
		}
		const extendedSAR = 255
		if idc == extendedSAR {
			if _, err := br.u(32); err != nil { // sar_width + sar_height
				return err
			}
		}
	}

	overscanPresent, err := br.flag()
	if err != nil {
		return err
	}
	if overscanPresent {
		if _, err := br.flag(); err != nil {
			return err
		}
	}

	videoSignalPresent, err := br.flag()
	if err != nil {
		return err
	}
	if videoSignalPresent {
		if _, err := br.u(4); err != nil { // format + full_range
			return err
		}
		colourPresent, err := br.flag()
		if err != nil {
			return err
		}
		if colourPresent {
			if _, err := br.u(24); err != nil {
				return err
			}
		}
	}

	chromaLocPresent, err := br.flag()
	if err != nil {
		return err
	}
	if chromaLocPresent {
		if _, err := br.ue(); err != nil {
			return err
		}
		if _, err := br.ue(); err != nil {
			return err
		}
	}

	timingPresent, err := br.flag()
	if err != nil {
		return err
	}
	if timingPresent {
		if _, err := br.u(32); err != nil {
			return err
		}
		if _, err := br.u(32); err != nil {
			return err
		}
		if _, err := br.flag(); err != nil {
			return err
		}
	}

	skipHRD := func() error {
		cnt, err := br.ue()
		if err != nil {
			return err
		}
		if _, err := br.u(8); err != nil { // bit_rate_scale + cpb_size_scale
			return err
		}
		for i := uint32(0); i <= cnt; i++ {
			if _, err := br.ue(); err != nil {
				return err
			}
			if _, err := br.ue(); err != nil {
				return err
			}
			if _, err := br.flag(); err != nil {
				return err
			}
		}
		_, err = br.u(20) // initial_cpb_removal_delay_length .. time_offset_length
		return err
	}

	nalHRD, err := br.flag()
	if err != nil {
		return err
	}
	if nalHRD {
		if err := skipHRD(); err != nil {
			return err
		}
	}
	vclHRD, err := br.flag()
	if err != nil {
		return err
	}
	if vclHRD {
		if err := skipHRD(); err != nil {
			return err
		}
	}
	if nalHRD || vclHRD {
		if _, err := br.flag(); err != nil { // low_delay_hrd_flag
			return err
		}
	}
	if _, err := br.flag(); err != nil { // pic_struct_present_flag
		return err
	}

	if sps.BitstreamRestrictionFlag, err = br.flag(); err != nil {
		return err
	}
	if !sps.BitstreamRestrictionFlag {
		return nil
	}

	if _, err := br.flag(); err != nil { // motion_vectors_over_pic_boundaries_flag
		return err
	}
	for i := 0; i < 4; i++ { // max_bytes.., max_bits.., log2 mv ranges
		if _, err := br.ue(); err != nil {
			return err
		}
	}
	reorder, err := br.ue()
	if err != nil {
		return err
	}
	sps.MaxNumReorderFrames = int(reorder)
	dfb, err := br.ue()
	if err != nil {
		return err
	}
	sps.MaxDecFrameBuffering = int(dfb)
	return nil
}

// MaxFrameNum returns 2^(log2_max_frame_num_minus4+4).
func (s *SPS) MaxFrameNum() int32 {
	return 1 << uint(s.Log2MaxFrameNumMinus4+4)
}

// MaxPicOrderCntLsb returns 2^(log2_max_pic_order_cnt_lsb_minus4+4).
func (s *SPS) MaxPicOrderCntLsb() int32 {
	return 1 << uint(s.Log2MaxPicOrderCntLsbMinus4+4)
}

// levelToMaxDpbMbs maps level_idc to MaxDpbMbs (spec table A-1).
func levelToMaxDpbMbs(level int) int {
	switch level {
	case 10:
		return 396
	case 11:
		return 900
	case 12, 13, 20:
		return 2376
	case 21:
		return 4752
	case 22, 30:
		return 8100
	case 31:
		return 18000
	case 32:
		return 20480
	case 40, 41:
		return 32768
	case 42:
		return 34816
	case 50:
		return 110400
	case 51, 52:
		return 184320
	default:
		return 0
	}
}
