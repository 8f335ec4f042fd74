package h264

import (
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// fillRefPicture describes pic for the hardware. A picture whose surface
// mapping went missing degrades to the neutral descriptor; output will
// corrupt but decode may recover.
func (d *Decoder) fillRefPicture(pic *Picture) RefPicture {
	ds := d.surfaces.byPOC(pic.PicOrderCnt)
	if ds == nil {
		return neutralRefPicture()
	}
	return RefPicture{
		Surface:             ds.surface,
		FrameIdx:            pic.FrameNum,
		TopFieldOrderCnt:    pic.TopFieldOrderCnt,
		BottomFieldOrderCnt: pic.BottomFieldOrderCnt,
		ShortTermRef:        pic.Ref && !pic.LongTerm,
		LongTermRef:         pic.Ref && pic.LongTerm,
	}
}

// fillRefFramesFromDPB fills the per-picture reference array in reverse
// decode order, the order reference hardware implementations expect.
func (d *Decoder) fillRefFramesFromDPB(out *[DpbMaxSize]RefPicture) int {
	for i := range out {
		out[i] = neutralRefPicture()
	}
	pics := d.dpb.Pictures()
	n := 0
	for i := len(pics) - 1; i >= 0 && n < len(out); i-- {
		if pics[i].Ref {
			out[n] = d.fillRefPicture(pics[i])
			n++
		}
	}
	return n
}

// sendPPS submits the per-picture parameter record derived from the
// active SPS and PPS.
func (d *Decoder) sendPPS() error {
	pps := d.parser.PPS(d.currPPSID)
	if pps == nil {
		return errs.New(errs.CodeInvalidStream, "no active PPS")
	}
	sps := d.parser.SPS(pps.SeqParameterSetID)
	if sps == nil {
		return errs.New(errs.CodeInvalidStream, "no active SPS")
	}
	pic := d.currPic

	params := &PictureParams{
		PictureWidthInMbsMinus1: sps.PicWidthInMbsMinus1,
		// Assumes non-interlaced video.
		PictureHeightInMbsMinus1: sps.PicHeightInMapUnitsMinus1,
		BitDepthLumaMinus8:       sps.BitDepthLumaMinus8,
		BitDepthChromaMinus8:     sps.BitDepthChromaMinus8,

		ChromaFormatIdc:            sps.ChromaFormatIdc,
		GapsInFrameNumValueAllowed: sps.GapsInFrameNumValueAllowed,
		FrameMbsOnlyFlag:           sps.FrameMbsOnlyFlag,
		MbAdaptiveFrameFieldFlag:   sps.MbAdaptiveFrameFieldFlag,
		Direct8x8InferenceFlag:     sps.Direct8x8InferenceFlag,
		MinLumaBiPredSize8x8:       sps.LevelIdc >= 31,
		Log2MaxFrameNumMinus4:      sps.Log2MaxFrameNumMinus4,
		PicOrderCntType:            sps.PicOrderCntType,
		Log2MaxPicOrderCntLsb4:     sps.Log2MaxPicOrderCntLsbMinus4,
		DeltaPicOrderAlwaysZero:    sps.DeltaPicOrderAlwaysZeroFlag,

		NumSliceGroupsMinus1:      pps.NumSliceGroupsMinus1,
		PicInitQpMinus26:          pps.PicInitQpMinus26,
		PicInitQsMinus26:          pps.PicInitQsMinus26,
		ChromaQpIndexOffset:       pps.ChromaQpIndexOffset,
		SecondChromaQpIndexOffset: pps.SecondChromaQpIndexOffset,

		EntropyCodingModeFlag:      pps.EntropyCodingModeFlag,
		WeightedPredFlag:           pps.WeightedPredFlag,
		WeightedBipredIdc:          pps.WeightedBipredIdc,
		Transform8x8ModeFlag:       pps.Transform8x8ModeFlag,
		ConstrainedIntraPredFlag:   pps.ConstrainedIntraPredFlag,
		PicOrderPresentFlag:        pps.PicOrderPresentFlag,
		DeblockingFilterControl:    pps.DeblockingFilterControl,
		RedundantPicCntPresentFlag: pps.RedundantPicCntPresentFlag,
		ReferencePicFlag:           pic.Ref,

		FrameNum:     pic.FrameNum,
		CurrPic:      d.fillRefPicture(pic),
		NumRefFrames: sps.MaxNumRefFrames,
	}
	d.fillRefFramesFromDPB(&params.ReferenceFrames)

	if err := d.codec.SubmitPictureParams(params); err != nil {
		return errs.Wrapf(errs.New(errs.CodePlatformFailure, err.Error()), "submit picture params")
	}
	return nil
}

// sendIQMatrix submits the active scaling lists, preferring the PPS
// matrices when present.
func (d *Decoder) sendIQMatrix() error {
	pps := d.parser.PPS(d.currPPSID)
	if pps == nil {
		return errs.New(errs.CodeInvalidStream, "no active PPS")
	}

	var matrix IQMatrix
	src4x4 := &pps.ScalingList4x4
	src8x8 := &pps.ScalingList8x8
	if !pps.PicScalingMatrixPresentFlag {
		sps := d.parser.SPS(pps.SeqParameterSetID)
		if sps == nil {
			return errs.New(errs.CodeInvalidStream, "no active SPS")
		}
		src4x4 = &sps.ScalingList4x4
		src8x8 = &sps.ScalingList8x8
	}
	matrix.ScalingList4x4 = *src4x4
	matrix.ScalingList8x8[0] = src8x8[0]
	matrix.ScalingList8x8[1] = src8x8[1]

	if err := d.codec.SubmitIQMatrix(&matrix); err != nil {
		return errs.Wrapf(errs.New(errs.CodePlatformFailure, err.Error()), "submit IQ matrix")
	}
	return nil
}

// sendSliceParams submits the slice parameter record, including both
// reference lists with nil holes as neutral descriptors.
func (d *Decoder) sendSliceParams(hdr *SliceHeader) error {
	params := &SliceParams{
		SliceDataSize:      len(hdr.NaluData),
		SliceDataBitOffset: hdr.HeaderBitSize,

		FirstMbInSlice:          hdr.FirstMbInSlice,
		SliceType:               hdr.SliceType % 5,
		DirectSpatialMvPredFlag: hdr.DirectSpatialMvPredFlag,
		NumRefIdxL0ActiveMinus1: hdr.NumRefIdxL0ActiveMinus1,
		NumRefIdxL1ActiveMinus1: hdr.NumRefIdxL1ActiveMinus1,
		CabacInitIdc:            hdr.CabacInitIdc,
		SliceQpDelta:            hdr.SliceQpDelta,
		DisableDeblockingIdc:    hdr.DisableDeblockingFilterIdc,
		SliceAlphaC0OffsetDiv2:  hdr.SliceAlphaC0OffsetDiv2,
		SliceBetaOffsetDiv2:     hdr.SliceBetaOffsetDiv2,
	}

	pps := d.parser.PPS(hdr.PicParameterSetID)
	if pps == nil {
		return errs.New(errs.CodeInvalidStream, "no active PPS")
	}

	weighted := ((hdr.IsPSlice() || hdr.IsSPSlice()) && pps.WeightedPredFlag) ||
		(hdr.IsBSlice() && pps.WeightedBipredIdc == 1)
	if weighted {
		params.LumaLog2WeightDenom = hdr.PredWeightTableL0.LumaLog2WeightDenom
		params.ChromaLog2WeightDenom = hdr.PredWeightTableL0.ChromaLog2WeightDenom
		params.LumaWeightL0Flag = hdr.PredWeightTableL0.LumaWeightFlag
		params.ChromaWeightL0Flag = hdr.PredWeightTableL0.ChromaWeightFlag
		for i := 0; i <= hdr.NumRefIdxL0ActiveMinus1; i++ {
			params.LumaWeightL0[i] = hdr.PredWeightTableL0.LumaWeight[i]
			params.LumaOffsetL0[i] = hdr.PredWeightTableL0.LumaOffset[i]
			params.ChromaWeightL0[i] = hdr.PredWeightTableL0.ChromaWeight[i]
			params.ChromaOffsetL0[i] = hdr.PredWeightTableL0.ChromaOffset[i]
		}
		if hdr.IsBSlice() {
			params.LumaWeightL1Flag = hdr.PredWeightTableL1.LumaWeightFlag
			params.ChromaWeightL1Flag = hdr.PredWeightTableL1.ChromaWeightFlag
			for i := 0; i <= hdr.NumRefIdxL1ActiveMinus1; i++ {
				params.LumaWeightL1[i] = hdr.PredWeightTableL1.LumaWeight[i]
				params.LumaOffsetL1[i] = hdr.PredWeightTableL1.LumaOffset[i]
				params.ChromaWeightL1[i] = hdr.PredWeightTableL1.ChromaWeight[i]
				params.ChromaOffsetL1[i] = hdr.PredWeightTableL1.ChromaOffset[i]
			}
		}
	}

	for i := range params.RefPicList0 {
		params.RefPicList0[i] = neutralRefPicture()
		params.RefPicList1[i] = neutralRefPicture()
	}
	for i, pic := range d.refPicList0 {
		if pic == nil {
			continue
		}
		params.RefPicList0[i] = d.fillRefPicture(pic)
	}
	for i, pic := range d.refPicList1 {
		if pic == nil {
			continue
		}
		params.RefPicList1[i] = d.fillRefPicture(pic)
	}

	if err := d.codec.SubmitSliceParams(params); err != nil {
		return errs.Wrapf(errs.New(errs.CodePlatformFailure, err.Error()), "submit slice params")
	}
	return nil
}

// queueSlice prepares reference lists and hands one slice to the codec.
func (d *Decoder) queueSlice(hdr *SliceHeader) error {
	if d.currPic == nil {
		return errs.New(errs.CodeInvalidStream, "slice without a current picture")
	}
	if err := d.prepareRefPicLists(hdr); err != nil {
		return err
	}
	if err := d.sendSliceParams(hdr); err != nil {
		return err
	}
	if err := d.codec.SubmitSliceData(hdr.NaluData); err != nil {
		return errs.Wrapf(errs.New(errs.CodePlatformFailure, err.Error()), "submit slice data")
	}
	return nil
}

// decodePicture commits all queued slices of the current picture and
// runs the hardware decode into its surface. This is the one bounded
// blocking wait per picture.
func (d *Decoder) decodePicture() error {
	ds := d.surfaces.byPOC(d.currPic.PicOrderCnt)
	if ds == nil {
		return errs.New(errs.CodePlatformFailure, "current picture has no surface")
	}
	log.Debug().Int32("poc", d.currPic.PicOrderCnt).Msg("[Decoder] decoding picture")
	if err := d.codec.ExecuteForSurface(ds.surface); err != nil {
		return errs.Wrapf(errs.New(errs.CodePlatformFailure, err.Error()), "execute decode")
	}
	return nil
}
