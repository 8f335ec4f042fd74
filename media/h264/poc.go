package h264

import (
	"github.com/bugVanisher/hwdec/common/errs"
)

// calculatePicOrderCounts derives top/bottom field order counts and the
// canonical pic_order_cnt for the current picture (spec 8.2.1), using
// the carry-over state of the previous (reference) picture.
func (d *Decoder) calculatePicOrderCounts(sps *SPS, hdr *SliceHeader) error {
	pic := d.currPic
	picOrderCntLsb := hdr.PicOrderCntLsb
	pic.PicOrderCntLsb = picOrderCntLsb

	switch sps.PicOrderCntType {
	case 0:
		// Spec 8.2.1.1.
		var prevPicOrderCntMsb, prevPicOrderCntLsb int32
		if hdr.IdrPicFlag {
			prevPicOrderCntMsb, prevPicOrderCntLsb = 0, 0
		} else if d.prevRefHasMemMgmt5 {
			if d.prevRefField != FieldBottom {
				prevPicOrderCntMsb = 0
				prevPicOrderCntLsb = d.prevRefTopFieldOrderCnt
			} else {
				prevPicOrderCntMsb = 0
				prevPicOrderCntLsb = 0
			}
		} else {
			prevPicOrderCntMsb = d.prevRefPicOrderCntMsb
			prevPicOrderCntLsb = d.prevRefPicOrderCntLsb
		}

		if d.maxPicOrderCntLsb == 0 {
			return errs.New(errs.CodeInvalidStream, "max_pic_order_cnt_lsb not set")
		}
		switch {
		case picOrderCntLsb < prevPicOrderCntLsb &&
			prevPicOrderCntLsb-picOrderCntLsb >= d.maxPicOrderCntLsb/2:
			pic.PicOrderCntMsb = prevPicOrderCntMsb + d.maxPicOrderCntLsb
		case picOrderCntLsb > prevPicOrderCntLsb &&
			picOrderCntLsb-prevPicOrderCntLsb > d.maxPicOrderCntLsb/2:
			pic.PicOrderCntMsb = prevPicOrderCntMsb - d.maxPicOrderCntLsb
		default:
			pic.PicOrderCntMsb = prevPicOrderCntMsb
		}

		if pic.Field != FieldBottom {
			pic.TopFieldOrderCnt = pic.PicOrderCntMsb + picOrderCntLsb
		}
		if pic.Field != FieldTop {
			if !hdr.FieldPicFlag {
				pic.BottomFieldOrderCnt = pic.TopFieldOrderCnt + hdr.DeltaPicOrderCntBottom
			} else {
				pic.BottomFieldOrderCnt = pic.PicOrderCntMsb + picOrderCntLsb
			}
		}

	case 1:
		// Spec 8.2.1.2.
		if d.prevHasMemMgmt5 {
			d.prevFrameNumOffset = 0
		}

		if hdr.IdrPicFlag {
			pic.FrameNumOffset = 0
		} else if d.prevFrameNum > hdr.FrameNum {
			pic.FrameNumOffset = d.prevFrameNumOffset + d.maxFrameNum
		} else {
			pic.FrameNumOffset = d.prevFrameNumOffset
		}

		var absFrameNum int32
		if sps.NumRefFramesInPicOrderCnt != 0 {
			absFrameNum = pic.FrameNumOffset + hdr.FrameNum
		}
		if hdr.NalRefIdc == 0 && absFrameNum > 0 {
			absFrameNum--
		}

		var expectedPicOrderCnt int32
		if absFrameNum > 0 {
			if sps.NumRefFramesInPicOrderCnt == 0 {
				return errs.New(errs.CodeInvalidStream,
					"invalid num_ref_frames_in_pic_order_cnt_cycle in stream")
			}
			cycleCnt := (absFrameNum - 1) / int32(sps.NumRefFramesInPicOrderCnt)
			frameNumInCycle := (absFrameNum - 1) % int32(sps.NumRefFramesInPicOrderCnt)

			expectedPicOrderCnt = cycleCnt * sps.ExpectedDeltaPerPicOrderCnt
			for i := int32(0); i <= frameNumInCycle; i++ {
				expectedPicOrderCnt += sps.OffsetForRefFrame[i]
			}
		}
		if hdr.NalRefIdc == 0 {
			expectedPicOrderCnt += sps.OffsetForNonRefPic
		}

		if !hdr.FieldPicFlag {
			pic.TopFieldOrderCnt = expectedPicOrderCnt + hdr.DeltaPicOrderCnt[0]
			pic.BottomFieldOrderCnt = pic.TopFieldOrderCnt +
				sps.OffsetForTopToBottomField + hdr.DeltaPicOrderCnt[1]
		} else if !hdr.BottomFieldFlag {
			pic.TopFieldOrderCnt = expectedPicOrderCnt + hdr.DeltaPicOrderCnt[0]
		} else {
			pic.BottomFieldOrderCnt = expectedPicOrderCnt +
				sps.OffsetForTopToBottomField + hdr.DeltaPicOrderCnt[0]
		}

	case 2:
		// Spec 8.2.1.3.
		if d.prevHasMemMgmt5 {
			d.prevFrameNumOffset = 0
		}

		if hdr.IdrPicFlag {
			pic.FrameNumOffset = 0
		} else if d.prevFrameNum > hdr.FrameNum {
			pic.FrameNumOffset = d.prevFrameNumOffset + d.maxFrameNum
		} else {
			pic.FrameNumOffset = d.prevFrameNumOffset
		}

		var tempPicOrderCnt int32
		switch {
		case hdr.IdrPicFlag:
			tempPicOrderCnt = 0
		case hdr.NalRefIdc == 0:
			tempPicOrderCnt = 2*(pic.FrameNumOffset+hdr.FrameNum) - 1
		default:
			tempPicOrderCnt = 2 * (pic.FrameNumOffset + hdr.FrameNum)
		}

		if !hdr.FieldPicFlag {
			pic.TopFieldOrderCnt = tempPicOrderCnt
			pic.BottomFieldOrderCnt = tempPicOrderCnt
		} else if hdr.BottomFieldFlag {
			pic.BottomFieldOrderCnt = tempPicOrderCnt
		} else {
			pic.TopFieldOrderCnt = tempPicOrderCnt
		}

	default:
		return errs.New(errs.CodeInvalidStream, "invalid pic_order_cnt_type")
	}

	switch pic.Field {
	case FieldNone:
		if pic.TopFieldOrderCnt < pic.BottomFieldOrderCnt {
			pic.PicOrderCnt = pic.TopFieldOrderCnt
		} else {
			pic.PicOrderCnt = pic.BottomFieldOrderCnt
		}
	case FieldTop:
		pic.PicOrderCnt = pic.TopFieldOrderCnt
	case FieldBottom:
		pic.PicOrderCnt = pic.BottomFieldOrderCnt
	}

	return nil
}
