package h264

import (
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// referencePictureMarking keeps the DPB from overflowing and maintains
// long-term reference state after pic finished decoding (spec 8.2.5.1).
func (d *Decoder) referencePictureMarking(pic *Picture) error {
	if pic.IDR {
		// An IDR unmarks every reference picture.
		d.dpb.MarkAllUnusedForRef()

		if pic.LongTermReferenceFlag {
			pic.LongTerm = true
			pic.LongTermFrameIdx = 0
			d.maxLongTermFrameIdx = 0
		} else {
			pic.LongTerm = false
			d.maxLongTermFrameIdx = -1
		}
		return nil
	}

	if pic.Field != FieldNone {
		return errs.ErrInterlacedNotSupported
	}

	if !pic.AdaptiveRefPicMarkingModeFlag {
		// Sliding window (spec 8.2.5.3): once the reference count hits
		// the cap, retire the short-term picture with the lowest
		// frame_num_wrap.
		sps := d.parser.SPS(d.currSPSID)
		if sps == nil {
			return errs.New(errs.CodeInvalidStream, "no active SPS")
		}
		maxRefFrames := sps.MaxNumRefFrames
		if maxRefFrames < 1 {
			maxRefFrames = 1
		}
		if d.dpb.CountRefPics() >= maxRefFrames {
			toUnmark := d.dpb.LowestFrameNumWrapShortRef()
			if toUnmark == nil {
				log.Warn().Msg("[Decoder] no short ref picture to unmark")
				return nil
			}
			toUnmark.Ref = false
		}
		return nil
	}

	// The stream says exactly how to mark/unmark (spec 8.2.5.4).
	return d.handleMemoryManagementOps(pic)
}

// handleMemoryManagementOps executes the MMCO sequence carried on pic.
func (d *Decoder) handleMemoryManagementOps(pic *Picture) error {
	for i := range pic.RefPicMarking {
		op := &pic.RefPicMarking[i]

		switch op.MemoryMgmntControlOperation {
		case 0:
			// End of the operation list.
			return nil

		case 1:
			// Retire a short-term reference so it can be dropped once
			// output.
			picNumX := pic.PicNum - (op.DifferenceOfPicNumsMinus1 + 1)
			toMark := d.dpb.ShortRefByPicNum(picNumX)
			if toMark == nil {
				return errs.New(errs.CodeInvalidStream, "MMCO 1 references missing pic_num")
			}
			toMark.Ref = false

		case 2:
			// Retire a long-term reference.
			toMark := d.dpb.LongRefByLongTermPicNum(op.LongTermPicNum)
			if toMark == nil {
				return errs.New(errs.CodeInvalidStream, "MMCO 2 references missing long_term_pic_num")
			}
			toMark.Ref = false

		case 3:
			// Promote a short-term reference to long-term.
			picNumX := pic.PicNum - (op.DifferenceOfPicNumsMinus1 + 1)
			toMark := d.dpb.ShortRefByPicNum(picNumX)
			if toMark == nil {
				return errs.New(errs.CodeInvalidStream, "MMCO 3 references missing pic_num")
			}
			if !toMark.Ref || toMark.LongTerm {
				return errs.New(errs.CodeInvalidStream, "MMCO 3 target not a short-term reference")
			}
			toMark.LongTerm = true
			toMark.LongTermFrameIdx = op.LongTermFrameIdx

		case 4:
			// Unmark long-term references above the new max index.
			d.maxLongTermFrameIdx = op.MaxLongTermFrameIdxPlus1 - 1
			for _, lt := range d.dpb.AppendLongTermRefs(nil) {
				if lt.LongTermFrameIdx > d.maxLongTermFrameIdx {
					lt.Ref = false
				}
			}

		case 5:
			// Unmark everything; POC state resets at the next picture.
			d.dpb.MarkAllUnusedForRef()
			d.maxLongTermFrameIdx = -1
			pic.MemMgmt5 = true

		case 6:
			// The current picture replaces any long-term reference that
			// already holds the proposed index.
			for _, lt := range d.dpb.AppendLongTermRefs(nil) {
				if lt.LongTermFrameIdx == op.LongTermFrameIdx {
					lt.Ref = false
				}
			}
			pic.Ref = true
			pic.LongTerm = true
			pic.LongTermFrameIdx = op.LongTermFrameIdx

		default:
			// Parser-verified; a stray value changes nothing.
			log.Warn().
				Int("op", op.MemoryMgmntControlOperation).
				Msg("[Decoder] unknown memory_management_control_operation")
		}
	}
	return nil
}
