package h264

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/hwdec/common/errs"
)

// S4: MMCO 1 retires one short-term ref, MMCO 3 promotes another to
// long-term, MMCO 0 terminates.
func TestMarkingMMCO1Then3(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	feed(t, d, 0, idrSlice(0, 0))
	feed(t, d, 1, pSlice(1, 2))

	p := pSlice(2, 4)
	p.AdaptiveRefPicMarkingModeFlag = true
	p.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 1, DifferenceOfPicNumsMinus1: 0}
	p.RefPicMarking[1] = DecRefPicMarking{MemoryMgmntControlOperation: 3, DifferenceOfPicNumsMinus1: 1, LongTermFrameIdx: 0}
	feed(t, d, 2, p)
	require.Nil(t, d.finishPrevFrameIfPresent())

	// pic_num 1 (the middle P) lost its reference status.
	var shortNums []int32
	for _, pic := range d.dpb.AppendShortTermRefs(nil) {
		shortNums = append(shortNums, pic.FrameNum)
	}
	require.Equal(t, []int32{2}, shortNums)

	// pic_num 0 (the IDR) became long-term with index 0.
	longs := d.dpb.AppendLongTermRefs(nil)
	require.Equal(t, 1, len(longs))
	require.Equal(t, int32(0), longs[0].FrameNum)
	require.Equal(t, int32(0), longs[0].LongTermFrameIdx)
}

func TestMarkingMMCO2UnmarksLongTerm(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	idr := idrSlice(0, 0)
	idr.LongTermReferenceFlag = true
	feed(t, d, 0, idr)

	p := pSlice(1, 2)
	p.AdaptiveRefPicMarkingModeFlag = true
	p.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 2, LongTermPicNum: 0}
	feed(t, d, 1, p)
	require.Nil(t, d.finishPrevFrameIfPresent())

	require.Equal(t, 0, len(d.dpb.AppendLongTermRefs(nil)))
}

func TestMarkingMMCO4TrimsLongTermIndices(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	feed(t, d, 0, idrSlice(0, 0))

	// Promote the IDR to long_term_frame_idx 2 via MMCO 3, then shrink
	// the allowed index range below it.
	p1 := pSlice(1, 2)
	p1.AdaptiveRefPicMarkingModeFlag = true
	p1.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 3, DifferenceOfPicNumsMinus1: 0, LongTermFrameIdx: 2}
	feed(t, d, 1, p1)

	p2 := pSlice(2, 4)
	p2.AdaptiveRefPicMarkingModeFlag = true
	p2.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 4, MaxLongTermFrameIdxPlus1: 1}
	feed(t, d, 2, p2)
	require.Nil(t, d.finishPrevFrameIfPresent())

	require.Equal(t, 0, len(d.dpb.AppendLongTermRefs(nil)))
	require.Equal(t, int32(0), d.maxLongTermFrameIdx)
}

func TestMarkingMMCO5ResetsPOCState(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	feed(t, d, 0, idrSlice(0, 0))

	p := pSlice(1, 8)
	p.AdaptiveRefPicMarkingModeFlag = true
	p.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 5}
	feed(t, d, 1, p)
	require.Nil(t, d.finishPrevFrameIfPresent())

	require.Equal(t, int32(-1), d.maxLongTermFrameIdx)
	require.True(t, d.prevRefHasMemMgmt5)
	require.True(t, d.prevHasMemMgmt5)
	require.Equal(t, int32(8), d.prevRefTopFieldOrderCnt)
	// The IDR is no longer a reference; only the MMCO5 picture is.
	require.Equal(t, 1, d.dpb.CountRefPics())
}

// MMCO 6 replaces an existing long-term index with the current picture.
func TestMarkingMMCO6ReplacesIndex(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	idr := idrSlice(0, 0)
	idr.LongTermReferenceFlag = true
	feed(t, d, 0, idr)

	p := pSlice(1, 2)
	p.AdaptiveRefPicMarkingModeFlag = true
	p.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 6, LongTermFrameIdx: 0}
	feed(t, d, 1, p)
	require.Nil(t, d.finishPrevFrameIfPresent())

	longs := d.dpb.AppendLongTermRefs(nil)
	require.Equal(t, 1, len(longs))
	require.Equal(t, int32(1), longs[0].FrameNum)
	require.Equal(t, int32(0), longs[0].LongTermFrameIdx)
}

func TestMarkingMMCOMissingTargetFails(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	feed(t, d, 0, idrSlice(0, 0))

	p := pSlice(1, 2)
	p.AdaptiveRefPicMarkingModeFlag = true
	p.RefPicMarking[0] = DecRefPicMarking{MemoryMgmntControlOperation: 1, DifferenceOfPicNumsMinus1: 5}
	feed(t, d, 1, p)

	err := d.finishPrevFrameIfPresent()
	require.NotNil(t, err)
	require.Equal(t, int32(errs.CodeInvalidStream), errs.Code(err))
}

// The empty MMCO sequence (immediate op 0) leaves DPB flags untouched.
func TestMarkingEmptyMMCOSequence(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	feed(t, d, 0, idrSlice(0, 0))

	p := pSlice(1, 2)
	p.AdaptiveRefPicMarkingModeFlag = true
	feed(t, d, 1, p)
	require.Nil(t, d.finishPrevFrameIfPresent())

	require.Equal(t, 2, d.dpb.CountRefPics())
	require.Equal(t, 0, len(d.dpb.AppendLongTermRefs(nil)))
}

// An IDR with long_term_reference_flag becomes the only long-term ref
// with index 0.
func TestMarkingIDRLongTermReference(t *testing.T) {
	d, _ := newTestDecoder(t, testSPS(), 8)

	idr := idrSlice(0, 0)
	idr.LongTermReferenceFlag = true
	feed(t, d, 0, idr)
	require.Nil(t, d.finishPrevFrameIfPresent())

	longs := d.dpb.AppendLongTermRefs(nil)
	require.Equal(t, 1, len(longs))
	require.Equal(t, int32(0), d.maxLongTermFrameIdx)
}

// S3 boundary: with max_num_ref_frames = 1 the unique short-term ref is
// evicted before the new one is stored.
func TestMarkingSlidingWindowSingleRef(t *testing.T) {
	sps := testSPS(func(s *SPS) { s.MaxNumRefFrames = 1 })
	d, _ := newTestDecoder(t, sps, 8)

	feed(t, d, 0, idrSlice(0, 0))
	feed(t, d, 1, pSlice(1, 2))
	require.Nil(t, d.finishPrevFrameIfPresent())

	refs := d.dpb.AppendShortTermRefs(nil)
	require.Equal(t, 1, len(refs))
	require.Equal(t, int32(1), refs[0].FrameNum)
}
