package h264

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/hwdec/common/errs"
)

// refListDecoder populates a DPB with the given reference pictures and
// stages a current picture, ready for list construction.
func refListDecoder(t *testing.T, curr *Picture, refs ...*Picture) *Decoder {
	t.Helper()
	d, _ := newTestDecoder(t, testSPS(), 8)
	for _, ref := range refs {
		ref.Ref = true
		require.Nil(t, d.dpb.Store(ref))
	}
	d.currPic = curr
	d.frameNum = curr.FrameNum
	d.maxPicNum = d.maxFrameNum
	d.updatePicNums()
	return d
}

func picNums(list []*Picture) []int32 {
	out := make([]int32, 0, len(list))
	for _, pic := range list {
		if pic == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, pic.PicNum)
	}
	return out
}

func pocs(list []*Picture) []int32 {
	out := make([]int32, 0, len(list))
	for _, pic := range list {
		if pic == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, pic.PicOrderCnt)
	}
	return out
}

func TestRefListPInitialOrder(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 4, PicNum: 4},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
		&Picture{FrameNum: 3, PicOrderCnt: 6},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
		&Picture{FrameNum: 0, PicOrderCnt: 0, LongTerm: true, LongTermFrameIdx: 0},
	)

	hdr := pSlice(4, 8)
	hdr.NumRefIdxL0ActiveMinus1 = 3
	require.Nil(t, d.prepareRefPicLists(hdr))

	// Short-term refs by descending pic_num, then long-term by
	// ascending long_term_pic_num.
	want := []int32{3, 2, 1, 0}
	if diff := cmp.Diff(want, picNums(d.refPicList0)); diff != "" {
		t.Fatalf("list0 mismatch (-want +got):\n%s", diff)
	}
	require.True(t, d.refPicList0[3].LongTerm)
}

func TestRefListPTruncatesToActive(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 3, PicNum: 3},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
	)

	hdr := pSlice(3, 6)
	hdr.NumRefIdxL0ActiveMinus1 = 0
	require.Nil(t, d.prepareRefPicLists(hdr))
	require.Equal(t, []int32{2}, picNums(d.refPicList0))
}

// Slots requested beyond the constructed list are nil holes.
func TestRefListPHolesBeyondConstructed(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 2, PicNum: 2},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
	)

	hdr := pSlice(2, 4)
	hdr.NumRefIdxL0ActiveMinus1 = 3
	require.Nil(t, d.prepareRefPicLists(hdr))
	require.Equal(t, []int32{1, -1, -1, -1}, picNums(d.refPicList0))
}

func TestRefListBInitialOrder(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 4, PicNum: 4, PicOrderCnt: 6},
		&Picture{FrameNum: 1, PicOrderCnt: 0},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
		&Picture{FrameNum: 3, PicOrderCnt: 8},
		&Picture{FrameNum: 0, PicOrderCnt: 2, LongTerm: true, LongTermFrameIdx: 0},
	)

	hdr := bSlice(4, 6)
	hdr.NumRefIdxL0ActiveMinus1 = 3
	hdr.NumRefIdxL1ActiveMinus1 = 3
	require.Nil(t, d.prepareRefPicLists(hdr))

	// List0: POC-below descending, POC-above ascending, then long-term.
	if diff := cmp.Diff([]int32{4, 0, 8, 2}, pocs(d.refPicList0)); diff != "" {
		t.Fatalf("list0 mismatch (-want +got):\n%s", diff)
	}
	// List1: POC-above ascending, POC-below descending, then long-term.
	if diff := cmp.Diff([]int32{8, 4, 0, 2}, pocs(d.refPicList1)); diff != "" {
		t.Fatalf("list1 mismatch (-want +got):\n%s", diff)
	}
}

// When both initial B lists come out identical, the first two entries of
// list1 are swapped.
func TestRefListBIdenticalListsSwap(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 3, PicNum: 3, PicOrderCnt: 6},
		&Picture{FrameNum: 1, PicOrderCnt: 0},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
	)

	hdr := bSlice(3, 6)
	hdr.NumRefIdxL0ActiveMinus1 = 1
	hdr.NumRefIdxL1ActiveMinus1 = 1
	require.Nil(t, d.prepareRefPicLists(hdr))

	require.Equal(t, []int32{4, 0}, pocs(d.refPicList0))
	require.Equal(t, []int32{0, 4}, pocs(d.refPicList1))
}

// S5: one idc=0 modification moves the targeted short-term ref to the
// front of list0.
func TestRefListModificationShortTerm(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 3, PicNum: 3},
		&Picture{FrameNum: 0, PicOrderCnt: 0},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
	)

	hdr := pSlice(3, 6)
	hdr.NumRefIdxL0ActiveMinus1 = 2
	hdr.RefPicListModificationFlagL0 = true
	hdr.RefListL0Modifications[0] = ModificationOfPicNum{ModificationOfPicNumsIdc: 0, AbsDiffPicNumMinus1: 2}
	hdr.RefListL0Modifications[1] = ModificationOfPicNum{ModificationOfPicNumsIdc: 3}
	require.Nil(t, d.prepareRefPicLists(hdr))

	// pic_num 3-3=0 moves first; the rest keep initial order with the
	// duplicate compacted away.
	require.Equal(t, []int32{0, 2, 1}, picNums(d.refPicList0))
}

// The abs-diff predictor chains across modifications.
func TestRefListModificationPredictorChains(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 3, PicNum: 3},
		&Picture{FrameNum: 0, PicOrderCnt: 0},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
	)

	hdr := pSlice(3, 6)
	hdr.NumRefIdxL0ActiveMinus1 = 2
	hdr.RefPicListModificationFlagL0 = true
	// 3-2=1 first, then predictor 1: 1+1=2 second.
	hdr.RefListL0Modifications[0] = ModificationOfPicNum{ModificationOfPicNumsIdc: 0, AbsDiffPicNumMinus1: 1}
	hdr.RefListL0Modifications[1] = ModificationOfPicNum{ModificationOfPicNumsIdc: 1, AbsDiffPicNumMinus1: 0}
	hdr.RefListL0Modifications[2] = ModificationOfPicNum{ModificationOfPicNumsIdc: 3}
	require.Nil(t, d.prepareRefPicLists(hdr))

	require.Equal(t, []int32{1, 2, 0}, picNums(d.refPicList0))
}

func TestRefListModificationLongTerm(t *testing.T) {
	lt := &Picture{FrameNum: 0, PicOrderCnt: 0, LongTerm: true, LongTermFrameIdx: 0}
	d := refListDecoder(t,
		&Picture{FrameNum: 2, PicNum: 2},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
		lt,
	)

	hdr := pSlice(2, 4)
	hdr.NumRefIdxL0ActiveMinus1 = 1
	hdr.RefPicListModificationFlagL0 = true
	hdr.RefListL0Modifications[0] = ModificationOfPicNum{ModificationOfPicNumsIdc: 2, LongTermPicNum: 0}
	hdr.RefListL0Modifications[1] = ModificationOfPicNum{ModificationOfPicNumsIdc: 3}
	require.Nil(t, d.prepareRefPicLists(hdr))

	require.Equal(t, lt, d.refPicList0[0])
	require.Equal(t, int32(1), d.refPicList0[1].PicNum)
}

func TestRefListModificationMissingPicFails(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 2, PicNum: 2},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
	)

	hdr := pSlice(2, 4)
	hdr.NumRefIdxL0ActiveMinus1 = 0
	hdr.RefPicListModificationFlagL0 = true
	hdr.RefListL0Modifications[0] = ModificationOfPicNum{ModificationOfPicNumsIdc: 0, AbsDiffPicNumMinus1: 7}
	err := d.prepareRefPicLists(hdr)
	require.NotNil(t, err)
	require.Equal(t, int32(errs.CodeInvalidStream), errs.Code(err))
}

// Every entry of a constructed list is a live reference in the DPB.
func TestRefListEntriesAreDPBReferences(t *testing.T) {
	d := refListDecoder(t,
		&Picture{FrameNum: 3, PicNum: 3},
		&Picture{FrameNum: 0, PicOrderCnt: 0},
		&Picture{FrameNum: 1, PicOrderCnt: 2},
		&Picture{FrameNum: 2, PicOrderCnt: 4},
	)

	hdr := pSlice(3, 6)
	hdr.NumRefIdxL0ActiveMinus1 = 2
	require.Nil(t, d.prepareRefPicLists(hdr))

	members := map[*Picture]bool{}
	for _, pic := range d.dpb.Pictures() {
		members[pic] = true
	}
	for _, pic := range d.refPicList0 {
		require.NotNil(t, pic)
		require.True(t, members[pic])
		require.True(t, pic.Ref)
	}
}
