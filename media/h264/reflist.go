package h264

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// prepareRefPicLists rebuilds ref_pic_list0/1 for the given slice.
func (d *Decoder) prepareRefPicLists(hdr *SliceHeader) error {
	d.refPicList0 = d.refPicList0[:0]
	d.refPicList1 = d.refPicList1[:0]

	if hdr.IsPSlice() || hdr.IsSPSlice() {
		d.constructReferencePicListsP(hdr)
		return d.modifyReferencePicList(hdr, 0)
	}

	if hdr.IsBSlice() {
		d.constructReferencePicListsB(hdr)
		if err := d.modifyReferencePicList(hdr, 0); err != nil {
			return err
		}
		return d.modifyReferencePicList(hdr, 1)
	}

	return nil
}

// resizePicList truncates or pads list to n entries. Per 8.2.4, slots
// the slice requested beyond the constructed length are not reference
// pictures; they stay as nil holes and reach the codec as neutral
// descriptors.
func resizePicList(list []*Picture, n int) []*Picture {
	for len(list) > n {
		list = list[:len(list)-1]
	}
	for len(list) < n {
		list = append(list, nil)
	}
	return list
}

// constructReferencePicListsP builds the initial list0 for P/SP slices
// (spec 8.2.4.2.1): short-term refs by descending pic_num, then
// long-term refs by ascending long_term_pic_num.
func (d *Decoder) constructReferencePicListsP(hdr *SliceHeader) {
	d.refPicList0 = d.dpb.AppendShortTermRefs(d.refPicList0)
	numShortRefs := len(d.refPicList0)
	sort.SliceStable(d.refPicList0, func(i, j int) bool {
		return PicNumDesc(d.refPicList0[i], d.refPicList0[j])
	})

	d.refPicList0 = d.dpb.AppendLongTermRefs(d.refPicList0)
	long := d.refPicList0[numShortRefs:]
	sort.SliceStable(long, func(i, j int) bool {
		return LongTermPicNumAsc(long[i], long[j])
	})

	d.refPicList0 = resizePicList(d.refPicList0, hdr.NumRefIdxL0ActiveMinus1+1)
}

// constructReferencePicListsB builds the initial list0 and list1 for B
// slices (spec 8.2.4.2.3/8.2.4.2.4), partitioning short-term refs around
// the current POC.
func (d *Decoder) constructReferencePicListsB(hdr *SliceHeader) {
	currPOC := d.currPic.PicOrderCnt

	// List0: short refs before the current picture by descending POC,
	// then the ones after by ascending POC, then long-term refs.
	var before, after, long []*Picture
	for _, pic := range d.dpb.Pictures() {
		switch {
		case !pic.Ref:
		case pic.LongTerm:
			long = append(long, pic)
		case pic.PicOrderCnt < currPOC:
			before = append(before, pic)
		default:
			after = append(after, pic)
		}
	}
	sort.SliceStable(before, func(i, j int) bool { return POCDesc(before[i], before[j]) })
	sort.SliceStable(after, func(i, j int) bool { return POCAsc(after[i], after[j]) })
	sort.SliceStable(long, func(i, j int) bool { return LongTermPicNumAsc(long[i], long[j]) })

	d.refPicList0 = append(d.refPicList0, before...)
	d.refPicList0 = append(d.refPicList0, after...)
	d.refPicList0 = append(d.refPicList0, long...)

	// List1: the short-term partitions in the opposite order.
	d.refPicList1 = append(d.refPicList1, after...)
	d.refPicList1 = append(d.refPicList1, before...)
	d.refPicList1 = append(d.refPicList1, long...)

	// If both lists came out identical, swap the first two entries of
	// list1 (spec 8.2.4.2.3).
	if len(d.refPicList1) > 1 && picListsEqual(d.refPicList0, d.refPicList1) {
		d.refPicList1[0], d.refPicList1[1] = d.refPicList1[1], d.refPicList1[0]
	}

	d.refPicList0 = resizePicList(d.refPicList0, hdr.NumRefIdxL0ActiveMinus1+1)
	d.refPicList1 = resizePicList(d.refPicList1, hdr.NumRefIdxL1ActiveMinus1+1)
}

func picListsEqual(a, b []*Picture) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// picNumF implements PicNumF (spec 8.2.4.3): pic_num for short-term
// references, max_pic_num otherwise (including nil holes).
func (d *Decoder) picNumF(pic *Picture) int32 {
	if pic != nil && !pic.LongTerm {
		return pic.PicNum
	}
	return d.maxPicNum
}

// longTermPicNumF implements LongTermPicNumF (spec 8.2.4.3).
func (d *Decoder) longTermPicNumF(pic *Picture) int32 {
	if pic != nil && pic.Ref && pic.LongTerm {
		return pic.LongTermPicNum
	}
	return 2 * (d.maxLongTermFrameIdx + 1)
}

// shiftRightAndInsert moves entries [from, to] one slot right inside a
// working list grown by one, then places pic at from (spec 8.2.4.3
// NOTE 2 idiom).
func shiftRightAndInsert(list []*Picture, from, to int, pic *Picture) []*Picture {
	for len(list) < to+2 {
		list = append(list, nil)
	}
	for i := to + 1; i > from; i-- {
		list[i] = list[i-1]
	}
	list[from] = pic
	return list
}

// modifyReferencePicList applies the slice's reordering commands to
// list 0 or 1 (spec 8.2.4.3).
func (d *Decoder) modifyReferencePicList(hdr *SliceHeader, list int) error {
	var refPicListX []*Picture
	var mods *[RefListModSize]ModificationOfPicNum

	if list == 0 {
		if !hdr.RefPicListModificationFlagL0 {
			return nil
		}
		mods = &hdr.RefListL0Modifications
		refPicListX = d.refPicList0
	} else {
		if !hdr.RefPicListModificationFlagL1 {
			return nil
		}
		mods = &hdr.RefListL1Modifications
		refPicListX = d.refPicList1
	}
	numRefIdxLXActiveMinus1 := len(refPicListX) - 1
	if numRefIdxLXActiveMinus1 < 0 {
		return errs.New(errs.CodeInvalidStream, "modification of empty reference list")
	}

	// Reorder pictures on the list as instructed by the stream. The
	// working list is temporarily one entry longer than the final list.
	picNumLXPred := d.currPic.PicNum
	refIdxLX := 0

	done := false
	for i := 0; i < RefListModSize && !done; i++ {
		mod := &mods[i]
		switch mod.ModificationOfPicNumsIdc {
		case 0, 1:
			var picNumLXNoWrap int32
			if mod.ModificationOfPicNumsIdc == 0 {
				picNumLXNoWrap = picNumLXPred - (mod.AbsDiffPicNumMinus1 + 1)
				if picNumLXNoWrap < 0 {
					picNumLXNoWrap += d.maxPicNum
				}
			} else {
				picNumLXNoWrap = picNumLXPred + (mod.AbsDiffPicNumMinus1 + 1)
				if picNumLXNoWrap >= d.maxPicNum {
					picNumLXNoWrap -= d.maxPicNum
				}
			}
			picNumLXPred = picNumLXNoWrap

			picNumLX := picNumLXNoWrap
			if picNumLXNoWrap > d.currPic.PicNum {
				picNumLX = picNumLXNoWrap - d.maxPicNum
			}

			pic := d.dpb.ShortRefByPicNum(picNumLX)
			if pic == nil {
				return errs.New(errs.CodeInvalidStream, "reordering references missing pic_num")
			}
			refPicListX = shiftRightAndInsert(refPicListX, refIdxLX, numRefIdxLXActiveMinus1, pic)
			refIdxLX++

			dst := refIdxLX
			for src := refIdxLX; src <= numRefIdxLXActiveMinus1+1; src++ {
				if d.picNumF(refPicListX[src]) != picNumLX {
					refPicListX[dst] = refPicListX[src]
					dst++
				}
			}

		case 2:
			pic := d.dpb.LongRefByLongTermPicNum(mod.LongTermPicNum)
			if pic == nil {
				return errs.New(errs.CodeInvalidStream, "reordering references missing long_term_pic_num")
			}
			refPicListX = shiftRightAndInsert(refPicListX, refIdxLX, numRefIdxLXActiveMinus1, pic)
			refIdxLX++

			dst := refIdxLX
			for src := refIdxLX; src <= numRefIdxLXActiveMinus1+1; src++ {
				if d.longTermPicNumF(refPicListX[src]) != mod.LongTermPicNum {
					refPicListX[dst] = refPicListX[src]
					dst++
				}
			}

		case 3:
			done = true

		default:
			// May be recoverable; skip the entry and keep going.
			log.Warn().
				Int("idc", mod.ModificationOfPicNumsIdc).
				Int("position", i).
				Msg("[Decoder] invalid modification_of_pic_nums_idc")
		}
	}

	// Shrink the working list back to the slice's active length.
	refPicListX = resizePicList(refPicListX, numRefIdxLXActiveMinus1+1)

	if list == 0 {
		d.refPicList0 = refPicListX
	} else {
		d.refPicList1 = refPicListX
	}
	return nil
}
