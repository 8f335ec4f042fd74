package h264

// Field identifies which field of an interlaced frame a picture carries.
// The decoder only accepts FieldNone; the other values exist so that
// signalled interlaced content can be rejected with a typed error.
type Field int

const (
	FieldNone Field = iota
	FieldTop
	FieldBottom
)

// Picture is a decoded picture in the H.264 spec sense (always a full
// frame here). Values are calculated per ITU-T H.264 §8.2 or taken from
// the slice header. It is owned by the DPB once stored, or transiently by
// the decoder while it is the current picture.
type Picture struct {
	TopFieldOrderCnt    int32
	BottomFieldOrderCnt int32
	PicOrderCnt         int32
	PicOrderCntMsb      int32
	PicOrderCntLsb      int32

	PicNum           int32
	LongTermPicNum   int32
	FrameNum         int32 // from slice header
	FrameNumOffset   int32
	FrameNumWrap     int32
	LongTermFrameIdx int32

	IDR       bool
	Ref       bool
	LongTerm  bool
	Outputted bool
	// Memory management op 5 must take effect after this picture
	// finishes decoding.
	MemMgmt5 bool

	Field Field

	// Bitstream buffer the picture was decoded from; echoed on output
	// and used as the tie breaker when POCs collide in the reorder set.
	BitstreamID int32

	// Carried from the slice header for reference marking after this
	// picture finishes.
	LongTermReferenceFlag         bool
	AdaptiveRefPicMarkingModeFlag bool
	RefPicMarking                 [RefListSize]DecRefPicMarking
}

// Ordering predicates over pictures. These are the three total orders the
// reference-list builder and the output scheduler are defined in terms of.

// POCAsc orders pictures by ascending pic_order_cnt, breaking ties by
// bitstream id to keep output stable in decode order.
func POCAsc(a, b *Picture) bool {
	if a.PicOrderCnt != b.PicOrderCnt {
		return a.PicOrderCnt < b.PicOrderCnt
	}
	return a.BitstreamID < b.BitstreamID
}

// POCDesc orders pictures by descending pic_order_cnt.
func POCDesc(a, b *Picture) bool {
	if a.PicOrderCnt != b.PicOrderCnt {
		return a.PicOrderCnt > b.PicOrderCnt
	}
	return a.BitstreamID > b.BitstreamID
}

// PicNumDesc orders pictures by descending pic_num.
func PicNumDesc(a, b *Picture) bool {
	return a.PicNum > b.PicNum
}

// LongTermPicNumAsc orders pictures by ascending long_term_pic_num.
func LongTermPicNumAsc(a, b *Picture) bool {
	return a.LongTermPicNum < b.LongTermPicNum
}
