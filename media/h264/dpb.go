package h264

import (
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// DpbMaxSize is the spec upper bound for frame-only coding. Per H.264,
// increase to 32 if interlaced video is supported.
const DpbMaxSize = 16

// DPB is the Decoded Picture Buffer: decoded pictures retained for future
// display and/or reference, in decode (insertion) order. It is owned
// exclusively by the decoder and never shared across goroutines.
type DPB struct {
	pics       []*Picture
	maxNumPics int
}

// SetMaxNumPics bounds the DPB. Truncation only happens on SPS transition
// at an IDR, after the DPB has been flushed, so dropping the tail is
// benign.
func (d *DPB) SetMaxNumPics(n int) {
	if n > DpbMaxSize {
		n = DpbMaxSize
	}
	d.maxNumPics = n
	if len(d.pics) > n {
		d.pics = d.pics[:n]
	}
}

func (d *DPB) MaxNumPics() int { return d.maxNumPics }

func (d *DPB) Size() int { return len(d.pics) }

func (d *DPB) IsFull() bool { return len(d.pics) >= d.maxNumPics }

// Clear drops all pictures.
func (d *DPB) Clear() {
	d.pics = d.pics[:0]
}

// Store appends pic, which the DPB then owns. Fails with DpbFull when
// there is no room; the caller decides whether that is a stream error.
func (d *DPB) Store(pic *Picture) error {
	if len(d.pics) >= d.maxNumPics {
		return errs.ErrDpbFull
	}
	log.Debug().
		Int32("pic_num", pic.PicNum).
		Bool("ref", pic.Ref).
		Bool("long_term", pic.LongTerm).
		Msg("[Dpb] store picture")
	d.pics = append(d.pics, pic)
	return nil
}

// DeleteByPOC removes exactly the picture with the given pic_order_cnt.
func (d *DPB) DeleteByPOC(poc int32) error {
	for i, pic := range d.pics {
		if pic.PicOrderCnt == poc {
			d.pics = append(d.pics[:i], d.pics[i+1:]...)
			return nil
		}
	}
	return errs.New(errs.CodeInvalidStream, "missing POC in DPB")
}

// DeleteUnused removes all pictures that were output and are no longer
// referenced.
func (d *DPB) DeleteUnused() {
	kept := d.pics[:0]
	for _, pic := range d.pics {
		if pic.Outputted && !pic.Ref {
			continue
		}
		kept = append(kept, pic)
	}
	d.pics = kept
}

// MarkAllUnusedForRef marks every picture as unused for reference.
func (d *DPB) MarkAllUnusedForRef() {
	for _, pic := range d.pics {
		pic.Ref = false
	}
}

// CountRefPics returns the number of reference pictures held.
func (d *DPB) CountRefPics() int {
	n := 0
	for _, pic := range d.pics {
		if pic.Ref {
			n++
		}
	}
	return n
}

// ShortRefByPicNum returns the short-term reference picture with the
// given pic_num, or nil. Absence is diagnostic only.
func (d *DPB) ShortRefByPicNum(picNum int32) *Picture {
	for _, pic := range d.pics {
		if pic.Ref && !pic.LongTerm && pic.PicNum == picNum {
			return pic
		}
	}
	log.Debug().Int32("pic_num", picNum).Msg("[Dpb] missing short ref pic num")
	return nil
}

// LongRefByLongTermPicNum returns the long-term reference picture with
// the given long_term_pic_num, or nil.
func (d *DPB) LongRefByLongTermPicNum(picNum int32) *Picture {
	for _, pic := range d.pics {
		if pic.Ref && pic.LongTerm && pic.LongTermPicNum == picNum {
			return pic
		}
	}
	log.Debug().Int32("long_term_pic_num", picNum).Msg("[Dpb] missing long term pic num")
	return nil
}

// LowestFrameNumWrapShortRef returns the short-term reference picture
// with the lowest frame_num_wrap, used for sliding-window eviction.
func (d *DPB) LowestFrameNumWrapShortRef() *Picture {
	var ret *Picture
	for _, pic := range d.pics {
		if pic.Ref && !pic.LongTerm && (ret == nil || pic.FrameNumWrap < ret.FrameNumWrap) {
			ret = pic
		}
	}
	return ret
}

// AppendNotOutputted appends all pictures not yet output to out.
func (d *DPB) AppendNotOutputted(out []*Picture) []*Picture {
	for _, pic := range d.pics {
		if !pic.Outputted {
			out = append(out, pic)
		}
	}
	return out
}

// AppendShortTermRefs appends all short-term reference pictures to out.
func (d *DPB) AppendShortTermRefs(out []*Picture) []*Picture {
	for _, pic := range d.pics {
		if pic.Ref && !pic.LongTerm {
			out = append(out, pic)
		}
	}
	return out
}

// AppendLongTermRefs appends all long-term reference pictures to out.
func (d *DPB) AppendLongTermRefs(out []*Picture) []*Picture {
	for _, pic := range d.pics {
		if pic.Ref && pic.LongTerm {
			out = append(out, pic)
		}
	}
	return out
}

// Pictures exposes the backing slice in decode order. Callers must not
// hold the slice across Delete*/Store calls.
func (d *DPB) Pictures() []*Picture { return d.pics }
