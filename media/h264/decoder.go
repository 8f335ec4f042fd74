package h264

import (
	"io"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
)

// State is the decoder's top-level state.
type State int

const (
	// StateNeedStreamMetadata means no SPS has been seen yet.
	StateNeedStreamMetadata State = iota
	// StateDecoding is the normal running state.
	StateDecoding
	// StateAfterReset means decode may resume at an IDR or SPS.
	StateAfterReset
	// StateError is terminal for the session.
	StateError
)

// DecodeResult is what one Decode call ran into.
type DecodeResult int

const (
	// ResultDecodeError: fatal error, see LastError.
	ResultDecodeError DecodeResult = iota
	// ResultAllocateNewSurfaces: the client must provide a new surface set.
	ResultAllocateNewSurfaces
	// ResultRanOutOfStreamData: the current chunk is fully consumed.
	ResultRanOutOfStreamData
	// ResultRanOutOfSurfaces: decode is parked until a surface returns.
	ResultRanOutOfSurfaces
)

// OutputPicCB notifies the caller that the picture decoded from the given
// bitstream buffer is ready on the given surface, in display order.
type OutputPicCB func(bitstreamID int32, surface SurfaceID)

// Surfaces the decoder wants beyond the DPB so the display side can hold
// a few ready pictures while decode keeps going.
const picsInPipeline = 6

const minPOC = int32(math.MinInt32)

// Decoder turns an Annex-B H.264 elementary stream into an ordered
// sequence of decoded surfaces, driving a hardware Codec. It owns the
// parser, DPB, POC state and reference lists, and must be used from a
// single goroutine.
type Decoder struct {
	state  State
	parser *Parser
	codec  Codec
	dpb    DPB

	currPic *Picture

	// Reference lists built per slice; entries point into the DPB, nil
	// holes mark "not a reference picture" slots.
	refPicList0 []*Picture
	refPicList1 []*Picture

	maxPicOrderCntLsb   int32
	maxFrameNum         int32
	maxPicNum           int32
	maxLongTermFrameIdx int32
	maxNumReorderFrames int

	frameNum           int32
	prevFrameNum       int32
	prevFrameNumOffset int32
	prevHasMemMgmt5    bool

	// Previously decoded reference picture, for POC type 0.
	prevRefHasMemMgmt5      bool
	prevRefTopFieldOrderCnt int32
	prevRefPicOrderCntMsb   int32
	prevRefPicOrderCntLsb   int32
	prevRefField            Field

	currSPSID int
	currPPSID int

	picSize PicSize

	surfaces      *surfacePool
	currInputID   int32
	lastOutputPOC int32

	outputCB OutputPicCB
	err      error
}

// NewDecoder wires the decoder to its codec and output callback.
func NewDecoder(codec Codec, outputCB OutputPicCB) *Decoder {
	d := &Decoder{
		parser:    NewParser(),
		codec:     codec,
		surfaces:  newSurfacePool(),
		outputCB:  outputCB,
		currSPSID: -1,
		currPPSID: -1,
	}
	d.Reset()
	d.state = StateNeedStreamMetadata
	return d
}

// Reset discards all decode state except parsed stream metadata, so that
// playback can resume later, possibly from a different location.
func (d *Decoder) Reset() {
	d.currPic = nil
	d.currInputID = -1
	d.frameNum = 0
	d.prevFrameNum = -1
	d.prevFrameNumOffset = -1
	d.prevHasMemMgmt5 = false

	d.prevRefHasMemMgmt5 = false
	d.prevRefTopFieldOrderCnt = -1
	d.prevRefPicOrderCntMsb = -1
	d.prevRefPicOrderCntLsb = -1
	d.prevRefField = FieldNone

	d.refPicList0 = nil
	d.refPicList1 = nil

	for _, poc := range d.surfaces.pocsInUse() {
		d.surfaces.unassign(poc)
	}

	d.dpb.Clear()
	d.parser.Reset()
	d.lastOutputPOC = minPOC

	// With metadata in hand decode can resume without a fresh SPS.
	if d.state != StateNeedStreamMetadata {
		d.state = StateAfterReset
	}
}

// State returns the current top-level state.
func (d *Decoder) State() State { return d.state }

// LastError returns the error that moved the decoder to StateError.
func (d *Decoder) LastError() error { return d.err }

// PicSize returns the coded size of the current sequence.
func (d *Decoder) PicSize() PicSize { return d.picSize }

// RequiredNumPictures is how many surfaces the client should provide for
// the decoder to make progress.
func (d *Decoder) RequiredNumPictures() int {
	return d.dpb.MaxNumPics() + picsInPipeline
}

// DpbCapacity is the DPB bound of the active sequence, for callers that
// apply their own pipeline margin.
func (d *Decoder) DpbCapacity() int {
	return d.dpb.MaxNumPics()
}

// ReuseSurface returns a surface the client is done displaying.
func (d *Decoder) ReuseSurface(id SurfaceID) {
	d.surfaces.reuse(id)
}

// AssignSurfaces installs a fresh surface set after
// ResultAllocateNewSurfaces.
func (d *Decoder) AssignSurfaces(ids []SurfaceID) {
	d.surfaces.drop()
	for _, id := range ids {
		d.surfaces.reuse(id)
	}
}

// SetStream points the decoder at a new chunk of stream data. Surfaces
// decoded from this chunk are reported with inputID.
func (d *Decoder) SetStream(data []byte, inputID int32) {
	d.parser.SetStream(data)
	d.currInputID = inputID
}

func (d *Decoder) fail(err error) DecodeResult {
	log.Error().Err(err).Msg("[Decoder] error during decode")
	d.state = StateError
	d.err = err
	return ResultDecodeError
}

// Decode consumes the current stream chunk, submitting pictures to the
// codec and emitting finished pictures through the output callback.
// It returns when more data is needed, when it runs out of surfaces,
// when a new surface set is required, or on error.
func (d *Decoder) Decode() DecodeResult {
	if d.state == StateError {
		return ResultDecodeError
	}

	for {
		// Resuming at an IDR decodes that IDR, so an output surface is
		// needed even before the picture is started. While hunting for
		// an SPS nothing is produced and nothing is needed.
		if d.state != StateNeedStreamMetadata && !d.surfaces.hasAvailable() {
			return ResultRanOutOfSurfaces
		}

		nalu, err := d.parser.AdvanceToNextNalu()
		if err == io.EOF {
			return ResultRanOutOfStreamData
		}
		if err != nil {
			return d.fail(err)
		}

		switch nalu.Type {
		case NaluNonIDRSlice:
			// Cannot resume from a non-IDR slice.
			if d.state != StateDecoding {
				break
			}
			if err := d.decodeSlice(nalu); err != nil {
				return d.fail(err)
			}

		case NaluIDRSlice:
			// Without an SPS the IDR cannot be decoded; keep looking.
			if d.state == StateNeedStreamMetadata {
				break
			}
			if err := d.decodeSlice(nalu); err != nil {
				return d.fail(err)
			}

		case NaluSPS:
			if err := d.finishPrevFrameIfPresent(); err != nil {
				return d.fail(err)
			}
			spsID, err := d.parser.ParseSPS(nalu)
			if err != nil {
				return d.fail(err)
			}
			needNewBuffers, err := d.processSPS(spsID)
			if err != nil {
				return d.fail(err)
			}
			d.state = StateDecoding
			if needNewBuffers {
				if err := d.Flush(); err != nil {
					return d.fail(err)
				}
				d.surfaces.drop()
				return ResultAllocateNewSurfaces
			}

		case NaluPPS:
			if d.state != StateDecoding {
				break
			}
			if err := d.finishPrevFrameIfPresent(); err != nil {
				return d.fail(err)
			}
			ppsID, err := d.parser.ParsePPS(nalu)
			if err != nil {
				return d.fail(err)
			}
			d.currPPSID = ppsID

		default:
			log.Debug().Int("type", nalu.Type).Msg("[Decoder] skipping NALU")
		}
	}
}

// decodeSlice parses and processes one slice NAL unit. The surface
// check at the top of the Decode loop guarantees a free surface exists
// by the time a new frame claims one.
func (d *Decoder) decodeSlice(nalu *Nalu) error {
	hdr, err := d.parser.ParseSliceHeader(nalu)
	if err != nil {
		return err
	}
	if err := d.processSlice(hdr); err != nil {
		return err
	}
	d.state = StateDecoding
	return nil
}

// processSPS activates the given SPS, resizing the DPB and reporting
// whether a new surface set is needed.
func (d *Decoder) processSPS(spsID int) (needNewBuffers bool, err error) {
	sps := d.parser.SPS(spsID)
	if sps == nil {
		return false, errs.New(errs.CodeInvalidStream, "SPS not found")
	}
	log.Debug().Int("sps_id", spsID).Msg("[Decoder] processing SPS")

	if !sps.FrameMbsOnlyFlag {
		return false, errs.ErrFrameMbsOnlyNotSet
	}
	if sps.GapsInFrameNumValueAllowed {
		return false, errs.ErrFrameNumGap
	}

	d.currSPSID = sps.SeqParameterSetID

	widthMB := sps.PicWidthInMbsMinus1 + 1
	heightMB := (2 - b2i(sps.FrameMbsOnlyFlag)) * (sps.PicHeightInMapUnitsMinus1 + 1)
	newPicSize := PicSize{Width: 16 * widthMB, Height: 16 * heightMB}
	if newPicSize.IsEmpty() {
		return false, errs.New(errs.CodeInvalidStream, "invalid picture size")
	}

	if !d.picSize.IsEmpty() && newPicSize == d.picSize {
		// Same resolution, the surface set can be kept.
		return false, nil
	}
	d.picSize = newPicSize

	d.maxPicOrderCntLsb = sps.MaxPicOrderCntLsb()
	d.maxFrameNum = sps.MaxFrameNum()

	maxDpbMbs := levelToMaxDpbMbs(sps.LevelIdc)
	if maxDpbMbs == 0 {
		return false, errs.New(errs.CodeInvalidStream, "invalid codec level")
	}
	maxDpbSize := maxDpbMbs / (widthMB * heightMB)
	if maxDpbSize > DpbMaxSize {
		maxDpbSize = DpbMaxSize
	}
	if maxDpbSize == 0 {
		return false, errs.New(errs.CodeInvalidStream, "invalid DPB size")
	}
	log.Info().
		Int("level", sps.LevelIdc).
		Int("dpb_size", maxDpbSize).
		Int("width", newPicSize.Width).
		Int("height", newPicSize.Height).
		Msg("[Decoder] new sequence")

	d.dpb.SetMaxNumPics(maxDpbSize)

	if err := d.updateMaxNumReorderFrames(sps); err != nil {
		return false, err
	}

	return true, nil
}

func (d *Decoder) updateMaxNumReorderFrames(sps *SPS) error {
	if sps.VuiParametersPresentFlag && sps.BitstreamRestrictionFlag {
		if sps.MaxNumReorderFrames > d.dpb.MaxNumPics() {
			d.maxNumReorderFrames = 0
			return errs.New(errs.CodeInvalidStream, "max_num_reorder_frames larger than DPB")
		}
		d.maxNumReorderFrames = sps.MaxNumReorderFrames
		return nil
	}

	// Not signalled; infer from profile and constraints (VUI semantics).
	if sps.ConstraintSet3Flag {
		switch sps.ProfileIdc {
		case 44, 86, 100, 110, 122, 244:
			d.maxNumReorderFrames = 0
		default:
			d.maxNumReorderFrames = d.dpb.MaxNumPics()
		}
	} else {
		d.maxNumReorderFrames = d.dpb.MaxNumPics()
	}
	return nil
}

// processSlice routes one slice: either more data for the current
// picture, or the start of a new frame.
func (d *Decoder) processSlice(hdr *SliceHeader) error {
	d.prevFrameNum = d.frameNum
	d.frameNum = hdr.FrameNum

	if d.prevFrameNum > 0 && d.prevFrameNum < d.frameNum-1 {
		return errs.ErrFrameNumGap
	}

	if hdr.FieldPicFlag {
		d.maxPicNum = 2 * d.maxFrameNum
	} else {
		d.maxPicNum = d.maxFrameNum
	}

	if d.currPic != nil && hdr.FirstMbInSlice != 0 {
		// Another slice of the picture being assembled.
		return d.queueSlice(hdr)
	}

	if err := d.finishPrevFrameIfPresent(); err != nil {
		return err
	}
	return d.startNewFrame(hdr)
}

// startNewFrame begins assembling a new picture from its first slice.
func (d *Decoder) startNewFrame(hdr *SliceHeader) error {
	if hdr.IdrPicFlag {
		if !hdr.NoOutputOfPriorPicsFlag {
			if err := d.Flush(); err != nil {
				return err
			}
		}
		// Anything still in the DPB is discarded; surfaces the client
		// never saw return to the pool.
		d.clearDPB()
	}

	d.currPic = &Picture{}
	if err := d.initCurrPicture(hdr); err != nil {
		d.currPic = nil
		return err
	}

	d.updatePicNums()

	if err := d.sendPPS(); err != nil {
		return err
	}
	if err := d.sendIQMatrix(); err != nil {
		return err
	}
	return d.queueSlice(hdr)
}

// initCurrPicture fills the current picture from the slice header,
// computes its POC and claims a decode surface for it.
func (d *Decoder) initCurrPicture(hdr *SliceHeader) error {
	pic := d.currPic

	pic.IDR = hdr.IdrPicFlag
	if hdr.FieldPicFlag {
		// Frame-only decode; fields are rejected before any state below
		// could be touched.
		return errs.ErrInterlacedNotSupported
	}
	pic.Field = FieldNone

	pic.Ref = hdr.NalRefIdc != 0
	pic.FrameNum = hdr.FrameNum
	pic.PicNum = hdr.FrameNum
	pic.BitstreamID = d.currInputID

	sps := d.parser.SPS(d.currSPSID)
	if sps == nil {
		return errs.New(errs.CodeInvalidStream, "no active SPS")
	}
	if err := d.calculatePicOrderCounts(sps, hdr); err != nil {
		return err
	}

	if err := d.surfaces.assign(d.currInputID, pic.PicOrderCnt); err != nil {
		return err
	}

	pic.LongTermReferenceFlag = hdr.LongTermReferenceFlag
	pic.AdaptiveRefPicMarkingModeFlag = hdr.AdaptiveRefPicMarkingModeFlag
	if hdr.AdaptiveRefPicMarkingModeFlag {
		pic.RefPicMarking = hdr.RefPicMarking
	}

	return nil
}

// updatePicNums refreshes PicNum/LongTermPicNum/FrameNumWrap of every
// reference picture in the DPB for the current frame_num (spec 8.2.4.1).
func (d *Decoder) updatePicNums() {
	for _, pic := range d.dpb.Pictures() {
		if !pic.Ref {
			continue
		}
		if pic.LongTerm {
			pic.LongTermPicNum = pic.LongTermFrameIdx
		} else {
			if pic.FrameNum > d.frameNum {
				pic.FrameNumWrap = pic.FrameNum - d.maxFrameNum
			} else {
				pic.FrameNumWrap = pic.FrameNum
			}
			pic.PicNum = pic.FrameNumWrap
		}
	}
}

// finishPrevFrameIfPresent runs the pending hardware decode and
// finalizes the frame being assembled, if any.
func (d *Decoder) finishPrevFrameIfPresent() error {
	if d.currPic == nil {
		return nil
	}
	if err := d.decodePicture(); err != nil {
		return err
	}
	return d.finishPicture()
}

// finishPicture performs everything that happens when a picture is done
// decoding: reference marking, POC carry-over, output scheduling, and
// handing the picture to the DPB if it is still needed.
func (d *Decoder) finishPicture() error {
	pic := d.currPic
	d.currPic = nil

	if pic.Ref {
		if err := d.referencePictureMarking(pic); err != nil {
			return err
		}
		d.prevRefHasMemMgmt5 = pic.MemMgmt5
		d.prevRefTopFieldOrderCnt = pic.TopFieldOrderCnt
		d.prevRefPicOrderCntMsb = pic.PicOrderCntMsb
		d.prevRefPicOrderCntLsb = pic.PicOrderCntLsb
		d.prevRefField = pic.Field
	}
	d.prevHasMemMgmt5 = pic.MemMgmt5
	d.prevFrameNumOffset = pic.FrameNumOffset

	// Drop pictures that were output and lost their reference status.
	for _, p := range d.dpb.Pictures() {
		if p.Outputted && !p.Ref {
			d.surfaces.unassign(p.PicOrderCnt)
		}
	}
	d.dpb.DeleteUnused()

	log.Debug().Int("dpb_size", d.dpb.Size()).Msg("[Decoder] finishing picture")

	// A picture can be output once the number of decoded-but-not-output
	// pictures that would remain exceeds the reorder window. Output
	// candidates leave in ascending POC order, bitstream id breaking
	// ties.
	notOutputted := d.dpb.AppendNotOutputted(nil)
	notOutputted = append(notOutputted, pic)
	sort.SliceStable(notOutputted, func(i, j int) bool {
		return POCAsc(notOutputted[i], notOutputted[j])
	})

	remaining := len(notOutputted)
	for _, candidate := range notOutputted {
		if remaining <= d.maxNumReorderFrames {
			break
		}
		if err := d.outputPic(candidate); err != nil {
			return err
		}
		if !candidate.Ref {
			// The current picture is not in the DPB yet; only DPB
			// residents need the POC-keyed delete.
			if candidate != pic {
				if err := d.dpb.DeleteByPOC(candidate.PicOrderCnt); err != nil {
					log.Warn().Err(err).Msg("[Decoder] delete after output")
				}
			}
			d.surfaces.unassign(candidate.PicOrderCnt)
		}
		remaining--
	}

	// Still needed for output or reference: the DPB takes ownership.
	if !pic.Outputted || pic.Ref {
		if err := d.dpb.Store(pic); err != nil {
			// No output freed space, so the stream overcommitted the DPB.
			return err
		}
	}
	return nil
}

// outputPic emits one picture to the client.
func (d *Decoder) outputPic(pic *Picture) error {
	if pic.PicOrderCnt < d.lastOutputPOC {
		return errs.New(errs.CodeInvalidStream, "output order violation")
	}
	pic.Outputted = true
	d.lastOutputPOC = pic.PicOrderCnt

	ds := d.surfaces.byPOC(pic.PicOrderCnt)
	if ds == nil {
		return errs.New(errs.CodePlatformFailure, "output picture has no surface")
	}
	log.Debug().
		Int32("poc", pic.PicOrderCnt).
		Int32("bitstream_id", ds.bitstreamID).
		Msg("[Decoder] output picture")
	d.surfaces.markOutputted(pic.PicOrderCnt)
	d.outputCB(ds.bitstreamID, ds.surface)
	return nil
}

// outputAllRemainingPics drains every not-yet-output picture in
// ascending POC order.
func (d *Decoder) outputAllRemainingPics() error {
	if err := d.finishPrevFrameIfPresent(); err != nil {
		return err
	}
	toOutput := d.dpb.AppendNotOutputted(nil)
	sort.SliceStable(toOutput, func(i, j int) bool {
		return POCAsc(toOutput[i], toOutput[j])
	})
	for _, pic := range toOutput {
		if err := d.outputPic(pic); err != nil {
			return err
		}
	}
	return nil
}

// Flush outputs all previously decoded surfaces and empties the DPB.
func (d *Decoder) Flush() error {
	log.Debug().Msg("[Decoder] flush")
	if err := d.outputAllRemainingPics(); err != nil {
		return err
	}
	d.clearDPB()
	return nil
}

// clearDPB releases surface bindings for everything in the DPB and
// empties it. Pictures already with the client keep their surfaces until
// reuse.
func (d *Decoder) clearDPB() {
	for _, pic := range d.dpb.Pictures() {
		d.surfaces.unassign(pic.PicOrderCnt)
	}
	d.dpb.Clear()
	d.lastOutputPOC = minPOC
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
