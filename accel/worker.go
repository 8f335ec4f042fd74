package accel

import (
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/common/errs"
	"github.com/bugVanisher/hwdec/media/h264"
)

// decodeLoop is the decoder goroutine. It owns the scheduling core and
// all of its state; nothing here is touched from any other goroutine.
func (a *Accelerator) decodeLoop() {
	w := &worker{a: a}
	w.dec = h264.NewDecoder(a.codec, w.onPictureOutput)

	for {
		t, ok := a.tasks.Pop()
		if !ok {
			return
		}
		if !w.handle(t) {
			a.tasks.Close()
			return
		}
	}
}

// worker is the decoder-goroutine state around the core: queued inputs,
// pending drains and the conditions currently parking the decode loop.
type worker struct {
	a   *Accelerator
	dec *h264.Decoder

	pending []BitstreamBuffer
	curr    *BitstreamBuffer
	drains  []DrainReason

	waitingSurfaces bool
	waitingBuffers  bool
	errored         bool
}

// handle processes one task, then pumps the decode loop. It returns
// false when the pipeline is being destroyed.
func (w *worker) handle(t task) bool {
	switch t.typ {
	case taskDecode:
		if w.errored {
			// The buffer still belongs to the client; give it back.
			w.notifyEndOfBitstreamBuffer(t.buffer.ID)
			return true
		}
		if len(t.buffer.Data) == 0 {
			w.onError(errs.New(errs.CodeInvalidArgument, "empty bitstream buffer"))
			return true
		}
		w.pending = append(w.pending, t.buffer)
		w.a.stats.AddBitstreamBuffer()

	case taskAssignBuffers:
		ids := make([]h264.SurfaceID, 0, len(t.pictures))
		for _, pb := range t.pictures {
			if pb.ID < 0 {
				w.onError(errs.New(errs.CodeInvalidArgument, "negative picture buffer id"))
				return true
			}
			ids = append(ids, h264.SurfaceID(pb.ID))
		}
		w.dec.AssignSurfaces(ids)
		w.waitingBuffers = false
		w.waitingSurfaces = false

	case taskReusePicture:
		w.dec.ReuseSurface(h264.SurfaceID(t.pictureID))
		w.waitingSurfaces = false

	case taskDrain:
		if t.drain == DrainReset || t.drain == DrainDestroy {
			// Reset preempts pending submissions; queued buffers are
			// returned unprocessed.
			w.dropPendingInputs()
		}
		w.drains = append(w.drains, t.drain)
	}

	return w.pump()
}

// pump makes as much progress as the parked conditions allow: decode
// queued inputs first, then complete queued drains.
func (w *worker) pump() bool {
	for !w.errored && !w.waitingBuffers && !w.waitingSurfaces {
		if w.curr == nil {
			if len(w.pending) == 0 {
				break
			}
			buf := w.pending[0]
			w.pending = w.pending[1:]
			w.curr = &buf
			w.dec.SetStream(buf.Data, buf.ID)
		}

		switch w.dec.Decode() {
		case h264.ResultRanOutOfStreamData:
			w.notifyEndOfBitstreamBuffer(w.curr.ID)
			w.curr = nil

		case h264.ResultRanOutOfSurfaces:
			w.waitingSurfaces = true

		case h264.ResultAllocateNewSurfaces:
			count := w.dec.DpbCapacity() + w.a.cfg.PipelineMargin
			size := w.dec.PicSize()
			w.waitingBuffers = true
			w.a.events.Push(func() { w.a.client.ProvidePictureBuffers(count, size) })

		case h264.ResultDecodeError:
			w.onError(w.dec.LastError())
			return true
		}
	}

	// Drains only complete once every queued input is consumed (or was
	// dropped by the drain that queued them).
	if w.curr != nil || len(w.pending) > 0 || w.waitingBuffers || w.waitingSurfaces {
		return true
	}

	for len(w.drains) > 0 {
		reason := w.drains[0]
		w.drains = w.drains[1:]

		switch reason {
		case DrainFlush:
			if w.errored {
				continue
			}
			if err := w.dec.Flush(); err != nil {
				w.onError(err)
				continue
			}
			w.a.stats.AddFlush()
			w.a.events.Push(w.a.client.NotifyFlushDone)

		case DrainReset:
			if w.errored {
				continue
			}
			w.dec.Reset()
			if err := w.a.codec.Reset(); err != nil {
				w.onError(errs.New(errs.CodePlatformFailure, err.Error()))
				continue
			}
			w.a.stats.AddReset()
			w.a.events.Push(w.a.client.NotifyResetDone)

		case DrainDestroy:
			w.dec.Reset()
			if err := w.a.codec.Release(); err != nil {
				log.Error().Err(err).Msg("[Accel] codec release failed")
			}
			return false
		}
	}
	return true
}

func (w *worker) dropPendingInputs() {
	if w.curr != nil {
		w.notifyEndOfBitstreamBuffer(w.curr.ID)
		w.curr = nil
	}
	for _, buf := range w.pending {
		w.notifyEndOfBitstreamBuffer(buf.ID)
	}
	w.pending = nil
	w.waitingSurfaces = false
}

func (w *worker) notifyEndOfBitstreamBuffer(id int32) {
	w.a.events.Push(func() { w.a.client.NotifyEndOfBitstreamBuffer(id) })
}

// onPictureOutput runs on the decoder goroutine as the core's output
// callback and forwards the picture to the client context.
func (w *worker) onPictureOutput(bitstreamID int32, surface h264.SurfaceID) {
	size := w.dec.PicSize()
	pictureID := int32(surface)
	w.a.stats.AddPictureEmitted()
	w.a.events.Push(func() { w.a.client.PictureReady(pictureID, bitstreamID, size) })
}

// onError reports a fatal error exactly once, returns all queued
// buffers, and discards queued drains. The worker stays errored from
// then on: later buffers are returned undecoded, Flush and Reset
// requests are dropped, and only Destroy is still carried out.
func (w *worker) onError(err error) {
	if w.errored {
		return
	}
	w.errored = true
	log.Error().Err(err).Msg("[Accel] fatal decode error")
	w.dropPendingInputs()
	w.drains = nil
	w.a.events.Push(func() { w.a.client.NotifyError(err) })
}
