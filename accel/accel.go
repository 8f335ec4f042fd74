// Package accel is the asynchronous decode pipeline: a client-facing
// API whose work is executed by a dedicated decoder goroutine owning the
// H.264 scheduling core, with callbacks dispatched on their own
// goroutine so neither side ever blocks the other.
package accel

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/hwdec/media/h264"
	"github.com/bugVanisher/hwdec/statistics"
)

// BitstreamBuffer is one chunk of Annex-B input. The ID is echoed back
// in NotifyEndOfBitstreamBuffer and in every picture decoded from it.
type BitstreamBuffer struct {
	ID   int32
	Data []byte
}

// PictureBuffer is a client-provided output slot; its ID doubles as the
// hardware surface handle.
type PictureBuffer struct {
	ID int32
}

// Client receives pipeline callbacks. All methods run on the dispatch
// goroutine, never on the decoder goroutine.
type Client interface {
	ProvidePictureBuffers(count int, size h264.PicSize)
	PictureReady(pictureID, bitstreamID int32, size h264.PicSize)
	NotifyEndOfBitstreamBuffer(bitstreamID int32)
	NotifyFlushDone()
	NotifyResetDone()
	NotifyError(err error)
}

// Config is fixed for the lifetime of the pipeline.
type Config struct {
	// Extra surfaces beyond the DPB so decode can run ahead of display.
	// Values below 2 are raised to the default.
	PipelineMargin int
}

const defaultPipelineMargin = 6

// Accelerator is the public decoder surface. Entry points enqueue work
// for the decoder goroutine and return immediately.
type Accelerator struct {
	client Client
	codec  h264.Codec
	cfg    Config

	tasks  *taskQueue
	events *eventQueue
	stats  *statistics.Pipeline

	lock        sync.Mutex
	initialized bool
	destroyed   bool
}

// New wires the pipeline to its codec driver and client.
func New(codec h264.Codec, client Client) *Accelerator {
	return &Accelerator{
		client: client,
		codec:  codec,
		tasks:  newTaskQueue(),
		events: newEventQueue(),
		stats:  statistics.NewPipeline(),
	}
}

// Initialize validates the config and starts the decoder and dispatch
// goroutines. It must be called exactly once, before any other entry
// point.
func (a *Accelerator) Initialize(cfg Config) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.initialized || a.destroyed {
		return false
	}
	if cfg.PipelineMargin < 2 {
		cfg.PipelineMargin = defaultPipelineMargin
	}
	a.cfg = cfg
	a.initialized = true

	go a.dispatchLoop()
	go a.decodeLoop()

	log.Info().Int("pipeline_margin", cfg.PipelineMargin).Msg("[Accel] initialized")
	return true
}

// Decode queues one bitstream buffer.
func (a *Accelerator) Decode(buffer BitstreamBuffer) {
	if !a.running() {
		return
	}
	a.tasks.Push(task{typ: taskDecode, buffer: buffer})
}

// AssignPictureBuffers hands the decoder its output surface set, in
// response to ProvidePictureBuffers.
func (a *Accelerator) AssignPictureBuffers(pictures []PictureBuffer) {
	if !a.running() {
		return
	}
	a.tasks.Push(task{typ: taskAssignBuffers, pictures: pictures})
}

// ReusePictureBuffer returns one picture buffer after the client is done
// displaying it.
func (a *Accelerator) ReusePictureBuffer(pictureID int32) {
	if !a.running() {
		return
	}
	a.tasks.Push(task{typ: taskReusePicture, pictureID: pictureID})
}

// Flush decodes everything queued, emits all pending pictures and then
// calls NotifyFlushDone.
func (a *Accelerator) Flush() {
	if !a.running() {
		return
	}
	a.tasks.Push(task{typ: taskDrain, drain: DrainFlush})
}

// Reset drops all queued and in-flight work without emitting pictures,
// then calls NotifyResetDone. Assigned surfaces become reusable.
func (a *Accelerator) Reset() {
	if !a.running() {
		return
	}
	a.tasks.Push(task{typ: taskDrain, drain: DrainReset})
}

// Destroy tears the pipeline down. No callbacks run afterwards. The
// decoder goroutine releases the codec and is abandoned if the codec
// never returns.
func (a *Accelerator) Destroy() {
	a.lock.Lock()
	if a.destroyed {
		a.lock.Unlock()
		return
	}
	a.destroyed = true
	started := a.initialized
	a.lock.Unlock()

	if !started {
		return
	}
	// Stop callbacks first: nothing may reach the client after Destroy.
	a.events.Close()
	a.tasks.Push(task{typ: taskDrain, drain: DrainDestroy})
}

// Stats returns a snapshot of the pipeline counters.
func (a *Accelerator) Stats() statistics.PipelineStat {
	return a.stats.Snapshot()
}

func (a *Accelerator) running() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.initialized || a.destroyed {
		log.Warn().Msg("[Accel] entry point ignored, pipeline not running")
		return false
	}
	return true
}

// dispatchLoop delivers callbacks on the client context.
func (a *Accelerator) dispatchLoop() {
	for {
		f, ok := a.events.Pop()
		if !ok {
			return
		}
		f()
	}
}
