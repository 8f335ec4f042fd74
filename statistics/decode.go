package statistics

import (
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Rate estimates an events-per-second figure over a one second window.
type Rate struct {
	rate     uint32
	interval time.Duration

	count   int64
	beginTS int64
}

// NewRate creates a Rate with a one second window.
func NewRate() *Rate {
	return &Rate{
		interval: time.Second,
	}
}

// Add records one event.
func (r *Rate) Add() {
	nowTS := time.Now().UnixNano()

	r.count++
	d := nowTS - r.beginTS
	if d >= int64(r.interval) {
		atomic.StoreUint32(&r.rate, uint32(r.count*int64(time.Second)/d))
		r.count = 0
		r.beginTS = nowTS
	}
}

// Get returns the last computed rate.
func (r *Rate) Get() uint32 {
	return atomic.LoadUint32(&r.rate)
}

// PipelineStat is a point-in-time snapshot of the decode pipeline.
type PipelineStat struct {
	BitstreamBuffers uint64 `json:"bitstream_buffers"`
	PicturesEmitted  uint64 `json:"pictures_emitted"`
	Flushes          uint64 `json:"flushes"`
	Resets           uint64 `json:"resets"`
	EmitRate         uint32 `json:"emit_rate"`
}

// String renders the snapshot as JSON.
func (s PipelineStat) String() string {
	b, err := jsoniter.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Pipeline accumulates decode pipeline counters. Add methods are called
// from the decoder goroutine; Snapshot may be called from anywhere.
type Pipeline struct {
	bitstreamBuffers uint64
	picturesEmitted  uint64
	flushes          uint64
	resets           uint64
	emitRate         *Rate
}

// NewPipeline creates an empty counter set.
func NewPipeline() *Pipeline {
	return &Pipeline{emitRate: NewRate()}
}

func (p *Pipeline) AddBitstreamBuffer() {
	atomic.AddUint64(&p.bitstreamBuffers, 1)
}

func (p *Pipeline) AddPictureEmitted() {
	atomic.AddUint64(&p.picturesEmitted, 1)
	p.emitRate.Add()
}

func (p *Pipeline) AddFlush() {
	atomic.AddUint64(&p.flushes, 1)
}

func (p *Pipeline) AddReset() {
	atomic.AddUint64(&p.resets, 1)
}

// Snapshot returns the current counter values.
func (p *Pipeline) Snapshot() PipelineStat {
	return PipelineStat{
		BitstreamBuffers: atomic.LoadUint64(&p.bitstreamBuffers),
		PicturesEmitted:  atomic.LoadUint64(&p.picturesEmitted),
		Flushes:          atomic.LoadUint64(&p.flushes),
		Resets:           atomic.LoadUint64(&p.resets),
		EmitRate:         p.emitRate.Get(),
	}
}
