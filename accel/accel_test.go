package accel

import (
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/bugVanisher/hwdec/media/h264"
)

// Hand-assembled Annex-B test stream: Baseline 320x240, POC type 0,
// max_num_ref_frames 4, no VUI. IDR (frame_num 0, poc_lsb 0) followed by
// a P frame (frame_num 1, poc_lsb 2).
var (
	testStreamSPS = []byte{0x67, 0x42, 0x00, 0x28, 0xF2, 0x82, 0x83, 0xF2}
	testStreamPPS = []byte{0x68, 0xCE, 0x38, 0x80}
	testStreamIDR = []byte{0x65, 0xB8, 0x40, 0xC0, 0xAB}
	testStreamP   = []byte{0x41, 0xE2, 0x43}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

type pictureEvent struct {
	PictureID   int32
	BitstreamID int32
}

// testClient records callbacks and plays the display stack: buffers are
// assigned on request and recycled as soon as pictures arrive.
type testClient struct {
	accel *Accelerator

	lock      sync.Mutex
	pictures  []pictureEvent
	ended     []int32
	provided  []int
	flushDone chan struct{}
	resetDone chan struct{}
	errors    chan error
}

func newTestClient() *testClient {
	return &testClient{
		flushDone: make(chan struct{}, 4),
		resetDone: make(chan struct{}, 4),
		errors:    make(chan error, 4),
	}
}

func (c *testClient) ProvidePictureBuffers(count int, size h264.PicSize) {
	c.lock.Lock()
	c.provided = append(c.provided, count)
	c.lock.Unlock()
	buffers := make([]PictureBuffer, count)
	for i := range buffers {
		buffers[i] = PictureBuffer{ID: int32(i)}
	}
	c.accel.AssignPictureBuffers(buffers)
}

func (c *testClient) PictureReady(pictureID, bitstreamID int32, size h264.PicSize) {
	c.lock.Lock()
	c.pictures = append(c.pictures, pictureEvent{PictureID: pictureID, BitstreamID: bitstreamID})
	c.lock.Unlock()
	c.accel.ReusePictureBuffer(pictureID)
}

func (c *testClient) NotifyEndOfBitstreamBuffer(bitstreamID int32) {
	c.lock.Lock()
	c.ended = append(c.ended, bitstreamID)
	c.lock.Unlock()
}

func (c *testClient) NotifyFlushDone() {
	c.flushDone <- struct{}{}
}

func (c *testClient) NotifyResetDone() {
	c.resetDone <- struct{}{}
}

func (c *testClient) NotifyError(err error) {
	c.errors <- err
}

func waitSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func (c *testClient) snapshotPictures() []pictureEvent {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]pictureEvent, len(c.pictures))
	copy(out, c.pictures)
	return out
}

func (c *testClient) snapshotEnded() []int32 {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]int32, len(c.ended))
	copy(out, c.ended)
	return out
}

func startPipeline(t *testing.T) (*Accelerator, *testClient) {
	t.Helper()
	client := newTestClient()
	a := New(h264.NullCodec{}, client)
	client.accel = a
	require.True(t, a.Initialize(Config{}))
	return a, client
}

func TestPipelineDecodeAndFlush(t *testing.T) {
	a, client := startPipeline(t)
	defer a.Destroy()

	stream := annexB(testStreamSPS, testStreamPPS, testStreamIDR, testStreamP)
	a.Decode(BitstreamBuffer{ID: 0, Data: stream})
	a.Flush()
	waitSignal(t, client.flushDone, "flush done")

	// The SPS triggered one surface allocation round: DPB bound plus
	// the pipeline margin.
	client.lock.Lock()
	provided := append([]int(nil), client.provided...)
	client.lock.Unlock()
	require.Equal(t, []int{16 + defaultPipelineMargin}, provided)

	// Both frames came out of the same input buffer, display order.
	pics := client.snapshotPictures()
	require.Equal(t, 2, len(pics))
	require.Equal(t, int32(0), pics[0].BitstreamID)
	require.Equal(t, int32(0), pics[1].BitstreamID)
	require.NotEqual(t, pics[0].PictureID, pics[1].PictureID)

	require.Equal(t, []int32{0}, client.snapshotEnded())

	stat := a.Stats()
	require.Equal(t, uint64(1), stat.BitstreamBuffers)
	require.Equal(t, uint64(2), stat.PicturesEmitted)
	require.Equal(t, uint64(1), stat.Flushes)
}

// Bitstream buffers complete in submission order, all before the flush
// that follows them.
func TestPipelineBufferCompletionOrder(t *testing.T) {
	a, client := startPipeline(t)
	defer a.Destroy()

	a.Decode(BitstreamBuffer{ID: 1, Data: annexB(testStreamSPS)})
	a.Decode(BitstreamBuffer{ID: 2, Data: annexB(testStreamPPS)})
	a.Decode(BitstreamBuffer{ID: 3, Data: annexB(testStreamIDR)})
	a.Flush()
	waitSignal(t, client.flushDone, "flush done")

	require.Equal(t, []int32{1, 2, 3}, client.snapshotEnded())
}

func TestPipelineResetDropsWithoutEmission(t *testing.T) {
	a, client := startPipeline(t)
	defer a.Destroy()

	// Decode a stream whose pictures stay in the reorder window, then
	// reset before flushing.
	stream := annexB(testStreamSPS, testStreamPPS, testStreamIDR, testStreamP)
	a.Decode(BitstreamBuffer{ID: 5, Data: stream})
	a.Reset()
	waitSignal(t, client.resetDone, "reset done")

	require.Equal(t, 0, len(client.snapshotPictures()))
	require.Equal(t, []int32{5}, client.snapshotEnded())
}

func TestPipelineErrorIsReportedOnce(t *testing.T) {
	a, client := startPipeline(t)
	defer a.Destroy()

	// forbidden_zero_bit set: stream error.
	a.Decode(BitstreamBuffer{ID: 9, Data: annexB([]byte{0xFF, 0x00})})

	select {
	case <-client.errors:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error")
	}

	// Later buffers come back without a second error notification.
	a.Decode(BitstreamBuffer{ID: 10, Data: annexB(testStreamSPS)})
	deadline := time.Now().Add(5 * time.Second)
	for {
		ended := client.snapshotEnded()
		if len(ended) > 0 && ended[len(ended)-1] == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for buffer return")
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case err := <-client.errors:
		t.Fatalf("unexpected second error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPipelineEntryPointsRequireInitialize(t *testing.T) {
	client := newTestClient()
	a := New(h264.NullCodec{}, client)
	client.accel = a

	// All of these are ignored before Initialize.
	a.Decode(BitstreamBuffer{ID: 1, Data: []byte{0}})
	a.Flush()
	a.Reset()
	a.ReusePictureBuffer(0)

	select {
	case <-client.flushDone:
		t.Fatal("flush done without initialize")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, a.Initialize(Config{}))
	require.False(t, a.Initialize(Config{}))
	a.Destroy()
}

func TestPipelineGomockClientFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := NewMockClient(ctrl)
	done := make(chan struct{})
	client.EXPECT().NotifyEndOfBitstreamBuffer(int32(7))
	client.EXPECT().NotifyFlushDone().Do(func() { close(done) })

	a := New(h264.NullCodec{}, client)
	require.True(t, a.Initialize(Config{}))

	// No start code at all: the buffer is consumed without output.
	a.Decode(BitstreamBuffer{ID: 7, Data: []byte{0xde, 0xad, 0xbe, 0xef}})
	a.Flush()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for flush done")
	}
	a.Destroy()
}
