package statistics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipelineCounters(t *testing.T) {
	p := NewPipeline()
	p.AddBitstreamBuffer()
	p.AddBitstreamBuffer()
	p.AddPictureEmitted()
	p.AddFlush()
	p.AddReset()

	stat := p.Snapshot()
	require.Equal(t, uint64(2), stat.BitstreamBuffers)
	require.Equal(t, uint64(1), stat.PicturesEmitted)
	require.Equal(t, uint64(1), stat.Flushes)
	require.Equal(t, uint64(1), stat.Resets)
}

func TestPipelineStatJSON(t *testing.T) {
	stat := PipelineStat{BitstreamBuffers: 3, PicturesEmitted: 2}
	s := stat.String()
	require.True(t, strings.Contains(s, `"bitstream_buffers":3`))
	require.True(t, strings.Contains(s, `"pictures_emitted":2`))
}

func TestRateStartsAtZero(t *testing.T) {
	r := NewRate()
	require.Equal(t, uint32(0), r.Get())
	r.Add()
	// One sample inside the first window does not move the estimate.
	require.Equal(t, uint32(0), r.Get())
}
