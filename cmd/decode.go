package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bugVanisher/hwdec/accel"
	"github.com/bugVanisher/hwdec/common/errs"
	"github.com/bugVanisher/hwdec/media/h264"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Run an Annex-B H.264 elementary stream through the decode pipeline",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		data, err := os.ReadFile(dec.inFile)
		if err != nil {
			return err
		}

		client := newCliClient()
		a := accel.New(h264.NullCodec{}, client)
		client.accel = a
		if !a.Initialize(accel.Config{}) {
			return errs.New(errs.CodePlatformFailure, "pipeline initialization failed")
		}
		defer a.Destroy()

		g, _ := errgroup.WithContext(context.Background())
		g.Go(func() error {
			for id, chunk := range splitAnnexB(data, dec.chunkSize) {
				a.Decode(accel.BitstreamBuffer{ID: int32(id), Data: chunk})
			}
			a.Flush()
			return nil
		})
		g.Go(func() error {
			return client.wait()
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if dec.stats {
			fmt.Println(a.Stats().String())
		}
		return nil
	},
}

type decodeArgs struct {
	inFile    string
	chunkSize int
	stats     bool
}

var dec decodeArgs

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVarP(&dec.inFile, "file", "f", "", "Annex-B .264 file to decode")
	decodeCmd.MarkFlagRequired("file")
	decodeCmd.Flags().IntVar(&dec.chunkSize, "chunk-size", 64<<10, "bitstream buffer size")
	decodeCmd.Flags().BoolVar(&dec.stats, "stats", false, "print pipeline stats as JSON on exit")
}

// splitAnnexB packs NAL units into bitstream buffers of roughly
// chunkSize bytes, always cutting at start-code boundaries: the decoder
// does not accept NAL units spanning buffers.
func splitAnnexB(data []byte, chunkSize int) [][]byte {
	var starts []int
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			s := i
			if s > 0 && data[s-1] == 0 {
				s--
			}
			starts = append(starts, s)
			i += 2
		}
	}
	if len(starts) == 0 {
		return [][]byte{data}
	}

	var chunks [][]byte
	cur := starts[0]
	for k := 1; k <= len(starts); k++ {
		end := len(data)
		if k < len(starts) {
			end = starts[k]
		}
		if end-cur >= chunkSize || k == len(starts) {
			chunks = append(chunks, data[cur:end])
			cur = end
		}
	}
	return chunks
}

// cliClient drives the pipeline like a display stack would: buffers are
// assigned on request and recycled the moment a picture is reported.
type cliClient struct {
	accel *accel.Accelerator
	done  chan error
}

func newCliClient() *cliClient {
	return &cliClient{done: make(chan error, 1)}
}

func (c *cliClient) wait() error {
	return <-c.done
}

func (c *cliClient) ProvidePictureBuffers(count int, size h264.PicSize) {
	log.Info().Int("count", count).Int("width", size.Width).Int("height", size.Height).
		Msg("[Cli] providing picture buffers")
	buffers := make([]accel.PictureBuffer, count)
	for i := range buffers {
		buffers[i] = accel.PictureBuffer{ID: int32(i)}
	}
	c.accel.AssignPictureBuffers(buffers)
}

func (c *cliClient) PictureReady(pictureID, bitstreamID int32, size h264.PicSize) {
	log.Info().Int32("picture_id", pictureID).Int32("bitstream_id", bitstreamID).
		Msg("[Cli] picture ready")
	c.accel.ReusePictureBuffer(pictureID)
}

func (c *cliClient) NotifyEndOfBitstreamBuffer(bitstreamID int32) {
	log.Debug().Int32("bitstream_id", bitstreamID).Msg("[Cli] bitstream buffer done")
}

func (c *cliClient) NotifyFlushDone() {
	c.done <- nil
}

func (c *cliClient) NotifyResetDone() {}

func (c *cliClient) NotifyError(err error) {
	c.done <- err
}
