package audio

import (
	"io"
	"math"

	"github.com/youpy/go-wav"
)

// WAVWriter encodes interleaved stereo float buffers as 16 bit PCM.
type WAVWriter struct {
	w       *wav.Writer
	samples []wav.Sample
}

// NewWAVWriter starts a WAV stream that will hold numFrames frames. The
// header is written up front, so the frame count must be known in advance.
func NewWAVWriter(w io.Writer, numFrames, sampleRate int) *WAVWriter {
	return &WAVWriter{
		w: wav.NewWriter(w, uint32(numFrames), 2, uint32(sampleRate), 16),
	}
}

func (w *WAVWriter) Write(buf []float32) error {
	w.samples = w.samples[:0]
	for n := 0; n+1 < len(buf); n += 2 {
		w.samples = append(w.samples, wav.Sample{
			Values: [2]int{toPCM16(buf[n]), toPCM16(buf[n+1])},
		})
	}
	return w.w.WriteSamples(w.samples)
}

func toPCM16(v float32) int {
	const scale = 1<<15 - 1 // assumes 16 bit output
	return int(math.Round(float64(clamp(v, -1, 1)) * scale))
}
