package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Frame is one fixed-size chunk of 16-bit little-endian mono PCM
type Frame struct {
	Data    []byte  // Raw bytes as read, ready to forward upstream
	Samples []int16 // Decoded samples for analysis
}

// FrameReader slices a PCM byte stream into fixed-size frames
type FrameReader struct {
	r         io.Reader
	frameSize int
}

// NewFrameReader creates a reader yielding frames of frameSize samples
func NewFrameReader(r io.Reader, frameSize int) *FrameReader {
	if frameSize <= 0 {
		frameSize = DefaultVADConfig().FrameSize
	}
	return &FrameReader{r: r, frameSize: frameSize}
}

// ReadFrame reads the next full frame. A trailing partial frame is returned
// together with io.ErrUnexpectedEOF; io.EOF means the stream ended cleanly.
func (fr *FrameReader) ReadFrame() (*Frame, error) {
	buf := make([]byte, fr.frameSize*2)
	n, err := io.ReadFull(fr.r, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && n >= 2 {
			data := buf[:n-n%2]
			return &Frame{Data: data, Samples: BytesToSamples(data)}, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return &Frame{Data: buf, Samples: BytesToSamples(buf)}, nil
}

// BytesToSamples decodes 16-bit little-endian PCM. A trailing odd byte is ignored.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// ValidateSampleRate rejects rates the streaming STT backends do not accept
func ValidateSampleRate(rate int) error {
	switch rate {
	case 8000, 16000, 24000, 44100, 48000:
		return nil
	}
	return fmt.Errorf("unsupported sample rate %d", rate)
}
