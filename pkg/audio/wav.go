package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// MultichannelAudio holds de-interleaved PCM samples normalized to [-1, 1]
type MultichannelAudio struct {
	Channels   [][]float64 `json:"-"`
	SampleRate int         `json:"sample_rate"`
	BitDepth   int         `json:"bit_depth"`
	Samples    int         `json:"samples"` // per channel
}

// NumChannels returns the number of decoded channels
func (a *MultichannelAudio) NumChannels() int {
	return len(a.Channels)
}

// ReadMultichannel decodes a PCM WAV file. maxChannels > 0 keeps only the
// first maxChannels channels.
func ReadMultichannel(path string, maxChannels int) (*MultichannelAudio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	decoded, err := DecodeMultichannel(f, maxChannels)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return decoded, nil
}

// DecodeMultichannel decodes PCM WAV data from r
func DecodeMultichannel(r io.ReadSeeker, maxChannels int) (*MultichannelAudio, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", numChannels)
	}
	if len(buf.Data)%numChannels != 0 {
		return nil, fmt.Errorf("truncated PCM data: %d samples across %d channels", len(buf.Data), numChannels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.SampleBitDepth())
	}

	keep := numChannels
	if maxChannels > 0 && maxChannels < keep {
		keep = maxChannels
	}

	frames := len(buf.Data) / numChannels
	channels := make([][]float64, keep)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}

	scale, offset := sampleScale(bitDepth)
	for i := range frames {
		for c := range keep {
			channels[c][i] = float64(buf.Data[i*numChannels+c]-offset) / scale
		}
	}

	return &MultichannelAudio{
		Channels:   channels,
		SampleRate: buf.Format.SampleRate,
		BitDepth:   bitDepth,
		Samples:    frames,
	}, nil
}

// sampleScale returns the divisor and zero offset for integer PCM of the
// given bit depth. 8-bit WAV samples are unsigned.
func sampleScale(bitDepth int) (float64, int) {
	if bitDepth == 8 {
		return 128, 128
	}
	return float64(int64(1) << (bitDepth - 1)), 0
}
