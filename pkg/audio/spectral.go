package audio

import (
	"fmt"
	"runtime"

	"github.com/RyanBlaney/cgmm-mask/internal/cgmm"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"golang.org/x/sync/errgroup"
)

// SpectralAnalyzer computes short-time Fourier transforms of multichannel
// audio
type SpectralAnalyzer struct {
	sampleRate int
	workers    int
	logger     logging.Logger
}

// NewSpectralAnalyzer creates a new spectral analyzer. workers bounds the
// number of channels transformed in parallel; values <= 0 use every CPU.
func NewSpectralAnalyzer(sampleRate, workers int, logger logging.Logger) *SpectralAnalyzer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &SpectralAnalyzer{
		sampleRate: sampleRate,
		workers:    workers,
		logger: logger.WithFields(logging.Fields{
			"component":   "spectral_analyzer",
			"sample_rate": sampleRate,
		}),
	}
}

// FFT computes the Fast Fourier Transform of a real signal
func (sa *SpectralAnalyzer) FFT(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// STFT transforms one channel into a bins x frames complex matrix stored
// bin-major
func (sa *SpectralAnalyzer) STFT(signal []float64, cfg *STFTConfig) ([][]complex128, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	padded := signal
	if cfg.Center {
		padded = reflectPad(signal, cfg.WindowSize/2)
	}

	frames := cfg.Frames(len(signal))
	if frames == 0 {
		return nil, fmt.Errorf("signal of %d samples is shorter than the %d sample window", len(signal), cfg.WindowSize)
	}

	win := analysisWindow(cfg.Window, cfg.WindowSize)
	bins := cfg.Bins()

	out := make([][]complex128, bins)
	for f := range out {
		out[f] = make([]complex128, frames)
	}

	frame := make([]float64, cfg.WindowSize)
	for t := range frames {
		start := t * cfg.HopSize
		for i := range frame {
			frame[i] = padded[start+i] * win[i]
		}
		spectrum := sa.FFT(frame)
		for f := range bins {
			out[f][t] = spectrum[f]
		}
	}

	return out, nil
}

// MultichannelSTFT transforms every channel and stacks the results into a
// bins x frames x channels tensor. All channels must have the same length.
func (sa *SpectralAnalyzer) MultichannelSTFT(channels [][]float64, cfg *STFTConfig) (*cgmm.Spectra, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels to transform")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid STFT config: %w", err)
	}

	samples := len(channels[0])
	for c, ch := range channels {
		if len(ch) != samples {
			return nil, fmt.Errorf("channel %d has %d samples, want %d", c, len(ch), samples)
		}
	}

	logger := sa.logger.WithFields(logging.Fields{
		"function":    "MultichannelSTFT",
		"channels":    len(channels),
		"samples":     samples,
		"window_size": cfg.WindowSize,
		"hop_size":    cfg.HopSize,
	})
	logger.Debug("Computing multichannel STFT")

	perChannel := make([][][]complex128, len(channels))

	var g errgroup.Group
	g.SetLimit(sa.workers)
	for c := range channels {
		g.Go(func() error {
			spec, err := sa.STFT(channels[c], cfg)
			if err != nil {
				return fmt.Errorf("channel %d: %w", c, err)
			}
			perChannel[c] = spec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bins, frames := len(perChannel[0]), len(perChannel[0][0])
	spectra := cgmm.NewSpectra(bins, frames, len(channels))
	for f := range bins {
		for t := range frames {
			x := spectra.At(f, t)
			for c := range channels {
				x[c] = perChannel[c][f][t]
			}
		}
	}

	logger.Debug("Multichannel STFT completed", logging.Fields{
		"bins":            bins,
		"frames":          frames,
		"freq_resolution": sa.FrequencyResolution(cfg.WindowSize),
	})

	return spectra, nil
}

// FrequencyResolution returns the bin spacing in Hz
func (sa *SpectralAnalyzer) FrequencyResolution(windowSize int) float64 {
	return float64(sa.sampleRate) / float64(windowSize)
}

// GetFrequencyBins returns the center frequency of each non-negative bin
func (sa *SpectralAnalyzer) GetFrequencyBins(windowSize int) []float64 {
	res := sa.FrequencyResolution(windowSize)
	freqs := make([]float64, windowSize/2+1)
	for i := range freqs {
		freqs[i] = float64(i) * res
	}
	return freqs
}

// analysisWindow returns a periodic window of length n. go-dsp generates
// symmetric windows, so the periodic form is the first n points of n+1.
func analysisWindow(fn WindowFunction, n int) []float64 {
	if parsed, err := ParseWindowFunction(string(fn)); err == nil {
		fn = parsed
	}

	switch fn {
	case WindowRectangular:
		return window.Rectangular(n)
	default:
		return window.Hann(n + 1)[:n]
	}
}

// reflectPad mirrors pad samples around each end without repeating the edge
// sample, folding repeatedly when pad exceeds the signal length
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	for i := range out {
		out[i] = x[reflectIndex(i-pad, n)]
	}
	return out
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
