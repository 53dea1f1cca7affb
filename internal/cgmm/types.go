package cgmm

import (
	"fmt"
	"runtime"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Class identifies one of the two competing mixture classes
type Class string

const (
	ClassNoise Class = "noise"
	ClassNoisy Class = "noisy"
)

// State tracks a model's position in its lifecycle
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTrained:
		return "trained"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Spectra is a bins x frames x channels complex tensor. Data is row-major
// with the channel index varying fastest, then frame, then bin.
type Spectra struct {
	Bins     int
	Frames   int
	Channels int
	Data     []complex128
}

// NewSpectra allocates a zeroed tensor
func NewSpectra(bins, frames, channels int) *Spectra {
	return &Spectra{
		Bins:     bins,
		Frames:   frames,
		Channels: channels,
		Data:     make([]complex128, bins*frames*channels),
	}
}

// SpectraFromNested copies a [bin][frame][channel] nested slice into a tensor.
func SpectraFromNested(x [][][]complex128) (*Spectra, error) {
	if len(x) == 0 || len(x[0]) == 0 || len(x[0][0]) == 0 {
		return nil, fmt.Errorf("%w: empty spectra", ErrShapeMismatch)
	}

	s := NewSpectra(len(x), len(x[0]), len(x[0][0]))
	for f := range x {
		if len(x[f]) != s.Frames {
			return nil, fmt.Errorf("%w: bin %d has %d frames, want %d", ErrShapeMismatch, f, len(x[f]), s.Frames)
		}
		for t := range x[f] {
			if len(x[f][t]) != s.Channels {
				return nil, fmt.Errorf("%w: cell (%d, %d) has %d channels, want %d",
					ErrShapeMismatch, f, t, len(x[f][t]), s.Channels)
			}
			s.Set(f, t, x[f][t])
		}
	}
	return s, nil
}

// At returns the channel vector of cell (f, t). The slice aliases the tensor.
func (s *Spectra) At(f, t int) []complex128 {
	off := (f*s.Frames + t) * s.Channels
	return s.Data[off : off+s.Channels : off+s.Channels]
}

// Set copies x into the channel vector of cell (f, t)
func (s *Spectra) Set(f, t int, x []complex128) {
	copy(s.At(f, t), x)
}

// Shape returns the tensor dimensions
func (s *Spectra) Shape() (bins, frames, channels int) {
	return s.Bins, s.Frames, s.Channels
}

func (s *Spectra) valid() bool {
	return s != nil && s.Bins > 0 && s.Frames > 0 && s.Channels > 0 &&
		len(s.Data) == s.Bins*s.Frames*s.Channels
}

// Config holds the dimensions and numeric settings shared by both models
type Config struct {
	Bins     int
	Frames   int
	Channels int

	// Workers bounds the number of frequency bins processed in parallel.
	// Values <= 1 run every per-bin loop sequentially.
	Workers int

	// ConcurrentClasses updates the noise and noisy models in parallel
	// within one M-step.
	ConcurrentClasses bool

	// JointEpsilon is the smallest joint statistic magnitude accepted when
	// normalizing responsibilities.
	JointEpsilon float64

	// ImagTolerance bounds the imaginary residue of the log-likelihood proxy
	// and of the selected mask before a warning (or error in strict mode).
	ImagTolerance   float64
	StrictImaginary bool

	Logger logging.Logger
}

// DefaultConfig returns a configuration for the given dimensions
func DefaultConfig(bins, frames, channels int) *Config {
	return &Config{
		Bins:          bins,
		Frames:        frames,
		Channels:      channels,
		Workers:       runtime.NumCPU(),
		JointEpsilon:  1e-12,
		ImagTolerance: 1e-6,
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Bins <= 0 || c.Frames <= 0 || c.Channels <= 0 {
		return fmt.Errorf("dimensions must be positive, got bins=%d frames=%d channels=%d",
			c.Bins, c.Frames, c.Channels)
	}
	if c.JointEpsilon < 0 {
		return fmt.Errorf("joint epsilon cannot be negative")
	}
	if c.ImagTolerance < 0 {
		return fmt.Errorf("imaginary tolerance cannot be negative")
	}
	return nil
}
