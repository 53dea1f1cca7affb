package audio

import (
	"fmt"
	"strings"
)

type WindowFunction string

const (
	WindowHann        WindowFunction = "hann"
	WindowRectangular WindowFunction = "rectangular"
)

// STFTConfig describes the short-time Fourier transform applied to every
// channel before training
type STFTConfig struct {
	// Spectral Analysis
	WindowSize int            `json:"window_size" yaml:"window_size"`
	HopSize    int            `json:"hop_size" yaml:"hop_size"`
	Window     WindowFunction `json:"window" yaml:"window"`

	// Center pads each channel by WindowSize/2 reflected samples on both
	// sides so frame t is centered on sample t*HopSize
	Center bool `json:"center" yaml:"center"`

	// Decoding
	MaxChannels int `json:"max_channels" yaml:"max_channels"` // 0 keeps every channel
}

// DefaultSTFTConfig matches the common librosa defaults
func DefaultSTFTConfig() *STFTConfig {
	return &STFTConfig{
		WindowSize: 2048,
		HopSize:    512,
		Window:     WindowHann,
		Center:     true,
	}
}

// Bins returns the number of non-negative frequency bins
func (c *STFTConfig) Bins() int {
	return c.WindowSize/2 + 1
}

// Frames returns the number of frames produced for a signal of n samples
func (c *STFTConfig) Frames(n int) int {
	if c.Center {
		n += 2 * (c.WindowSize / 2)
	}
	if n < c.WindowSize {
		return 0
	}
	return 1 + (n-c.WindowSize)/c.HopSize
}

// Validate checks the STFT parameters
func (c *STFTConfig) Validate() error {
	if c.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", c.WindowSize)
	}
	if c.HopSize <= 0 {
		return fmt.Errorf("hop size must be positive, got %d", c.HopSize)
	}
	if c.MaxChannels < 0 {
		return fmt.Errorf("max channels cannot be negative")
	}
	if _, err := ParseWindowFunction(string(c.Window)); err != nil {
		return err
	}
	return nil
}

// ParseWindowFunction maps a config string to a window function
func ParseWindowFunction(name string) (WindowFunction, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning", "":
		return WindowHann, nil
	case "rectangular", "rect", "boxcar", "none":
		return WindowRectangular, nil
	default:
		return "", fmt.Errorf("unsupported window function: %s", name)
	}
}
