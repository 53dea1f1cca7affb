package cgmm

import (
	"fmt"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// CovarianceCache holds the outer-product covariance x·xᴴ of every
// (bin, frame) channel vector. It is built once and read by both models on
// every EM iteration; callers must not modify the returned matrices.
type CovarianceCache struct {
	bins     int
	frames   int
	channels int
	matrices []*mat.CDense // row-major, bin outer, frame inner
}

// NewCovarianceCache computes the per-cell covariance of spectra. The
// tensor's channel dimension must equal channels.
func NewCovarianceCache(spectra *Spectra, channels int) (*CovarianceCache, error) {
	if !spectra.valid() {
		return nil, fmt.Errorf("%w: spectra tensor is empty or inconsistent", ErrShapeMismatch)
	}
	if spectra.Channels != channels {
		return nil, fmt.Errorf("%w: spectra has %d channels, want %d", ErrShapeMismatch, spectra.Channels, channels)
	}

	c := &CovarianceCache{
		bins:     spectra.Bins,
		frames:   spectra.Frames,
		channels: channels,
		matrices: make([]*mat.CDense, spectra.Bins*spectra.Frames),
	}
	for f := range c.bins {
		for t := range c.frames {
			c.matrices[f*c.frames+t] = outer(spectra.At(f, t))
		}
	}
	return c, nil
}

// Dims returns the cache dimensions
func (c *CovarianceCache) Dims() (bins, frames, channels int) {
	return c.bins, c.frames, c.channels
}

// Len returns the number of cached matrices (bins * frames)
func (c *CovarianceCache) Len() int {
	return len(c.matrices)
}

// At returns the covariance of cell (f, t)
func (c *CovarianceCache) At(f, t int) *mat.CDense {
	return c.matrices[f*c.frames+t]
}

// Bin returns the frame-ordered covariances of bin f
func (c *CovarianceCache) Bin(f int) []*mat.CDense {
	return c.matrices[f*c.frames : (f+1)*c.frames]
}

// TimeAverage returns the mean covariance of bin f over all frames
func (c *CovarianceCache) TimeAverage(f int) *mat.CDense {
	acc := make([]complex128, c.channels*c.channels)
	for _, m := range c.Bin(f) {
		cmplxs.Add(acc, cells(m))
	}
	cmplxs.ScaleReal(1/float64(c.frames), acc)
	return mat.NewCDense(c.channels, c.channels, acc)
}

func (c *CovarianceCache) matches(bins, frames, channels int) error {
	if c == nil {
		return fmt.Errorf("%w: nil covariance cache", ErrShapeMismatch)
	}
	if c.bins != bins || c.frames != frames || c.channels != channels {
		return fmt.Errorf("%w: covariance cache is %dx%dx%d, want %dx%dx%d",
			ErrShapeMismatch, c.bins, c.frames, c.channels, bins, frames, channels)
	}
	return nil
}
