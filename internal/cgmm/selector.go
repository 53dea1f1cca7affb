package cgmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Selection is the output of mask selection
type Selection struct {
	Mask           *mat.CDense // bins x frames
	NoiseEntropy   []float64
	NoisyEntropy   []float64
	Sources        []Class // class whose responsibility row was taken, per bin
	MaxImagResidue float64
}

// NoiseBins counts bins whose mask row came from the noise class
func (s *Selection) NoiseBins() int {
	n := 0
	for _, c := range s.Sources {
		if c == ClassNoise {
			n++
		}
	}
	return n
}

// MaskSelector chooses, bin by bin, which trained class's responsibilities
// represent the noise subspace
type MaskSelector struct {
	noise *Model
	noisy *Model
}

// NewMaskSelector pairs two trained models of identical dimensions
func NewMaskSelector(noise, noisy *Model) (*MaskSelector, error) {
	if noise == nil || noisy == nil {
		return nil, fmt.Errorf("both noise and noisy models are required")
	}

	nb, nf, nc := noise.Dims()
	yb, yf, yc := noisy.Dims()
	if nb != yb || nf != yf || nc != yc {
		return nil, fmt.Errorf("%w: noise model is %dx%dx%d, noisy model is %dx%dx%d",
			ErrShapeMismatch, nb, nf, nc, yb, yf, yc)
	}

	return &MaskSelector{noise: noise, noisy: noisy}, nil
}

// SelectNoiseMask emits, for each bin, the noise class's responsibility row
// when its covariance entropy is strictly greater than the noisy class's,
// and the noisy class's row otherwise (ties included). Reads model state
// only, so repeated calls return identical masks.
func (s *MaskSelector) SelectNoiseMask() (*Selection, error) {
	noiseEntropy, err := s.noise.CovarianceEntropy()
	if err != nil {
		return nil, fmt.Errorf("failed to compute noise covariance entropy: %w", err)
	}
	noisyEntropy, err := s.noisy.CovarianceEntropy()
	if err != nil {
		return nil, fmt.Errorf("failed to compute noisy covariance entropy: %w", err)
	}

	bins, frames, _ := s.noise.Dims()
	selection := &Selection{
		Mask:         mat.NewCDense(bins, frames, nil),
		NoiseEntropy: noiseEntropy,
		NoisyEntropy: noisyEntropy,
		Sources:      make([]Class, bins),
	}

	for f := range bins {
		source := s.noisy
		if noiseEntropy[f] > noisyEntropy[f] {
			source = s.noise
		}
		selection.Sources[f] = source.Class()

		dst := row(selection.Mask, f)
		copy(dst, source.responsibilityRow(f))
		for _, v := range dst {
			selection.MaxImagResidue = math.Max(selection.MaxImagResidue, math.Abs(imag(v)))
		}
	}

	return selection, nil
}
