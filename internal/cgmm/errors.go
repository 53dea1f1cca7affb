package cgmm

import "errors"

var (
	// ErrShapeMismatch is returned when input dimensions disagree with the
	// configured (bins, frames, channels).
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrSingularCovariance is returned when a frequency bin's covariance
	// cannot be inverted.
	ErrSingularCovariance = errors.New("singular covariance")

	// ErrDegenerateJoint is returned when a joint statistic cell is too close
	// to zero (or not finite) to normalize a responsibility against.
	ErrDegenerateJoint = errors.New("degenerate joint statistic")

	// ErrUninitialized is returned when a model is used before its covariance
	// has been initialized.
	ErrUninitialized = errors.New("model covariance not initialized")

	// ErrImaginaryResidue is returned in strict mode when a quantity expected
	// to be real carries an imaginary part above tolerance.
	ErrImaginaryResidue = errors.New("imaginary residue above tolerance")
)
