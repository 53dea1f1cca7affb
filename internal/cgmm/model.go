package cgmm

import (
	"fmt"
	"math/cmplx"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// Model is one zero-mean complex Gaussian mixture class. It owns its
// responsibility (λ), scale (φ) and posterior grids, each bins x frames, plus
// a precision matrix Σ⁻¹ and determinant det(Σ) per frequency bin.
type Model struct {
	class        Class
	bins         int
	frames       int
	channels     int
	workers      int
	jointEpsilon float64

	lambda    *mat.CDense
	phi       *mat.CDense
	posterior *mat.CDense

	precision []*mat.CDense
	det       []complex128

	state  State
	logger logging.Logger
}

// NewModel creates an uninitialized model for the given class
func NewModel(class Class, cfg *Config) (*Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	m := &Model{
		class:        class,
		bins:         cfg.Bins,
		frames:       cfg.Frames,
		channels:     cfg.Channels,
		workers:      cfg.Workers,
		jointEpsilon: cfg.JointEpsilon,
		logger: logger.WithFields(logging.Fields{
			"component": "cgmm_model",
			"class":     string(class),
		}),
	}
	m.resetGrids()
	return m, nil
}

// resetGrids sets λ to zero, φ to one and clears the posterior cache
func (m *Model) resetGrids() {
	m.lambda = mat.NewCDense(m.bins, m.frames, nil)
	m.posterior = mat.NewCDense(m.bins, m.frames, nil)

	ones := make([]complex128, m.bins*m.frames)
	cmplxs.AddConst(1, ones)
	m.phi = mat.NewCDense(m.bins, m.frames, ones)
}

// Class returns the mixture class this model represents
func (m *Model) Class() Class { return m.class }

// State returns the lifecycle state
func (m *Model) State() State { return m.state }

// Dims returns (bins, frames, channels)
func (m *Model) Dims() (bins, frames, channels int) {
	return m.bins, m.frames, m.channels
}

// covarianceSeed holds validated per-bin precisions and determinants that
// have not yet been installed on a model
type covarianceSeed struct {
	precision []*mat.CDense
	det       []complex128
}

// InitializeCovariance stores the inverse and determinant of one M x M
// covariance per frequency bin, and resets λ, φ and the posterior cache.
// Nothing is modified if any matrix has the wrong shape or is singular.
func (m *Model) InitializeCovariance(covariances []*mat.CDense) error {
	seed, err := m.prepareCovariance(covariances)
	if err != nil {
		return err
	}
	m.installCovariance(seed)
	return nil
}

// prepareCovariance inverts every bin's covariance without touching the model
func (m *Model) prepareCovariance(covariances []*mat.CDense) (*covarianceSeed, error) {
	if len(covariances) != m.bins {
		return nil, fmt.Errorf("%w: got %d covariances, want one per bin (%d)", ErrShapeMismatch, len(covariances), m.bins)
	}

	seed := &covarianceSeed{
		precision: make([]*mat.CDense, m.bins),
		det:       make([]complex128, m.bins),
	}

	err := forEachBin(m.bins, m.workers, func(f int) error {
		if covariances[f] == nil {
			return fmt.Errorf("%w: covariance for bin %d is nil", ErrShapeMismatch, f)
		}
		r, c := covariances[f].Dims()
		if r != m.channels || c != m.channels {
			return fmt.Errorf("%w: covariance for bin %d is %dx%d, want %dx%d",
				ErrShapeMismatch, f, r, c, m.channels, m.channels)
		}

		inv, err := invert(covariances[f])
		if err != nil {
			return fmt.Errorf("bin %d: %w", f, err)
		}
		seed.precision[f] = inv
		seed.det[f] = determinant(covariances[f])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seed, nil
}

func (m *Model) installCovariance(seed *covarianceSeed) {
	m.resetGrids()
	m.precision = seed.precision
	m.det = seed.det
	m.state = StateReady

	m.logger.Debug("Covariance initialized", logging.Fields{
		"bins":     m.bins,
		"channels": m.channels,
	})
}

// AccumulateStatistics evaluates the log-density of every cell's channel
// vector under the current parameters, stores the grid as the posterior
// cache and returns a copy of it together with the auxiliary log-likelihood
// proxy Σ λ·P / (bins·frames).
func (m *Model) AccumulateStatistics(spectra *Spectra) (*mat.CDense, complex128, error) {
	if err := m.checkReady(); err != nil {
		return nil, 0, err
	}
	if err := m.checkSpectra(spectra); err != nil {
		return nil, 0, err
	}

	err := forEachBin(m.bins, m.workers, func(f int) error {
		post := row(m.posterior, f)
		phi := row(m.phi, f)
		for t := range m.frames {
			post[t] = logDensity(spectra.At(f, t), phi[t], m.precision[f], m.det[f])
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	weighted := cmplxs.MulTo(make([]complex128, m.bins*m.frames), cells(m.lambda), cells(m.posterior))
	likelihood := cmplxs.Sum(weighted) / complex(float64(m.bins*m.frames), 0)

	return cloneCDense(m.posterior), likelihood, nil
}

// UpdateResponsibility sets λ(f,t) = P(f,t) / joint(f,t), where joint is the
// summed posterior of both classes. The whole joint grid is validated before
// λ is modified.
func (m *Model) UpdateResponsibility(joint *mat.CDense) error {
	if err := m.checkReady(); err != nil {
		return err
	}
	if err := m.checkGrid("joint statistic", joint); err != nil {
		return err
	}

	for f := range m.bins {
		for t, v := range row(joint, f) {
			if cmplx.IsNaN(v) || cmplx.IsInf(v) || cmplx.Abs(v) < m.jointEpsilon {
				return fmt.Errorf("%w: cell (%d, %d) is %v", ErrDegenerateJoint, f, t, v)
			}
		}
	}

	return forEachBin(m.bins, m.workers, func(f int) error {
		cmplxs.DivTo(row(m.lambda, f), row(m.posterior, f), row(joint, f))
		return nil
	})
}

// UpdatePhi sets φ(f,t) = trace(C(f,t)·Σ⁻¹(f)) / M
func (m *Model) UpdatePhi(cache *CovarianceCache) error {
	if err := m.checkReady(); err != nil {
		return err
	}
	if err := cache.matches(m.bins, m.frames, m.channels); err != nil {
		return err
	}

	dim := complex(float64(m.channels), 0)
	return forEachBin(m.bins, m.workers, func(f int) error {
		phi := row(m.phi, f)
		for t, c := range cache.Bin(f) {
			phi[t] = traceProduct(c, m.precision[f]) / dim
		}
		return nil
	})
}

// UpdateCovariance recomputes each bin's covariance as the responsibility
// and scale weighted average Σ(f) = Σ_t λ·C/φ / Σ_t λ, then refreshes its
// precision and determinant. φ must already hold this M-step's values.
// Precisions are only replaced once every bin has inverted successfully.
func (m *Model) UpdateCovariance(cache *CovarianceCache) error {
	if err := m.checkReady(); err != nil {
		return err
	}
	if err := cache.matches(m.bins, m.frames, m.channels); err != nil {
		return err
	}

	precision := make([]*mat.CDense, m.bins)
	det := make([]complex128, m.bins)

	err := forEachBin(m.bins, m.workers, func(f int) error {
		lambda := row(m.lambda, f)
		phi := row(m.phi, f)

		mass := cmplxs.Sum(lambda)
		if mass == 0 || cmplx.IsNaN(mass) || cmplx.IsInf(mass) {
			return fmt.Errorf("bin %d: %w: responsibility mass is %v", f, ErrSingularCovariance, mass)
		}

		acc := make([]complex128, m.channels*m.channels)
		for t, c := range cache.Bin(f) {
			cmplxs.AddScaled(acc, lambda[t]/phi[t], cells(c))
		}
		cmplxs.Scale(1/mass, acc)

		sigma := mat.NewCDense(m.channels, m.channels, acc)
		inv, err := invert(sigma)
		if err != nil {
			return fmt.Errorf("bin %d: %w", f, err)
		}
		precision[f] = inv
		det[f] = determinant(sigma)
		return nil
	})
	if err != nil {
		return err
	}

	m.precision = precision
	m.det = det
	m.state = StateTrained
	return nil
}

// UpdateParameters runs one M-step: responsibility, then φ, then Σ
func (m *Model) UpdateParameters(spectra *Spectra, cache *CovarianceCache, joint *mat.CDense) error {
	if err := m.checkSpectra(spectra); err != nil {
		return err
	}
	if err := cache.matches(m.bins, m.frames, m.channels); err != nil {
		return err
	}

	m.logger.Debug("Updating responsibility")
	if err := m.UpdateResponsibility(joint); err != nil {
		return fmt.Errorf("failed to update %s responsibility: %w", m.class, err)
	}

	m.logger.Debug("Updating scale")
	if err := m.UpdatePhi(cache); err != nil {
		return fmt.Errorf("failed to update %s scale: %w", m.class, err)
	}

	m.logger.Debug("Updating covariance")
	if err := m.UpdateCovariance(cache); err != nil {
		return fmt.Errorf("failed to update %s covariance: %w", m.class, err)
	}
	return nil
}

// CovarianceEntropy returns, per bin, the Shannon entropy of the normalized
// real parts of Σ(f)'s eigenvalues. Diffuse (spatially incoherent) covariance
// scores high; a single dominant direction scores near zero.
func (m *Model) CovarianceEntropy() ([]float64, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}

	entropy := make([]float64, m.bins)
	err := forEachBin(m.bins, m.workers, func(f int) error {
		sigma, err := invert(m.precision[f])
		if err != nil {
			return fmt.Errorf("bin %d: %w", f, err)
		}
		eigenvalues, err := eigenvalueRealParts(sigma)
		if err != nil {
			return fmt.Errorf("bin %d: %w", f, err)
		}
		entropy[f] = spectralEntropy(eigenvalues)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entropy, nil
}

// Responsibility returns a copy of λ
func (m *Model) Responsibility() *mat.CDense { return cloneCDense(m.lambda) }

// Scale returns a copy of φ
func (m *Model) Scale() *mat.CDense { return cloneCDense(m.phi) }

// Posterior returns a copy of the last computed posterior grid
func (m *Model) Posterior() *mat.CDense { return cloneCDense(m.posterior) }

// Precision returns a copy of Σ⁻¹(f)
func (m *Model) Precision(f int) *mat.CDense {
	if m.precision == nil {
		return nil
	}
	return cloneCDense(m.precision[f])
}

// Determinant returns det(Σ(f))
func (m *Model) Determinant(f int) complex128 {
	if m.det == nil {
		return 0
	}
	return m.det[f]
}

// Covariance recovers Σ(f) by inverting the stored precision
func (m *Model) Covariance(f int) (*mat.CDense, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	return invert(m.precision[f])
}

func (m *Model) responsibilityRow(f int) []complex128 {
	return row(m.lambda, f)
}

func (m *Model) checkReady() error {
	if m.state == StateUninitialized {
		return fmt.Errorf("%s model: %w", m.class, ErrUninitialized)
	}
	return nil
}

func (m *Model) checkSpectra(s *Spectra) error {
	if !s.valid() {
		return fmt.Errorf("%w: spectra tensor is empty or inconsistent", ErrShapeMismatch)
	}
	if s.Bins != m.bins || s.Frames != m.frames || s.Channels != m.channels {
		return fmt.Errorf("%w: spectra is %dx%dx%d, model expects %dx%dx%d",
			ErrShapeMismatch, s.Bins, s.Frames, s.Channels, m.bins, m.frames, m.channels)
	}
	return nil
}

func (m *Model) checkGrid(name string, g *mat.CDense) error {
	if g == nil {
		return fmt.Errorf("%w: %s grid is nil", ErrShapeMismatch, name)
	}
	if r, c := g.Dims(); r != m.bins || c != m.frames {
		return fmt.Errorf("%w: %s grid is %dx%d, want %dx%d", ErrShapeMismatch, name, r, c, m.bins, m.frames)
	}
	return nil
}
