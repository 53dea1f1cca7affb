package cgmm

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// DefaultIterations is the EM iteration count used when the caller has no
// better estimate
const DefaultIterations = 30

// Statistics is the joint E-step result both classes normalize against
type Statistics struct {
	Joint         *mat.CDense // noise posterior + noisy posterior
	LogLikelihood complex128  // noise proxy + noisy proxy
}

// Epoch records one EM iteration
type Epoch struct {
	Iteration     int        `json:"iteration"`
	LogLikelihood complex128 `json:"-"`
}

// TrainingResult summarizes a Train call
type TrainingResult struct {
	Iterations        int           `json:"iterations"`
	InitialLikelihood complex128    `json:"-"`
	Epochs            []Epoch       `json:"epochs"`
	MaxImagResidue    float64       `json:"max_imag_residue"`
	Duration          time.Duration `json:"duration"`
}

// FinalLikelihood returns the proxy after the last epoch, or the initial
// proxy when no epoch ran
func (r *TrainingResult) FinalLikelihood() complex128 {
	if len(r.Epochs) == 0 {
		return r.InitialLikelihood
	}
	return r.Epochs[len(r.Epochs)-1].LogLikelihood
}

// Trainer fits a noise-class and a noisy-class model that share one
// covariance cache
type Trainer struct {
	cfg    *Config
	noise  *Model
	noisy  *Model
	cache  *CovarianceCache
	logger logging.Logger
}

// NewTrainer creates both models for the configured dimensions
func NewTrainer(cfg *Config) (*Trainer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trainer config: %w", err)
	}

	conf := *cfg
	if conf.Logger == nil {
		conf.Logger = logging.NewDefaultLogger()
	}
	cfg = &conf

	noise, err := NewModel(ClassNoise, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create noise model: %w", err)
	}
	noisy, err := NewModel(ClassNoisy, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create noisy model: %w", err)
	}

	return &Trainer{
		cfg:   cfg,
		noise: noise,
		noisy: noisy,
		logger: cfg.Logger.WithFields(logging.Fields{
			"component": "cgmm_trainer",
			"bins":      cfg.Bins,
			"frames":    cfg.Frames,
			"channels":  cfg.Channels,
		}),
	}, nil
}

// NoiseModel returns the noise-class model
func (tr *Trainer) NoiseModel() *Model { return tr.noise }

// NoisyModel returns the noisy-class model
func (tr *Trainer) NoisyModel() *Model { return tr.noisy }

// Cache returns the shared covariance cache, nil before Initialize
func (tr *Trainer) Cache() *CovarianceCache { return tr.cache }

// Initialize builds the covariance cache and seeds the noise class with
// identity covariances and the noisy class with each bin's time-averaged
// observed covariance.
func (tr *Trainer) Initialize(spectra *Spectra) error {
	if err := tr.noise.checkSpectra(spectra); err != nil {
		return err
	}

	tr.logger.Debug("Initializing covariance")

	cache, err := NewCovarianceCache(spectra, tr.cfg.Channels)
	if err != nil {
		return fmt.Errorf("failed to build covariance cache: %w", err)
	}

	identities := make([]*mat.CDense, tr.cfg.Bins)
	averages := make([]*mat.CDense, tr.cfg.Bins)
	for f := range tr.cfg.Bins {
		identities[f] = identity(tr.cfg.Channels)
		averages[f] = cache.TimeAverage(f)
	}

	// Both seeds are validated before either model changes
	noiseSeed, err := tr.noise.prepareCovariance(identities)
	if err != nil {
		return fmt.Errorf("failed to initialize noise model: %w", err)
	}
	noisySeed, err := tr.noisy.prepareCovariance(averages)
	if err != nil {
		return fmt.Errorf("failed to initialize noisy model: %w", err)
	}

	tr.noise.installCovariance(noiseSeed)
	tr.noisy.installCovariance(noisySeed)
	tr.cache = cache
	return nil
}

// AccumulateStatistics runs the E-step on both classes and sums their
// posterior grids and likelihood proxies
func (tr *Trainer) AccumulateStatistics(spectra *Spectra) (*Statistics, error) {
	if tr.cache == nil {
		return nil, fmt.Errorf("trainer: %w", ErrUninitialized)
	}

	tr.logger.Debug("Accumulating statistics")

	postNoisy, llNoisy, err := tr.noisy.AccumulateStatistics(spectra)
	if err != nil {
		return nil, fmt.Errorf("failed to accumulate noisy statistics: %w", err)
	}
	postNoise, llNoise, err := tr.noise.AccumulateStatistics(spectra)
	if err != nil {
		return nil, fmt.Errorf("failed to accumulate noise statistics: %w", err)
	}

	cmplxs.Add(cells(postNoise), cells(postNoisy))

	return &Statistics{
		Joint:         postNoise,
		LogLikelihood: llNoise + llNoisy,
	}, nil
}

// UpdateParameters runs the M-step on both classes with the same joint
// normalizer and covariance cache
func (tr *Trainer) UpdateParameters(spectra *Spectra, stats *Statistics) error {
	if tr.cache == nil {
		return fmt.Errorf("trainer: %w", ErrUninitialized)
	}
	if stats == nil || stats.Joint == nil {
		return fmt.Errorf("%w: joint statistics are required", ErrShapeMismatch)
	}

	if !tr.cfg.ConcurrentClasses {
		if err := tr.noise.UpdateParameters(spectra, tr.cache, stats.Joint); err != nil {
			return err
		}
		return tr.noisy.UpdateParameters(spectra, tr.cache, stats.Joint)
	}

	var g errgroup.Group
	g.Go(func() error {
		return tr.noise.UpdateParameters(spectra, tr.cache, stats.Joint)
	})
	g.Go(func() error {
		return tr.noisy.UpdateParameters(spectra, tr.cache, stats.Joint)
	})
	return g.Wait()
}

// Train initializes both classes and runs exactly iterations EM epochs.
// There is no convergence check. The context is consulted between epochs.
func (tr *Trainer) Train(ctx context.Context, spectra *Spectra, iterations int) (*TrainingResult, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("iteration count must be non-negative, got %d", iterations)
	}

	start := time.Now()

	if err := tr.Initialize(spectra); err != nil {
		return nil, err
	}

	stats, err := tr.AccumulateStatistics(spectra)
	if err != nil {
		return nil, err
	}

	result := &TrainingResult{
		Iterations:        iterations,
		InitialLikelihood: stats.LogLikelihood,
		Epochs:            make([]Epoch, 0, iterations),
	}

	for it := 1; it <= iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted before epoch %d: %w", it, err)
		}

		if err := tr.UpdateParameters(spectra, stats); err != nil {
			return nil, fmt.Errorf("epoch %d: %w", it, err)
		}

		stats, err = tr.AccumulateStatistics(spectra)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", it, err)
		}

		ll := stats.LogLikelihood
		result.Epochs = append(result.Epochs, Epoch{Iteration: it, LogLikelihood: ll})

		tr.logger.Info("EM epoch completed", logging.Fields{
			"epoch":           it,
			"likelihood_real": real(ll),
			"likelihood_imag": imag(ll),
		})

		residue := math.Abs(imag(ll))
		result.MaxImagResidue = max(result.MaxImagResidue, residue)
		if err := tr.checkResidue("log-likelihood", residue); err != nil {
			return nil, fmt.Errorf("epoch %d: %w", it, err)
		}
	}

	result.Duration = time.Since(start)

	tr.logger.Debug("Training completed", logging.Fields{
		"iterations":       iterations,
		"duration_ms":      result.Duration.Milliseconds(),
		"max_imag_residue": result.MaxImagResidue,
	})

	return result, nil
}

// SelectNoiseMask picks, per bin, the responsibility row of the class with
// the more diffuse covariance. See MaskSelector.
func (tr *Trainer) SelectNoiseMask() (*Selection, error) {
	selector, err := NewMaskSelector(tr.noise, tr.noisy)
	if err != nil {
		return nil, err
	}

	selection, err := selector.SelectNoiseMask()
	if err != nil {
		return nil, err
	}

	if err := tr.checkResidue("mask", selection.MaxImagResidue); err != nil {
		return nil, err
	}
	return selection, nil
}

// checkResidue warns about (or, in strict mode, rejects) an imaginary part
// above tolerance on a quantity expected to be real
func (tr *Trainer) checkResidue(quantity string, residue float64) error {
	if residue <= tr.cfg.ImagTolerance {
		return nil
	}
	if tr.cfg.StrictImaginary {
		return fmt.Errorf("%w: %s residue %.3e exceeds %.3e", ErrImaginaryResidue, quantity, residue, tr.cfg.ImagTolerance)
	}
	tr.logger.Warn("Imaginary residue above tolerance", logging.Fields{
		"quantity":  quantity,
		"residue":   residue,
		"tolerance": tr.cfg.ImagTolerance,
	})
	return nil
}
