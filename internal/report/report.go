package report

import (
	"math"
	"time"

	"github.com/RyanBlaney/cgmm-mask/internal/cgmm"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/stat"
)

// Calculator turns training and selection results into a Report
type Calculator struct {
	logger logging.Logger
}

// NewCalculator creates a new report calculator
func NewCalculator(logger logging.Logger) *Calculator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Calculator{
		logger: logger,
	}
}

// ComplexValue is a JSON/YAML friendly complex number
type ComplexValue struct {
	Real float64 `json:"real" yaml:"real"`
	Imag float64 `json:"imag" yaml:"imag"`
}

// Dimensions describes the spectra a model was trained on
type Dimensions struct {
	Bins       int `json:"bins" yaml:"bins"`
	Frames     int `json:"frames" yaml:"frames"`
	Channels   int `json:"channels" yaml:"channels"`
	SampleRate int `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	WindowSize int `json:"window_size,omitempty" yaml:"window_size,omitempty"`
	HopSize    int `json:"hop_size,omitempty" yaml:"hop_size,omitempty"`
}

// EpochSummary is one point of the likelihood trajectory
type EpochSummary struct {
	Iteration  int          `json:"iteration" yaml:"iteration"`
	Likelihood ComplexValue `json:"likelihood" yaml:"likelihood"`
}

// TrainingSummary summarizes the EM run
type TrainingSummary struct {
	Iterations        int            `json:"iterations" yaml:"iterations"`
	DurationMs        int64          `json:"duration_ms" yaml:"duration_ms"`
	InitialLikelihood ComplexValue   `json:"initial_likelihood" yaml:"initial_likelihood"`
	FinalLikelihood   ComplexValue   `json:"final_likelihood" yaml:"final_likelihood"`
	MaxImagResidue    float64        `json:"max_imag_residue" yaml:"max_imag_residue"`
	Trajectory        []EpochSummary `json:"trajectory,omitempty" yaml:"trajectory,omitempty"`
}

// MaskStats represents statistical measures of the selected mask's real part
type MaskStats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Count  int     `json:"count" yaml:"count"`
}

// MaskSummary summarizes the selected mask
type MaskSummary struct {
	NoiseBins        int       `json:"noise_bins" yaml:"noise_bins"`
	NoisyBins        int       `json:"noisy_bins" yaml:"noisy_bins"`
	NoiseBinFraction float64   `json:"noise_bin_fraction" yaml:"noise_bin_fraction"`
	MaxImagResidue   float64   `json:"max_imag_residue" yaml:"max_imag_residue"`
	Stats            MaskStats `json:"stats" yaml:"stats"`
	Path             string    `json:"path,omitempty" yaml:"path,omitempty"`
}

// BinSummary reports the selection decision of one frequency bin
type BinSummary struct {
	Bin          int     `json:"bin" yaml:"bin"`
	FrequencyHz  float64 `json:"frequency_hz,omitempty" yaml:"frequency_hz,omitempty"`
	NoiseEntropy float64 `json:"noise_entropy" yaml:"noise_entropy"`
	NoisyEntropy float64 `json:"noisy_entropy" yaml:"noisy_entropy"`
	Source       string  `json:"source" yaml:"source"`
}

// Report is the complete per-run summary
type Report struct {
	Timestamp  time.Time       `json:"timestamp" yaml:"timestamp"`
	Input      string          `json:"input,omitempty" yaml:"input,omitempty"`
	Dimensions Dimensions      `json:"dimensions" yaml:"dimensions"`
	Training   TrainingSummary `json:"training" yaml:"training"`
	Mask       MaskSummary     `json:"mask" yaml:"mask"`
	Bins       []BinSummary    `json:"bins,omitempty" yaml:"bins,omitempty"`
}

// Input bundles everything a report is built from
type Input struct {
	Source     string
	Dimensions Dimensions
	Result     *cgmm.TrainingResult
	Selection  *cgmm.Selection
	MaskPath   string

	// IncludeBins adds the per-bin entropy table
	IncludeBins bool
}

// Build assembles a Report. Non-finite values are zeroed so every output
// format can encode the result.
func (c *Calculator) Build(in *Input) *Report {
	r := &Report{
		Timestamp:  time.Now(),
		Input:      in.Source,
		Dimensions: in.Dimensions,
	}

	if in.Result != nil {
		r.Training = c.trainingSummary(in.Result)
	}
	if in.Selection != nil {
		r.Mask = c.maskSummary(in.Selection)
		r.Mask.Path = in.MaskPath
		if in.IncludeBins {
			r.Bins = c.binSummaries(in.Selection, in.Dimensions)
		}
	}

	c.logger.Debug("Report built", logging.Fields{
		"iterations": r.Training.Iterations,
		"noise_bins": r.Mask.NoiseBins,
		"bins":       len(r.Bins),
	})

	return r
}

func (c *Calculator) trainingSummary(result *cgmm.TrainingResult) TrainingSummary {
	summary := TrainingSummary{
		Iterations:        result.Iterations,
		DurationMs:        result.Duration.Milliseconds(),
		InitialLikelihood: complexValue(result.InitialLikelihood),
		FinalLikelihood:   complexValue(result.FinalLikelihood()),
		MaxImagResidue:    finiteOrZero(result.MaxImagResidue),
		Trajectory:        make([]EpochSummary, 0, len(result.Epochs)),
	}
	for _, epoch := range result.Epochs {
		summary.Trajectory = append(summary.Trajectory, EpochSummary{
			Iteration:  epoch.Iteration,
			Likelihood: complexValue(epoch.LogLikelihood),
		})
	}
	return summary
}

func (c *Calculator) maskSummary(selection *cgmm.Selection) MaskSummary {
	bins := len(selection.Sources)
	noiseBins := selection.NoiseBins()

	summary := MaskSummary{
		NoiseBins:      noiseBins,
		NoisyBins:      bins - noiseBins,
		MaxImagResidue: finiteOrZero(selection.MaxImagResidue),
	}
	if bins > 0 {
		summary.NoiseBinFraction = float64(noiseBins) / float64(bins)
	}

	if selection.Mask != nil && !selection.Mask.IsEmpty() {
		rows, cols := selection.Mask.Dims()
		values := make([]float64, 0, rows*cols)
		for i := range rows {
			for j := range cols {
				values = append(values, real(selection.Mask.At(i, j)))
			}
		}
		summary.Stats = c.calculateStats(values)
	}

	return summary
}

func (c *Calculator) binSummaries(selection *cgmm.Selection, dims Dimensions) []BinSummary {
	var resolution float64
	if dims.SampleRate > 0 && dims.WindowSize > 0 {
		resolution = float64(dims.SampleRate) / float64(dims.WindowSize)
	}

	out := make([]BinSummary, len(selection.Sources))
	for f, source := range selection.Sources {
		out[f] = BinSummary{
			Bin:          f,
			FrequencyHz:  float64(f) * resolution,
			NoiseEntropy: finiteOrZero(selection.NoiseEntropy[f]),
			NoisyEntropy: finiteOrZero(selection.NoisyEntropy[f]),
			Source:       ClassLabel(source),
		}
	}
	return out
}

// calculateStats computes statistical measures for a set of values
func (c *Calculator) calculateStats(data []float64) MaskStats {
	if len(data) == 0 {
		return MaskStats{}
	}

	stats := MaskStats{
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
		Count: len(data),
	}
	for _, v := range data {
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	stats.Mean, stats.StdDev = stat.PopMeanStdDev(data, nil)

	return sanitizeStats(stats)
}

// ClassLabel returns the display label of a mixture class. A Caser holds
// state, so each call gets its own.
func ClassLabel(class cgmm.Class) string {
	return cases.Title(language.English).String(string(class))
}

// sanitizeStats removes infinite and NaN values to prevent serialization errors
func sanitizeStats(stats MaskStats) MaskStats {
	stats.Mean = finiteOrZero(stats.Mean)
	stats.StdDev = finiteOrZero(stats.StdDev)
	stats.Min = finiteOrZero(stats.Min)
	stats.Max = finiteOrZero(stats.Max)
	return stats
}

func complexValue(z complex128) ComplexValue {
	return ComplexValue{Real: finiteOrZero(real(z)), Imag: finiteOrZero(imag(z))}
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
