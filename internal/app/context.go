package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RyanBlaney/cgmm-mask/configs"
	"github.com/RyanBlaney/cgmm-mask/internal/cgmm"
	"github.com/RyanBlaney/cgmm-mask/internal/report"
	"github.com/RyanBlaney/cgmm-mask/pkg/audio"
	"github.com/RyanBlaney/cgmm-mask/pkg/maskio"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	JobFile       string // Per-run job file (optional)
	InputFile     string
	DestDir       string
	OutputFile    string // Report destination, stdout when empty
	OutputFormat  string
	Iterations    *int // nil keeps the configured value
	Workers       int
	WindowSize    int
	HopSize       int
	MaxChannels   int
	Verbose       bool
	Quiet         bool
	EnableMetrics bool
	ComplexMask   bool // Persist the complex mask instead of its real part

	// Runtime context
	Logger logging.Logger
	Config *MaskConfig
}

// MaskApp handles the mask estimation lifecycle
type MaskApp struct {
	ctx    *Context
	config *MaskConfig
	logger logging.Logger
}

// RunResult is everything a completed run produced
type RunResult struct {
	Spectra   *cgmm.Spectra
	Training  *cgmm.TrainingResult
	Selection *cgmm.Selection
	MaskPath  string
	Report    *report.Report
}

// NewMaskApp creates a new mask application
func NewMaskApp(ctx *Context) (*MaskApp, error) {
	// Set up logging
	logger := setupLogging(ctx)
	ctx.Logger = logger

	// Load configuration
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	level, err := configs.ParseLogLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	logging.SetLevel(level)

	logger.Debug("Mask application initialized", logging.Fields{
		"job_file":      ctx.JobFile,
		"input":         config.Input,
		"dest":          config.Dest,
		"output_format": config.OutputFormat,
		"iterations":    config.Training.Iterations,
		"log_level":     level.String(),
	})

	return &MaskApp{
		ctx:    ctx,
		config: config,
		logger: logger,
	}, nil
}

// Config returns the effective configuration
func (app *MaskApp) Config() *MaskConfig {
	return app.config
}

// Run decodes the input, trains both mixture classes, selects the noise mask,
// persists it and emits the run report
func (app *MaskApp) Run(ctx context.Context) error {
	result, err := app.Execute(ctx)
	if err != nil {
		return err
	}

	if err := app.outputResults(result.Report); err != nil {
		return fmt.Errorf("failed to output results: %w", err)
	}

	if app.config.Metrics.Enabled {
		app.collectTrainingMetrics(result)
	}

	return nil
}

// Execute runs the pipeline without emitting the report
func (app *MaskApp) Execute(ctx context.Context) (*RunResult, error) {
	cfg := app.config
	stftConfig := cfg.STFTConfig()

	app.logger.Debug("Decoding input audio", logging.Fields{
		"input":        cfg.Input,
		"max_channels": stftConfig.MaxChannels,
	})

	decoded, err := audio.ReadMultichannel(cfg.Input, stftConfig.MaxChannels)
	if err != nil {
		return nil, fmt.Errorf("failed to read input audio: %w", err)
	}

	analyzer := audio.NewSpectralAnalyzer(decoded.SampleRate, cfg.Training.Workers, app.logger)
	spectra, err := analyzer.MultichannelSTFT(decoded.Channels, stftConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to compute STFT: %w", err)
	}

	bins, frames, channels := spectra.Shape()
	app.logger.Info("Spectra ready", logging.Fields{
		"bins":        bins,
		"frames":      frames,
		"channels":    channels,
		"sample_rate": decoded.SampleRate,
	})

	trainerConfig := cgmm.DefaultConfig(bins, frames, channels)
	trainerConfig.Workers = cfg.Training.Workers
	trainerConfig.ConcurrentClasses = cfg.Training.ConcurrentClasses
	trainerConfig.JointEpsilon = cfg.Training.JointEpsilon
	trainerConfig.ImagTolerance = cfg.Training.ImagTolerance
	trainerConfig.StrictImaginary = cfg.Training.StrictImaginary
	trainerConfig.Logger = app.logger

	trainer, err := cgmm.NewTrainer(trainerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create trainer: %w", err)
	}

	training, err := trainer.Train(ctx, spectra, cfg.Training.Iterations)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	selection, err := trainer.SelectNoiseMask()
	if err != nil {
		return nil, fmt.Errorf("mask selection failed: %w", err)
	}

	var residue float64
	if cfg.Output.ComplexMask {
		err = maskio.SaveComplex(cfg.Dest, selection.Mask)
	} else {
		residue, err = maskio.Save(cfg.Dest, selection.Mask)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save mask: %w", err)
	}
	maskPath := maskio.Path(cfg.Dest)

	app.logger.Info("Noise mask saved", logging.Fields{
		"path":              maskPath,
		"noise_bins":        selection.NoiseBins(),
		"complex":           cfg.Output.ComplexMask,
		"discarded_residue": residue,
	})

	rpt := report.NewCalculator(app.logger).Build(&report.Input{
		Source: cfg.Input,
		Dimensions: report.Dimensions{
			Bins:       bins,
			Frames:     frames,
			Channels:   channels,
			SampleRate: decoded.SampleRate,
			WindowSize: stftConfig.WindowSize,
			HopSize:    stftConfig.HopSize,
		},
		Result:      training,
		Selection:   selection,
		MaskPath:    maskPath,
		IncludeBins: cfg.Output.IncludeBins,
	})

	return &RunResult{
		Spectra:   spectra,
		Training:  training,
		Selection: selection,
		MaskPath:  maskPath,
		Report:    rpt,
	}, nil
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	if ctx.Logger != nil {
		return ctx.Logger
	}
	return logging.NewDefaultLogger()
}

// loadAndMergeConfig loads configuration from files and merges with CLI flags
func loadAndMergeConfig(ctx *Context) (*MaskConfig, error) {
	// Load base configuration
	baseConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	// Load job-specific configuration from file
	var job *JobConfig
	if ctx.JobFile != "" {
		job, err = loadJobConfigFromFile(ctx.JobFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load job file: %w", err)
		}
	}

	merged := mergeMaskConfig(baseConfig, job, ctx)

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return merged, nil
}

// outputResults formats the report and writes it to the output file or stdout
func (app *MaskApp) outputResults(rpt *report.Report) error {
	if !app.config.Output.WriteReport || app.ctx.Quiet {
		return nil
	}

	formatter := newFormatter(app.config.OutputFormat)

	formattedData, err := formatter.Format(rpt, true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	if app.ctx.OutputFile != "" {
		return app.writeToFile(formattedData)
	}

	_, err = os.Stdout.Write(formattedData)
	return err
}

func newFormatter(format string) output.Formatter {
	switch strings.ToLower(format) {
	case "yaml":
		return &output.YAMLFormatter{}
	case "csv":
		return &output.CSVFormatter{}
	case "table":
		return &output.TableFormatter{}
	default:
		return &output.JSONFormatter{}
	}
}

// collectTrainingMetrics sends run metrics to rootcollector
func (app *MaskApp) collectTrainingMetrics(result *RunResult) {
	if result == nil || result.Training == nil || result.Selection == nil {
		return
	}

	err := rootlogger.Configure(logger.LogOptions{
		Out:          app.config.Metrics.LogFile,
		ReopenSignal: syscall.SIGHUP,
		Level:        logtypes.InfoLevel,
	})
	if err != nil {
		logging.Error(err, "Failed configuring log writer")
	}

	bins, frames, channels := result.Spectra.Shape()
	tags := []string{
		fmt.Sprintf("bins:%d", bins),
		fmt.Sprintf("frames:%d", frames),
		fmt.Sprintf("channels:%d", channels),
	}

	rootcollector.Metric("cgmm.training.duration.milliseconds", result.Training.Duration.Milliseconds(), tags)
	rootcollector.Metric("cgmm.training.iterations", int64(result.Training.Iterations), tags)
	rootcollector.Metric("cgmm.mask.noise_bins", int64(result.Selection.NoiseBins()), tags)

	// residue in parts per billion
	residue := int64(math.Round(result.Selection.MaxImagResidue * 1e9))
	rootcollector.Metric("cgmm.mask.imag_residue.ppb", residue, tags)
}

// writeToFile writes data to the specified output file
func (app *MaskApp) writeToFile(data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Report written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}
