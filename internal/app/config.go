package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/cgmm-mask/configs"
	"github.com/RyanBlaney/cgmm-mask/pkg/audio"
	"gopkg.in/yaml.v3"
)

// JobConfig is a per-run job file. Zero values and nil pointers leave the
// application configuration untouched.
type JobConfig struct {
	Input        string `yaml:"input" json:"input"`
	Dest         string `yaml:"dest" json:"dest"`
	OutputFormat string `yaml:"output_format" json:"output_format"`

	Iterations        *int  `yaml:"iterations" json:"iterations"`
	Workers           int   `yaml:"workers" json:"workers"`
	ConcurrentClasses *bool `yaml:"concurrent_classes" json:"concurrent_classes"`
	StrictImaginary   *bool `yaml:"strict_imaginary" json:"strict_imaginary"`

	WindowSize     int    `yaml:"window_size" json:"window_size"`
	HopSize        int    `yaml:"hop_size" json:"hop_size"`
	WindowFunction string `yaml:"window_function" json:"window_function"`
	Center         *bool  `yaml:"center" json:"center"`
	MaxChannels    int    `yaml:"max_channels" json:"max_channels"`

	ComplexMask *bool `yaml:"complex_mask" json:"complex_mask"`
}

// MaskConfig is the effective configuration of one run
type MaskConfig struct {
	configs.Config `yaml:",inline" mapstructure:",squash"`

	Input string `yaml:"input" json:"input"`
	Dest  string `yaml:"dest" json:"dest"`
}

// Validate checks the merged configuration
func (c *MaskConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input audio file is required")
	}
	if err := configs.ValidateConfig(&c.Config); err != nil {
		return err
	}
	return c.STFTConfig().Validate()
}

// STFTConfig converts the audio settings for the spectral analyzer. Window
// aliases are resolved here; an unknown name is passed through so Validate
// reports it.
func (c *MaskConfig) STFTConfig() *audio.STFTConfig {
	window, err := audio.ParseWindowFunction(c.Audio.WindowFunction)
	if err != nil {
		window = audio.WindowFunction(c.Audio.WindowFunction)
	}

	return &audio.STFTConfig{
		WindowSize:  c.Audio.WindowSize,
		HopSize:     c.Audio.HopSize,
		Window:      window,
		Center:      c.Audio.Center,
		MaxChannels: c.Audio.MaxChannels,
	}
}

// loadJobConfigFromFile loads a job file, choosing the decoder by extension
func loadJobConfigFromFile(filePath string) (*JobConfig, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("job file does not exist: %s", filePath)
	}

	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		return loadJobConfigFromYAML(filePath)
	case ".json":
		return loadJobConfigFromJSON(filePath)
	default:
		// Try YAML first, then JSON
		if cfg, err := loadJobConfigFromYAML(filePath); err == nil {
			return cfg, nil
		}
		return loadJobConfigFromJSON(filePath)
	}
}

func loadJobConfigFromYAML(filePath string) (*JobConfig, error) {
	data, err := readFile(filePath)
	if err != nil {
		return nil, err
	}

	var job JobConfig
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse YAML job file: %w", err)
	}
	return &job, nil
}

func loadJobConfigFromJSON(filePath string) (*JobConfig, error) {
	data, err := readFile(filePath)
	if err != nil {
		return nil, err
	}

	var job JobConfig
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse JSON job file: %w", err)
	}
	return &job, nil
}

func readFile(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open job file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return data, nil
}

// mergeMaskConfig layers base config, job file and CLI flags, in that order
func mergeMaskConfig(baseConfig *configs.Config, job *JobConfig, ctx *Context) *MaskConfig {
	cfg := &MaskConfig{Config: *baseConfig, Dest: baseConfig.Output.Directory}

	if job != nil {
		applyJobConfig(cfg, job)
	}

	// Override with CLI flags
	if ctx.InputFile != "" {
		cfg.Input = ctx.InputFile
	}
	if ctx.DestDir != "" {
		cfg.Dest = ctx.DestDir
	}
	if ctx.OutputFormat != "" {
		cfg.OutputFormat = ctx.OutputFormat
	}
	if ctx.Iterations != nil {
		cfg.Training.Iterations = *ctx.Iterations
	}
	if ctx.Workers > 0 {
		cfg.Training.Workers = ctx.Workers
	}
	if ctx.WindowSize > 0 {
		cfg.Audio.WindowSize = ctx.WindowSize
	}
	if ctx.HopSize > 0 {
		cfg.Audio.HopSize = ctx.HopSize
	}
	if ctx.MaxChannels > 0 {
		cfg.Audio.MaxChannels = ctx.MaxChannels
	}
	if ctx.Verbose {
		cfg.Verbose = true
		cfg.Output.IncludeBins = true
	}
	if ctx.EnableMetrics {
		cfg.Metrics.Enabled = true
	}
	if ctx.ComplexMask {
		cfg.Output.ComplexMask = true
	}

	return cfg
}

func applyJobConfig(cfg *MaskConfig, job *JobConfig) {
	if job.Input != "" {
		cfg.Input = job.Input
	}
	if job.Dest != "" {
		cfg.Dest = job.Dest
	}
	if job.OutputFormat != "" {
		cfg.OutputFormat = job.OutputFormat
	}
	if job.Iterations != nil {
		cfg.Training.Iterations = *job.Iterations
	}
	if job.Workers > 0 {
		cfg.Training.Workers = job.Workers
	}
	if job.ConcurrentClasses != nil {
		cfg.Training.ConcurrentClasses = *job.ConcurrentClasses
	}
	if job.StrictImaginary != nil {
		cfg.Training.StrictImaginary = *job.StrictImaginary
	}
	if job.WindowSize > 0 {
		cfg.Audio.WindowSize = job.WindowSize
	}
	if job.HopSize > 0 {
		cfg.Audio.HopSize = job.HopSize
	}
	if job.WindowFunction != "" {
		cfg.Audio.WindowFunction = job.WindowFunction
	}
	if job.Center != nil {
		cfg.Audio.Center = *job.Center
	}
	if job.MaxChannels > 0 {
		cfg.Audio.MaxChannels = job.MaxChannels
	}
	if job.ComplexMask != nil {
		cfg.Output.ComplexMask = *job.ComplexMask
	}
}

// GenerateExampleJob writes an example job file in YAML
func GenerateExampleJob(outputFile string) error {
	iterations := 30
	center := true
	example := &JobConfig{
		Input:          "recordings/array.wav",
		Dest:           "out",
		OutputFormat:   "json",
		Iterations:     &iterations,
		WindowSize:     2048,
		HopSize:        512,
		WindowFunction: "hann",
		Center:         &center,
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example job: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write example job file: %w", err)
	}

	fmt.Printf("Example job written to: %s\n", outputFile)
	return nil
}

// ValidateJobFile validates a job file against the default configuration
func ValidateJobFile(jobFile string) error {
	job, err := loadJobConfigFromFile(jobFile)
	if err != nil {
		return fmt.Errorf("failed to load job file: %w", err)
	}

	merged := mergeMaskConfig(configs.GetDefaultConfig(), job, &Context{})
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("job validation failed: %w", err)
	}

	fmt.Printf("Job file is valid: %s\n", jobFile)
	fmt.Printf("   - Input: %s\n", merged.Input)
	fmt.Printf("   - Iterations: %d\n", merged.Training.Iterations)
	fmt.Printf("   - STFT: window=%d hop=%d\n", merged.Audio.WindowSize, merged.Audio.HopSize)

	return nil
}
