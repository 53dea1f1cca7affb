package configs

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format" json:"output_format"`

	// Audio decoding and STFT configuration
	Audio AudioConfig `mapstructure:"audio" yaml:"audio" json:"audio"`

	// EM training configuration
	Training TrainingConfig `mapstructure:"training" yaml:"training" json:"training"`

	// Mask and report output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Operational metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// AudioConfig contains audio processing settings
type AudioConfig struct {
	WindowSize     int    `mapstructure:"window_size" yaml:"window_size" json:"window_size"`
	HopSize        int    `mapstructure:"hop_size" yaml:"hop_size" json:"hop_size"`
	WindowFunction string `mapstructure:"window_function" yaml:"window_function" json:"window_function"`
	Center         bool   `mapstructure:"center" yaml:"center" json:"center"`
	MaxChannels    int    `mapstructure:"max_channels" yaml:"max_channels" json:"max_channels"`
}

// TrainingConfig contains EM settings
type TrainingConfig struct {
	Iterations        int     `mapstructure:"iterations" yaml:"iterations" json:"iterations"`
	Workers           int     `mapstructure:"workers" yaml:"workers" json:"workers"`
	ConcurrentClasses bool    `mapstructure:"concurrent_classes" yaml:"concurrent_classes" json:"concurrent_classes"`
	JointEpsilon      float64 `mapstructure:"joint_epsilon" yaml:"joint_epsilon" json:"joint_epsilon"`
	ImagTolerance     float64 `mapstructure:"imag_tolerance" yaml:"imag_tolerance" json:"imag_tolerance"`
	StrictImaginary   bool    `mapstructure:"strict_imaginary" yaml:"strict_imaginary" json:"strict_imaginary"`
}

// OutputConfig contains output settings
type OutputConfig struct {
	Directory   string `mapstructure:"directory" yaml:"directory" json:"directory"`
	WriteReport bool   `mapstructure:"write_report" yaml:"write_report" json:"write_report"`
	IncludeBins bool   `mapstructure:"include_bins" yaml:"include_bins" json:"include_bins"`

	// ComplexMask writes the mask as complex128 instead of its real part
	ComplexMask bool `mapstructure:"complex_mask" yaml:"complex_mask" json:"complex_mask"`
}

// MetricsConfig contains operational metric settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	LogFile string `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom decodes configuration from v, filling unset keys with defaults
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Audio.WindowSize < 2 {
		return fmt.Errorf("audio window size must be at least 2")
	}

	if config.Audio.HopSize <= 0 {
		return fmt.Errorf("audio hop size must be positive")
	}

	if config.Audio.MaxChannels < 0 {
		return fmt.Errorf("audio max channels cannot be negative")
	}

	if config.Training.Iterations < 0 {
		return fmt.Errorf("training iterations cannot be negative")
	}

	if config.Training.JointEpsilon < 0 {
		return fmt.Errorf("joint epsilon cannot be negative")
	}

	if config.Training.ImagTolerance < 0 {
		return fmt.Errorf("imaginary tolerance cannot be negative")
	}

	if _, err := ParseLogLevel(config.LogLevel); err != nil {
		return err
	}

	switch config.OutputFormat {
	case "json", "yaml", "table", "csv":
	default:
		return fmt.Errorf("unsupported output format: %s", config.OutputFormat)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a logger level
func ParseLogLevel(level string) (logging.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logging.DebugLevel, nil
	case "info", "":
		return logging.InfoLevel, nil
	case "warn", "warning":
		return logging.WarnLevel, nil
	case "error":
		return logging.ErrorLevel, nil
	default:
		return logging.InfoLevel, fmt.Errorf("unsupported log level: %s", level)
	}
}
