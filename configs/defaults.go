package configs

import (
	"runtime"

	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	// Audio defaults (librosa STFT defaults)
	if !v.IsSet("audio.window_size") {
		v.SetDefault("audio.window_size", 2048)
	}
	if !v.IsSet("audio.hop_size") {
		v.SetDefault("audio.hop_size", 512)
	}
	if !v.IsSet("audio.window_function") {
		v.SetDefault("audio.window_function", "hann")
	}
	if !v.IsSet("audio.center") {
		v.SetDefault("audio.center", true)
	}
	if !v.IsSet("audio.max_channels") {
		v.SetDefault("audio.max_channels", 0)
	}

	// Training defaults
	if !v.IsSet("training.iterations") {
		v.SetDefault("training.iterations", 30)
	}
	if !v.IsSet("training.workers") {
		v.SetDefault("training.workers", runtime.NumCPU())
	}
	if !v.IsSet("training.concurrent_classes") {
		v.SetDefault("training.concurrent_classes", false)
	}
	if !v.IsSet("training.joint_epsilon") {
		v.SetDefault("training.joint_epsilon", 1e-12)
	}
	if !v.IsSet("training.imag_tolerance") {
		v.SetDefault("training.imag_tolerance", 1e-6)
	}
	if !v.IsSet("training.strict_imaginary") {
		v.SetDefault("training.strict_imaginary", false)
	}

	// Output defaults
	if !v.IsSet("output.directory") {
		v.SetDefault("output.directory", ".")
	}
	if !v.IsSet("output.write_report") {
		v.SetDefault("output.write_report", true)
	}
	if !v.IsSet("output.include_bins") {
		v.SetDefault("output.include_bins", false)
	}
	if !v.IsSet("output.complex_mask") {
		v.SetDefault("output.complex_mask", false)
	}

	// Metrics defaults
	if !v.IsSet("metrics.enabled") {
		v.SetDefault("metrics.enabled", false)
	}
	if !v.IsSet("metrics.log_file") {
		v.SetDefault("metrics.log_file", "/tmp/cgmm-mask.log")
	}

	// Application defaults
	if !v.IsSet("verbose") {
		v.SetDefault("verbose", false)
	}
	if !v.IsSet("log_level") {
		v.SetDefault("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.SetDefault("output_format", "json")
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	return &Config{
		// Application settings defaults
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "json",

		// Audio processing configuration defaults
		Audio: GetDefaultAudioConfig(),

		// Training configuration defaults
		Training: GetDefaultTrainingConfig(),

		// Output configuration defaults
		Output: GetDefaultOutputConfig(),

		// Metrics defaults
		Metrics: MetricsConfig{
			Enabled: false,
			LogFile: "/tmp/cgmm-mask.log",
		},
	}
}

// GetDefaultAudioConfig returns default audio processing settings
func GetDefaultAudioConfig() AudioConfig {
	return AudioConfig{
		WindowSize:     2048,
		HopSize:        512,
		WindowFunction: "hann",
		Center:         true,
		MaxChannels:    0,
	}
}

// GetDefaultTrainingConfig returns default EM settings
func GetDefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Iterations:        30,
		Workers:           runtime.NumCPU(),
		ConcurrentClasses: false,
		JointEpsilon:      1e-12,
		ImagTolerance:     1e-6,
		StrictImaginary:   false,
	}
}

// GetDefaultOutputConfig returns default output settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Directory:   ".",
		WriteReport: true,
		IncludeBins: false,
		ComplexMask: false,
	}
}
