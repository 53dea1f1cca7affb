package configs

import (
	"testing"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromDefaults(t *testing.T) {
	config, err := LoadConfigFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), config)
	assert.NoError(t, ValidateConfig(config))
}

func TestLoadConfigFromOverrides(t *testing.T) {
	v := viper.New()
	v.Set("training.iterations", 5)
	v.Set("audio.hop_size", 256)
	v.Set("output_format", "yaml")
	v.Set("metrics.enabled", true)

	config, err := LoadConfigFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 5, config.Training.Iterations)
	assert.Equal(t, 256, config.Audio.HopSize)
	assert.Equal(t, 2048, config.Audio.WindowSize)
	assert.Equal(t, "yaml", config.OutputFormat)
	assert.True(t, config.Metrics.Enabled)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window too small", func(c *Config) { c.Audio.WindowSize = 1 }},
		{"zero hop", func(c *Config) { c.Audio.HopSize = 0 }},
		{"negative channels", func(c *Config) { c.Audio.MaxChannels = -1 }},
		{"negative iterations", func(c *Config) { c.Training.Iterations = -1 }},
		{"negative epsilon", func(c *Config) { c.Training.JointEpsilon = -1 }},
		{"negative tolerance", func(c *Config) { c.Training.ImagTolerance = -1 }},
		{"unknown format", func(c *Config) { c.OutputFormat = "xml" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)
			assert.Error(t, ValidateConfig(config))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  logging.Level
	}{
		{"debug", logging.DebugLevel},
		{"DEBUG", logging.DebugLevel},
		{"info", logging.InfoLevel},
		{"", logging.InfoLevel},
		{"warning", logging.WarnLevel},
		{"error", logging.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}
