package audio

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// SpectralTestSuite covers single and multichannel STFT
type SpectralTestSuite struct {
	suite.Suite
	sampleRate int
	analyzer   *SpectralAnalyzer
}

func (suite *SpectralTestSuite) SetupSuite() {
	suite.sampleRate = 8000
	suite.analyzer = NewSpectralAnalyzer(suite.sampleRate, 2, logging.NewDefaultLogger())
}

func sine(freq float64, sampleRate, n int, phase float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate) + phase)
	}
	return x
}

func (suite *SpectralTestSuite) TestSTFTShape() {
	cfg := &STFTConfig{WindowSize: 64, HopSize: 16, Window: WindowHann, Center: true}
	spec, err := suite.analyzer.STFT(make([]float64, 256), cfg)
	suite.Require().NoError(err)

	// centered: 1 + 256/16
	suite.Len(spec, 33)
	suite.Len(spec[0], 17)
	suite.Equal(cfg.Frames(256), len(spec[0]))

	cfg.Center = false
	spec, err = suite.analyzer.STFT(make([]float64, 256), cfg)
	suite.Require().NoError(err)
	suite.Len(spec[0], 1+(256-64)/16)
}

func (suite *SpectralTestSuite) TestSTFTSinePeak() {
	cfg := &STFTConfig{WindowSize: 256, HopSize: 128, Window: WindowHann}
	// 1000 Hz at 8 kHz with 256 points sits exactly on bin 32
	signal := sine(1000, suite.sampleRate, 2048, 0)

	spec, err := suite.analyzer.STFT(signal, cfg)
	suite.Require().NoError(err)

	for t := range spec[0] {
		peak, best := 0, 0.0
		for f := range spec {
			if mag := cmplx.Abs(spec[f][t]); mag > best {
				peak, best = f, mag
			}
		}
		suite.Equal(32, peak, "frame %d", t)
	}
}

func (suite *SpectralTestSuite) TestSTFTRejectsShortSignal() {
	cfg := &STFTConfig{WindowSize: 64, HopSize: 16, Window: WindowHann}
	_, err := suite.analyzer.STFT(make([]float64, 10), cfg)
	suite.Error(err)

	_, err = suite.analyzer.STFT(nil, cfg)
	suite.Error(err)
}

func (suite *SpectralTestSuite) TestMultichannelSTFTLayout() {
	cfg := &STFTConfig{WindowSize: 32, HopSize: 8, Window: WindowHann, Center: true}
	channels := [][]float64{
		sine(500, suite.sampleRate, 200, 0),
		sine(500, suite.sampleRate, 200, math.Pi/3),
		sine(1500, suite.sampleRate, 200, 0),
	}

	spectra, err := suite.analyzer.MultichannelSTFT(channels, cfg)
	suite.Require().NoError(err)

	bins, frames, numChannels := spectra.Shape()
	suite.Equal(17, bins)
	suite.Equal(cfg.Frames(200), frames)
	suite.Equal(3, numChannels)

	for c, ch := range channels {
		single, err := suite.analyzer.STFT(ch, cfg)
		suite.Require().NoError(err)
		for f := range bins {
			for t := range frames {
				suite.Equal(single[f][t], spectra.At(f, t)[c])
			}
		}
	}
}

func (suite *SpectralTestSuite) TestMultichannelSTFTRejectsRagged() {
	cfg := DefaultSTFTConfig()
	_, err := suite.analyzer.MultichannelSTFT([][]float64{make([]float64, 4096), make([]float64, 4000)}, cfg)
	suite.Error(err)

	_, err = suite.analyzer.MultichannelSTFT(nil, cfg)
	suite.Error(err)
}

func TestSpectralTestSuite(t *testing.T) {
	suite.Run(t, new(SpectralTestSuite))
}

func TestReflectPad(t *testing.T) {
	assert.Equal(t, []float64{3, 2, 1, 2, 3, 4, 3, 2}, reflectPad([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, []float64{7, 7, 7, 7, 7}, reflectPad([]float64{7}, 2))
	// pad longer than the signal keeps folding
	assert.Equal(t, []float64{1, 2, 1, 2, 1, 2, 1}, reflectPad([]float64{1, 2}, 3)[1:8])
}

func TestAnalysisWindowIsPeriodic(t *testing.T) {
	w := analysisWindow(WindowHann, 8)
	require.Len(t, w, 8)
	assert.InDelta(t, 0, w[0], 1e-12)
	assert.InDelta(t, 1, w[4], 1e-12)
	// periodic: symmetric around n/2, not around (n-1)/2
	assert.InDelta(t, w[3], w[5], 1e-12)

	r := analysisWindow(WindowRectangular, 4)
	assert.Equal(t, []float64{1, 1, 1, 1}, r)
}

func TestAnalysisWindowResolvesAliases(t *testing.T) {
	for _, alias := range []WindowFunction{"boxcar", "Rectangular", "rect", "none"} {
		t.Run(string(alias), func(t *testing.T) {
			assert.Equal(t, []float64{1, 1, 1, 1, 1}, analysisWindow(alias, 5))
		})
	}
	assert.Equal(t, analysisWindow(WindowHann, 8), analysisWindow("HANNING", 8))
}

func (suite *SpectralTestSuite) TestSTFTWindowAlias() {
	signal := sine(440, suite.sampleRate, 512, 0.3)

	canonical, err := suite.analyzer.STFT(signal, &STFTConfig{WindowSize: 64, HopSize: 32, Window: WindowRectangular, Center: true})
	suite.Require().NoError(err)
	aliased, err := suite.analyzer.STFT(signal, &STFTConfig{WindowSize: 64, HopSize: 32, Window: "boxcar", Center: true})
	suite.Require().NoError(err)

	suite.Equal(canonical, aliased)
}

func TestSTFTConfig(t *testing.T) {
	cfg := DefaultSTFTConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1025, cfg.Bins())
	assert.Equal(t, 1+22050/512, cfg.Frames(22050))

	cfg.HopSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultSTFTConfig()
	cfg.Window = "kaiser"
	assert.Error(t, cfg.Validate())

	w, err := ParseWindowFunction("Hanning")
	require.NoError(t, err)
	assert.Equal(t, WindowHann, w)
}
