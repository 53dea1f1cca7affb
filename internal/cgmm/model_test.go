package cgmm

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/mat"
)

// fixtureSpectra returns a 2-bin, 3-frame, 2-channel tensor whose channel
// vectors are linearly independent within each bin
func fixtureSpectra(t *testing.T) *Spectra {
	t.Helper()
	s, err := SpectraFromNested([][][]complex128{
		{
			{1, 0.5i},
			{0.2, 1 - 0.3i},
			{-0.7 + 0.1i, 0.4},
		},
		{
			{0.3 - 0.2i, 1.1},
			{1.5i, -0.4 + 0.2i},
			{0.9, 0.8 + 0.6i},
		},
	})
	require.NoError(t, err)
	return s
}

func testConfig(bins, frames, channels int) *Config {
	cfg := DefaultConfig(bins, frames, channels)
	cfg.Logger = logging.NewDefaultLogger()
	return cfg
}

// ModelTestSuite exercises a single mixture class against the fixture tensor
type ModelTestSuite struct {
	suite.Suite
	spectra *Spectra
	cache   *CovarianceCache
	cfg     *Config
	model   *Model
}

func (suite *ModelTestSuite) SetupTest() {
	suite.spectra = fixtureSpectra(suite.T())
	suite.cfg = testConfig(2, 3, 2)

	cache, err := NewCovarianceCache(suite.spectra, 2)
	suite.Require().NoError(err)
	suite.cache = cache

	model, err := NewModel(ClassNoise, suite.cfg)
	suite.Require().NoError(err)
	suite.model = model
}

func (suite *ModelTestSuite) identities() []*mat.CDense {
	return []*mat.CDense{identity(2), identity(2)}
}

func (suite *ModelTestSuite) TestNewModelDefaults() {
	suite.Equal(StateUninitialized, suite.model.State())
	suite.Equal(ClassNoise, suite.model.Class())

	bins, frames, channels := suite.model.Dims()
	suite.Equal(2, bins)
	suite.Equal(3, frames)
	suite.Equal(2, channels)

	lambda := suite.model.Responsibility()
	phi := suite.model.Scale()
	for f := range bins {
		for t := range frames {
			suite.Equal(complex128(0), lambda.At(f, t))
			suite.Equal(complex128(1), phi.At(f, t))
		}
	}
	suite.Nil(suite.model.Precision(0))
}

func (suite *ModelTestSuite) TestNewModelRejectsBadConfig() {
	_, err := NewModel(ClassNoise, nil)
	suite.Error(err)

	_, err = NewModel(ClassNoise, testConfig(0, 3, 2))
	suite.Error(err)

	cfg := testConfig(2, 3, 2)
	cfg.JointEpsilon = -1
	_, err = NewModel(ClassNoise, cfg)
	suite.Error(err)
}

func (suite *ModelTestSuite) TestUninitializedModelRejectsOperations() {
	_, _, err := suite.model.AccumulateStatistics(suite.spectra)
	suite.ErrorIs(err, ErrUninitialized)

	suite.ErrorIs(suite.model.UpdateResponsibility(mat.NewCDense(2, 3, nil)), ErrUninitialized)
	suite.ErrorIs(suite.model.UpdatePhi(suite.cache), ErrUninitialized)
	suite.ErrorIs(suite.model.UpdateCovariance(suite.cache), ErrUninitialized)

	_, err = suite.model.CovarianceEntropy()
	suite.ErrorIs(err, ErrUninitialized)
}

func (suite *ModelTestSuite) TestInitializeCovariance() {
	sigma := mat.NewCDense(2, 2, []complex128{2, 1 - 1i, 1 + 1i, 3})
	suite.Require().NoError(suite.model.InitializeCovariance([]*mat.CDense{identity(2), sigma}))
	suite.Equal(StateReady, suite.model.State())

	suite.Equal(complex128(1), suite.model.Determinant(0))
	suite.InDelta(4, real(suite.model.Determinant(1)), 1e-12)
	assertCDenseInDelta(suite.T(), identity(2), multiply(sigma, suite.model.Precision(1)), 1e-12)

	recovered, err := suite.model.Covariance(1)
	suite.Require().NoError(err)
	assertCDenseInDelta(suite.T(), sigma, recovered, 1e-12)
}

func (suite *ModelTestSuite) TestInitializeCovarianceLeavesStateOnFailure() {
	tests := []struct {
		name        string
		covariances []*mat.CDense
		want        error
	}{
		{"too few", []*mat.CDense{identity(2)}, ErrShapeMismatch},
		{"wrong size", []*mat.CDense{identity(2), identity(3)}, ErrShapeMismatch},
		{"nil entry", []*mat.CDense{identity(2), nil}, ErrShapeMismatch},
		{"singular", []*mat.CDense{identity(2), mat.NewCDense(2, 2, nil)}, ErrSingularCovariance},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			err := suite.model.InitializeCovariance(tt.covariances)
			suite.ErrorIs(err, tt.want)
			suite.Equal(StateUninitialized, suite.model.State())
			suite.Nil(suite.model.Precision(0))
		})
	}
}

func (suite *ModelTestSuite) TestAccumulateStatisticsHandComputed() {
	s, err := SpectraFromNested([][][]complex128{{{1 + 1i, 2}}})
	suite.Require().NoError(err)

	model, err := NewModel(ClassNoise, testConfig(1, 1, 2))
	suite.Require().NoError(err)
	suite.Require().NoError(model.InitializeCovariance([]*mat.CDense{identity(2)}))

	posterior, likelihood, err := model.AccumulateStatistics(s)
	suite.Require().NoError(err)

	p := posterior.At(0, 0)
	suite.InDelta(-math.Log(math.Pi)-3, real(p), 1e-12)
	suite.InDelta(0, imag(p), 1e-12)

	// λ starts at zero
	suite.Equal(complex128(0), likelihood)
}

func (suite *ModelTestSuite) TestAccumulateStatisticsReturnsCopy() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))

	posterior, _, err := suite.model.AccumulateStatistics(suite.spectra)
	suite.Require().NoError(err)

	want := posterior.At(0, 0)
	posterior.Set(0, 0, 42)
	suite.Equal(want, suite.model.Posterior().At(0, 0))
}

func (suite *ModelTestSuite) TestAccumulateStatisticsShapeMismatch() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))
	_, _, err := suite.model.AccumulateStatistics(suite.spectra)
	suite.Require().NoError(err)
	before := suite.model.Posterior()

	wrong := NewSpectra(2, 4, 2)
	_, _, err = suite.model.AccumulateStatistics(wrong)
	suite.ErrorIs(err, ErrShapeMismatch)

	_, _, err = suite.model.AccumulateStatistics(nil)
	suite.ErrorIs(err, ErrShapeMismatch)

	assertCDenseInDelta(suite.T(), before, suite.model.Posterior(), 0)
}

func (suite *ModelTestSuite) TestUpdateResponsibilityDegenerateJoint() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))
	_, _, err := suite.model.AccumulateStatistics(suite.spectra)
	suite.Require().NoError(err)

	joint := mat.NewCDense(2, 3, []complex128{1, 1, 1, 1, 0, 1})
	suite.ErrorIs(suite.model.UpdateResponsibility(joint), ErrDegenerateJoint)

	joint = mat.NewCDense(2, 3, []complex128{1, 1, 1, 1, 1, cmplx.NaN()})
	suite.ErrorIs(suite.model.UpdateResponsibility(joint), ErrDegenerateJoint)

	suite.ErrorIs(suite.model.UpdateResponsibility(mat.NewCDense(3, 2, nil)), ErrShapeMismatch)
	suite.ErrorIs(suite.model.UpdateResponsibility(nil), ErrShapeMismatch)

	// λ untouched by every rejected update
	lambda := suite.model.Responsibility()
	for f := range 2 {
		for t := range 3 {
			suite.Equal(complex128(0), lambda.At(f, t))
		}
	}
}

func (suite *ModelTestSuite) TestUpdateResponsibilityDivides() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))
	posterior, _, err := suite.model.AccumulateStatistics(suite.spectra)
	suite.Require().NoError(err)

	// joint equal to twice the own posterior yields λ = 1/2 everywhere
	joint := cloneCDense(posterior)
	for f := range 2 {
		for t := range 3 {
			joint.Set(f, t, 2*posterior.At(f, t))
		}
	}
	suite.Require().NoError(suite.model.UpdateResponsibility(joint))

	lambda := suite.model.Responsibility()
	for f := range 2 {
		for t := range 3 {
			suite.InDelta(0.5, real(lambda.At(f, t)), 1e-12)
		}
	}
}

func (suite *ModelTestSuite) TestUpdatePhiIdentity() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))
	suite.Require().NoError(suite.model.UpdatePhi(suite.cache))

	phi := suite.model.Scale()
	for f := range 2 {
		for t := range 3 {
			x := suite.spectra.At(f, t)
			var norm float64
			for _, v := range x {
				norm += real(v)*real(v) + imag(v)*imag(v)
			}
			suite.InDelta(norm/2, real(phi.At(f, t)), 1e-12)
			suite.InDelta(0, imag(phi.At(f, t)), 1e-12)
		}
	}

	suite.ErrorIs(suite.model.UpdatePhi(nil), ErrShapeMismatch)
}

func (suite *ModelTestSuite) TestUpdateCovarianceHermitianPositiveDefinite() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))
	suite.Require().NoError(suite.model.UpdatePhi(suite.cache))

	weights := []complex128{0.2, 0.5, 0.9, 0.7, 0.1, 0.4}
	copy(cells(suite.model.lambda), weights)

	suite.Require().NoError(suite.model.UpdateCovariance(suite.cache))
	suite.Equal(StateTrained, suite.model.State())

	for f := range 2 {
		sigma, err := suite.model.Covariance(f)
		suite.Require().NoError(err)
		for i := range 2 {
			for j := range 2 {
				suite.InDelta(real(sigma.At(i, j)), real(sigma.At(j, i)), 1e-10)
				suite.InDelta(imag(sigma.At(i, j)), -imag(sigma.At(j, i)), 1e-10)
			}
		}

		eigenvalues, err := eigenvalueRealParts(sigma)
		suite.Require().NoError(err)
		for _, v := range eigenvalues {
			suite.Greater(v, 0.0)
		}
		suite.Greater(real(suite.model.Determinant(f)), 0.0)
	}
}

func (suite *ModelTestSuite) TestUpdateCovarianceZeroMass() {
	suite.Require().NoError(suite.model.InitializeCovariance(suite.identities()))
	before := suite.model.Precision(1)

	// λ is zero right after initialization
	err := suite.model.UpdateCovariance(suite.cache)
	suite.ErrorIs(err, ErrSingularCovariance)
	suite.Equal(StateReady, suite.model.State())
	assertCDenseInDelta(suite.T(), before, suite.model.Precision(1), 0)
}

func (suite *ModelTestSuite) TestCovarianceEntropy() {
	anisotropic := diag(10, 0.1)
	suite.Require().NoError(suite.model.InitializeCovariance([]*mat.CDense{identity(2), anisotropic}))

	entropy, err := suite.model.CovarianceEntropy()
	suite.Require().NoError(err)
	suite.Require().Len(entropy, 2)
	suite.InDelta(math.Log(2), entropy[0], 1e-10)
	suite.Less(entropy[1], entropy[0])
}

func TestModelTestSuite(t *testing.T) {
	suite.Run(t, new(ModelTestSuite))
}

func TestCovarianceCache(t *testing.T) {
	s := fixtureSpectra(t)

	cache, err := NewCovarianceCache(s, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, cache.Len())

	bins, frames, channels := cache.Dims()
	assert.Equal(t, 2, bins)
	assert.Equal(t, 3, frames)
	assert.Equal(t, 2, channels)

	assertCDenseInDelta(t, outer(s.At(1, 2)), cache.At(1, 2), 0)
	assert.Len(t, cache.Bin(0), 3)

	avg := cache.TimeAverage(0)
	want := mat.NewCDense(2, 2, nil)
	for tt := range 3 {
		c := outer(s.At(0, tt))
		for i := range 2 {
			for j := range 2 {
				want.Set(i, j, want.At(i, j)+c.At(i, j)/3)
			}
		}
	}
	assertCDenseInDelta(t, want, avg, 1e-12)

	_, err = NewCovarianceCache(s, 3)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = NewCovarianceCache(&Spectra{Bins: 2, Frames: 3, Channels: 2}, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSpectraFromNestedRejectsRagged(t *testing.T) {
	_, err := SpectraFromNested(nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = SpectraFromNested([][][]complex128{{{1, 2}}, {{1, 2}, {3, 4}}})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = SpectraFromNested([][][]complex128{{{1, 2}, {3}}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
