package maskio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSaveCreatesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "out")
	mask := mat.NewCDense(2, 3, []complex128{
		0.1, 0.2 + 1e-9i, 0.3,
		0.9, 0.8, 0.7 - 2e-8i,
	})

	residue, err := Save(dest, mask)
	require.NoError(t, err)
	assert.InDelta(t, 2e-8, residue, 1e-20)

	info, err := os.Stat(Path(dest))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, FileName, filepath.Base(Path(dest)))

	loaded, err := Load(dest)
	require.NoError(t, err)
	rows, cols := loaded.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 3, cols)
	assert.Equal(t, 0.2, loaded.At(0, 1))
	assert.Equal(t, 0.7, loaded.At(1, 2))
}

func TestSaveOverwrites(t *testing.T) {
	dest := t.TempDir()

	_, err := Save(dest, mat.NewCDense(1, 2, []complex128{1, 1}))
	require.NoError(t, err)
	_, err = Save(dest, mat.NewCDense(1, 2, []complex128{0.25, 0.5}))
	require.NoError(t, err)

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5}, loaded.RawRowView(0))
}

func TestSaveRejectsEmpty(t *testing.T) {
	_, err := Save(t.TempDir(), nil)
	assert.Error(t, err)
	_, err = Save(t.TempDir(), &mat.CDense{})
	assert.Error(t, err)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestSaveComplexKeepsImaginaryPart(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	mask := mat.NewCDense(2, 3, []complex128{
		0.1, 0.2 + 1e-9i, 0.3,
		0.9 - 0.5i, 0.8, 0.7 - 2e-8i,
	})

	require.NoError(t, SaveComplex(dest, mask))

	loaded, err := LoadComplex(dest)
	require.NoError(t, err)
	rows, cols := loaded.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 3, cols)
	for i := range rows {
		for j := range cols {
			assert.Equal(t, mask.At(i, j), loaded.At(i, j))
		}
	}
}

func TestSaveComplexRejectsEmpty(t *testing.T) {
	assert.Error(t, SaveComplex(t.TempDir(), nil))
	assert.Error(t, SaveComplex(t.TempDir(), &mat.CDense{}))
}

func TestLoadComplexRejectsMissing(t *testing.T) {
	_, err := LoadComplex(t.TempDir())
	assert.Error(t, err)
}
