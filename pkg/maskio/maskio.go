package maskio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// FileName is the name of the mask file written into the destination
// directory
const FileName = "noise_lambda.npy"

// Path returns the mask file path inside dest
func Path(dest string) string {
	return filepath.Join(dest, FileName)
}

// Save writes the real part of mask as a float64 NumPy array to
// dest/noise_lambda.npy, creating dest if needed. It returns the largest
// imaginary magnitude that was discarded.
func Save(dest string, mask *mat.CDense) (float64, error) {
	if mask == nil || mask.IsEmpty() {
		return 0, fmt.Errorf("mask is empty")
	}

	rows, cols := mask.Dims()
	data := make([]float64, rows*cols)
	var residue float64
	for i := range rows {
		for j := range cols {
			v := mask.At(i, j)
			data[i*cols+j] = real(v)
			residue = math.Max(residue, math.Abs(imag(v)))
		}
	}

	if err := write(dest, mat.NewDense(rows, cols, data)); err != nil {
		return 0, err
	}
	return residue, nil
}

// SaveComplex writes mask unchanged as a complex128 NumPy array of shape
// (bins, frames) to dest/noise_lambda.npy, creating dest if needed
func SaveComplex(dest string, mask *mat.CDense) error {
	if mask == nil || mask.IsEmpty() {
		return fmt.Errorf("mask is empty")
	}

	// npyio takes the array shape from nested Go arrays, so the grid is
	// copied into a [rows][cols]complex128 value typed at run time
	rows, cols := mask.Dims()
	gridType := reflect.ArrayOf(rows, reflect.ArrayOf(cols, reflect.TypeFor[complex128]()))
	grid := reflect.New(gridType).Elem()
	for i := range rows {
		for j := range cols {
			grid.Index(i).Index(j).SetComplex(mask.At(i, j))
		}
	}

	return write(dest, grid.Interface())
}

func write(dest string, val any) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(Path(dest))
	if err != nil {
		return fmt.Errorf("failed to create mask file: %w", err)
	}
	defer f.Close()

	if err := npyio.Write(f, val); err != nil {
		return fmt.Errorf("failed to write mask: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close mask file: %w", err)
	}
	return nil
}

// Load reads a mask previously written by Save
func Load(dest string) (*mat.Dense, error) {
	f, err := os.Open(Path(dest))
	if err != nil {
		return nil, fmt.Errorf("failed to open mask file: %w", err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("failed to read mask: %w", err)
	}
	return &m, nil
}

// LoadComplex reads a mask previously written by SaveComplex
func LoadComplex(dest string) (*mat.CDense, error) {
	f, err := os.Open(Path(dest))
	if err != nil {
		return nil, fmt.Errorf("failed to open mask file: %w", err)
	}
	defer f.Close()

	return readComplex(f)
}

func readComplex(r io.Reader) (*mat.CDense, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask header: %w", err)
	}

	shape := npy.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("mask must be two-dimensional, got shape %v", shape)
	}

	data := make([]complex128, shape[0]*shape[1])
	if err := npy.Read(&data); err != nil {
		return nil, fmt.Errorf("failed to read mask: %w", err)
	}
	return mat.NewCDense(shape[0], shape[1], data), nil
}
