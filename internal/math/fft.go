package math

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum2D returns the log-scaled magnitudes of the size x size lowest
// frequencies of the 2D fourier transform of the grid, row by row.
func Spectrum2D(grid [][]float64, size int) []float64 {
	cc := fft.FFT2Real(grid)
	if size > len(cc) {
		size = len(cc)
	}
	out := make([]float64, 0, size*size)
	for i := 0; i < size; i++ {
		row := cc[i]
		for j := 0; j < size && j < len(row); j++ {
			out = append(out, math.Log1p(cmplx.Abs(row[j])))
		}
	}
	return out
}
