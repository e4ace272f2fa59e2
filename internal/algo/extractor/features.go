package extractor

import (
	"math"

	digitmath "github.com/drakos74/hybrid-digits/internal/math"
	"github.com/drakos74/hybrid-digits/internal/model"
)

const (
	convSide     = model.ImageSide - 2
	pooledSide   = convSide / 2
	convFeatures = 4 * pooledSide * pooledSide
	spectrumSide = 8
	blockSide    = 4
	blockCount   = model.ImageSide / blockSide
	// descriptorSize is the input size of the projection of the pretrained extractor.
	descriptorSize = spectrumSide*spectrumSide + blockCount*blockCount
)

// filters is a fixed bank of 3x3 edge and line detectors.
var filters = [4][3][3]float64{
	// horizontal edge
	{{-1, -1, -1}, {0, 0, 0}, {1, 1, 1}},
	// vertical edge
	{{-1, 0, 1}, {-1, 0, 1}, {-1, 0, 1}},
	// main diagonal
	{{2, -1, -1}, {-1, 2, -1}, {-1, -1, 2}},
	// anti diagonal
	{{-1, -1, 2}, {-1, 2, -1}, {2, -1, -1}},
}

// pixels uses the raw image as features.
func pixels(image model.Image) []float64 {
	return append([]float64{}, image...)
}

// convolve applies the filter bank with relu and 2x2 max pooling.
func convolve(image model.Image) []float64 {
	out := make([]float64, 0, convFeatures)
	for _, f := range filters {
		var conv [convSide][convSide]float64
		for r := 0; r < convSide; r++ {
			for c := 0; c < convSide; c++ {
				var s float64
				for i := 0; i < 3; i++ {
					for j := 0; j < 3; j++ {
						s += f[i][j] * image.At(r+i, c+j)
					}
				}
				conv[r][c] = math.Max(0, s)
			}
		}
		for r := 0; r < pooledSide; r++ {
			for c := 0; c < pooledSide; c++ {
				m := math.Max(
					math.Max(conv[2*r][2*c], conv[2*r][2*c+1]),
					math.Max(conv[2*r+1][2*c], conv[2*r+1][2*c+1]),
				)
				out = append(out, m/3)
			}
		}
	}
	return out
}

// describe combines the low frequency spectrum with a coarse view of the image.
func describe(image model.Image) []float64 {
	out := digitmath.Spectrum2D(image.Grid(), spectrumSide)
	for br := 0; br < blockCount; br++ {
		for bc := 0; bc < blockCount; bc++ {
			var s float64
			for i := 0; i < blockSide; i++ {
				for j := 0; j < blockSide; j++ {
					s += image.At(br*blockSide+i, bc*blockSide+j)
				}
			}
			out = append(out, s/(blockSide*blockSide))
		}
	}
	return out
}
