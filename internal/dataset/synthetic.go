package dataset

import (
	"math"
	"math/rand"

	digitmath "github.com/drakos74/hybrid-digits/internal/math"
	"github.com/drakos74/hybrid-digits/internal/model"
)

const blurSigma = 0.5

// Distort derives a synthetic item, the stronger the noise the heavier the distortion.
//   - above 0.3 the digit may be rotated by a multiple of 90 degrees or flipped.
//   - above 0.5 gaussian noise is added and the digit may be blurred.
//
// At any level the label may be replaced by a wrong one.
func Distort(item Item, noise float64, rng *rand.Rand) Item {
	image := item.Image.Copy()
	if noise > 0.3 {
		if rng.Float64() < noise {
			image = Rotate90(image, 1+rng.Intn(3))
		}
		if rng.Float64() < noise*0.7 {
			image = Flip(image, rng.Intn(2) == 0)
		}
	}
	if noise > 0.5 {
		sd := noise * 0.3
		for i := range image {
			image[i] = digitmath.Clip(image[i]+rng.NormFloat64()*sd, 0, 1)
		}
		if rng.Float64() < noise*0.5 {
			image = Blur(image, blurSigma)
		}
	}
	label := item.Label
	if rng.Float64() < noise*0.3 {
		label = model.Label((int(label) + 1 + rng.Intn(model.Labels-1)) % model.Labels)
	}
	return Item{Image: image, Label: label}
}

// Rotate90 rotates the image counter-clockwise k times by 90 degrees.
func Rotate90(image model.Image, k int) model.Image {
	out := image.Copy()
	n := model.ImageSide
	for ; k > 0; k-- {
		next := model.NewImage()
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				next.Set(r, c, out.At(c, n-1-r))
			}
		}
		out = next
	}
	return out
}

// Flip mirrors the image upside down or left to right.
func Flip(image model.Image, upDown bool) model.Image {
	n := model.ImageSide
	out := model.NewImage()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if upDown {
				out.Set(r, c, image.At(n-1-r, c))
			} else {
				out.Set(r, c, image.At(r, n-1-c))
			}
		}
	}
	return out
}

// Blur applies a 3x3 gaussian kernel, the borders are renormalized.
func Blur(image model.Image, sigma float64) model.Image {
	var kernel [3][3]float64
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			kernel[i+1][j+1] = math.Exp(-float64(i*i+j*j) / (2 * sigma * sigma))
		}
	}
	n := model.ImageSide
	out := model.NewImage()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			var s, w float64
			for i := -1; i <= 1; i++ {
				for j := -1; j <= 1; j++ {
					rr, cc := r+i, c+j
					if rr < 0 || rr >= n || cc < 0 || cc >= n {
						continue
					}
					k := kernel[i+1][j+1]
					s += k * image.At(rr, cc)
					w += k
				}
			}
			out.Set(r, c, s/w)
		}
	}
	return out
}
