package model

// ImageSide is the width and height of a digit image.
const ImageSide = 28

// ImageSize is the number of pixels in a digit image.
const ImageSize = ImageSide * ImageSide

// Image is a row-major grayscale digit with pixel values in [0,1].
type Image []float64

// NewImage creates a blank image.
func NewImage() Image {
	return make(Image, ImageSize)
}

// At returns the pixel at the given row and column.
func (im Image) At(row, col int) float64 {
	return im[row*ImageSide+col]
}

// Set sets the pixel at the given row and column.
func (im Image) Set(row, col int, v float64) {
	im[row*ImageSide+col] = v
}

// Copy returns a deep copy of the image.
func (im Image) Copy() Image {
	c := make(Image, len(im))
	copy(c, im)
	return c
}

// Grid returns the image as rows.
func (im Image) Grid() [][]float64 {
	g := make([][]float64, ImageSide)
	for r := 0; r < ImageSide; r++ {
		g[r] = make([]float64, ImageSide)
		copy(g[r], im[r*ImageSide:(r+1)*ImageSide])
	}
	return g
}

// Embedding is the fixed-length feature vector of an image.
type Embedding []float64

// Copy returns a deep copy of the embedding.
func (e Embedding) Copy() Embedding {
	c := make(Embedding, len(e))
	copy(c, e)
	return c
}
