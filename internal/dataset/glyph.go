package dataset

import (
	"fmt"
	"math/rand"
	"sync"

	digitmath "github.com/drakos74/hybrid-digits/internal/math"
	"github.com/drakos74/hybrid-digits/internal/model"
)

const (
	glyphWidth  = 5
	glyphHeight = 7
	glyphScale  = 3
	jitter      = 2
)

var glyphs = [model.Labels][glyphHeight]string{
	{" ### ", "#   #", "#  ##", "# # #", "##  #", "#   #", " ### "},
	{"  #  ", " ##  ", "  #  ", "  #  ", "  #  ", "  #  ", " ### "},
	{" ### ", "#   #", "    #", "   # ", "  #  ", " #   ", "#####"},
	{"#####", "   # ", "  #  ", "   # ", "    #", "#   #", " ### "},
	{"   # ", "  ## ", " # # ", "#  # ", "#####", "   # ", "   # "},
	{"#####", "#    ", "#### ", "    #", "    #", "#   #", " ### "},
	{"  ## ", " #   ", "#    ", "#### ", "#   #", "#   #", " ### "},
	{"#####", "    #", "   # ", "  #  ", " #   ", " #   ", " #   "},
	{" ### ", "#   #", "#   #", " ### ", "#   #", "#   #", " ### "},
	{" ### ", "#   #", "#   #", " ####", "    #", "   # ", " ##  "},
}

// Glyphs renders handwriting-like digits from a bitmap font.
// Every digit is shifted, slanted and shaded at random, so the source
// needs no files and is reproducible from its seed.
type Glyphs struct {
	mutex sync.Mutex
	rng   *rand.Rand
}

// NewGlyphs creates a new glyph source.
func NewGlyphs(seed int64) *Glyphs {
	return &Glyphs{rng: rand.New(rand.NewSource(seed))}
}

// Train returns n rendered digits with labels spread evenly.
func (g *Glyphs) Train(n int) ([]Item, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative count %d", n)
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	items := make([]Item, n)
	for i := range items {
		l := model.Label(i % model.Labels)
		items[i] = Item{Image: g.render(l), Label: l}
	}
	g.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	return items, nil
}

// Test returns a single random digit.
func (g *Glyphs) Test() (Item, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	l := model.Label(g.rng.Intn(model.Labels))
	return Item{Image: g.render(l), Label: l}, nil
}

func (g *Glyphs) render(l model.Label) model.Image {
	image := model.NewImage()
	left := (model.ImageSide-glyphWidth*glyphScale)/2 + g.rng.Intn(2*jitter+1) - jitter
	top := (model.ImageSide-glyphHeight*glyphScale)/2 + g.rng.Intn(2*jitter+1) - jitter
	slant := (g.rng.Float64() - 0.5) * 0.4
	ink := 0.7 + 0.3*g.rng.Float64()
	for r := 0; r < glyphHeight*glyphScale; r++ {
		shift := int(slant * float64(glyphHeight*glyphScale/2-r))
		row := glyphs[l][r/glyphScale]
		for c := 0; c < glyphWidth*glyphScale; c++ {
			if row[c/glyphScale] != '#' {
				continue
			}
			rr, cc := top+r, left+c+shift
			if rr < 0 || rr >= model.ImageSide || cc < 0 || cc >= model.ImageSide {
				continue
			}
			image.Set(rr, cc, ink)
		}
	}
	image = Blur(image, 0.7)
	for i := range image {
		image[i] = digitmath.Clip(image[i]+g.rng.NormFloat64()*0.02, 0, 1)
	}
	return image
}
