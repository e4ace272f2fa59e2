package dataset

import (
	"fmt"
	"math/rand"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/rs/zerolog/log"
)

// Item is a labelled image.
type Item struct {
	Image model.Image `json:"image"`
	Label model.Label `json:"label"`
}

// Source supplies labelled digits.
type Source interface {
	// Train returns n items for building the model.
	Train(n int) ([]Item, error)
	// Test returns a held-out item for the interactive loop.
	Test() (Item, error)
}

// Batch is the training batch of a model generation.
type Batch struct {
	Images     []model.Image
	Labels     []model.Label
	Real       int
	Synthetic  int
	NoiseLevel float64
}

// Prepare draws the real items from the source and derives the synthetic ones from them.
func Prepare(source Source, cfg model.FeatureExtractorConfig, rng *rand.Rand) (Batch, error) {
	items, err := source.Train(cfg.RealDataCount)
	if err != nil {
		return Batch{}, fmt.Errorf("could not load real data: %w", err)
	}
	if len(items) == 0 {
		return Batch{}, fmt.Errorf("source returned no data")
	}
	batch := Batch{
		Images:     make([]model.Image, 0, len(items)+cfg.SyntheticDataCount),
		Labels:     make([]model.Label, 0, len(items)+cfg.SyntheticDataCount),
		Real:       len(items),
		NoiseLevel: cfg.NoiseLevel,
	}
	for _, item := range items {
		batch.Images = append(batch.Images, item.Image)
		batch.Labels = append(batch.Labels, item.Label)
	}
	for i := 0; i < cfg.SyntheticDataCount; i++ {
		item := Distort(items[rng.Intn(len(items))], cfg.NoiseLevel, rng)
		batch.Images = append(batch.Images, item.Image)
		batch.Labels = append(batch.Labels, item.Label)
		batch.Synthetic++
	}
	log.Info().
		Int("real", batch.Real).
		Int("synthetic", batch.Synthetic).
		Float64("noise", batch.NoiseLevel).
		Msg("prepared training batch")
	return batch, nil
}
