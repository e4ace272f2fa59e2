package extractor

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	digitmath "github.com/drakos74/hybrid-digits/internal/math"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

const (
	rate = 0.02
	// prototypeScale keeps the targets inside the tanh range.
	prototypeScale = 0.8
	// evaluationSamples bounds the samples used to score the training.
	evaluationSamples = 500
)

// Report summarises a training run.
type Report struct {
	Architecture model.Architecture `json:"architecture"`
	Samples      int                `json:"samples"`
	Epochs       int                `json:"epochs"`
	Loss         float64            `json:"loss"`
	Accuracy     float64            `json:"accuracy"`
	Duration     time.Duration      `json:"duration"`
}

// Extractor maps images to embeddings.
type Extractor struct {
	cfg        model.FeatureExtractorConfig
	features   func(image model.Image) []float64
	input      int
	network    *digitmath.Network
	projection *mat.Dense
	prototypes [][]float64
	trained    atomic.Bool
}

// New creates a new extractor for the configured architecture.
// Only the pretrained architecture can extract before training.
func New(cfg model.FeatureExtractorConfig) (*Extractor, error) {
	if cfg.EmbeddingSize < 1 {
		return nil, fmt.Errorf("embedding size %d: %w", cfg.EmbeddingSize, model.ConfigInvalidErr)
	}
	e := &Extractor{
		cfg:        cfg,
		prototypes: prototypes(cfg.Seed, cfg.EmbeddingSize),
	}
	switch cfg.Architecture {
	case model.SmallPerceptron:
		e.features = pixels
		e.input = model.ImageSize
		e.network = digitmath.NewNetwork(model.ImageSize, rate, cfg.Seed, 128, 64, cfg.EmbeddingSize)
	case model.SimpleCNN:
		e.features = convolve
		e.input = convFeatures
		e.network = digitmath.NewNetwork(convFeatures, rate, cfg.Seed, 64, cfg.EmbeddingSize)
	case model.Pretrained:
		e.features = describe
		e.input = descriptorSize
		e.projection = projection(cfg.Seed, cfg.EmbeddingSize, descriptorSize)
		e.trained.Store(true)
	default:
		return nil, fmt.Errorf("unknown architecture '%s': %w", cfg.Architecture, model.ConfigInvalidErr)
	}
	return e, nil
}

// prototypes creates one target point per label in embedding space.
func prototypes(seed int64, size int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	pp := make([][]float64, model.Labels)
	for l := range pp {
		pp[l] = make([]float64, size)
		for i := range pp[l] {
			if rng.Intn(2) == 0 {
				pp[l][i] = -prototypeScale
			} else {
				pp[l][i] = prototypeScale
			}
		}
	}
	return pp
}

// projection is a seeded gaussian random matrix.
func projection(seed int64, rows, cols int) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	scale := 1 / math.Sqrt(float64(cols))
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, data)
}

// Architecture returns the configured architecture.
func (e *Extractor) Architecture() model.Architecture {
	return e.cfg.Architecture
}

// Size returns the embedding size.
func (e *Extractor) Size() int {
	return e.cfg.EmbeddingSize
}

// Trained checks if the extractor can produce embeddings.
func (e *Extractor) Trained() bool {
	return e.trained.Load()
}

// Train fits the network so that images of the same label land close to each other.
func (e *Extractor) Train(images []model.Image, labels []model.Label) (Report, error) {
	start := time.Now()
	report := Report{
		Architecture: e.cfg.Architecture,
		Samples:      len(images),
	}
	if len(images) != len(labels) {
		return report, fmt.Errorf("got %d labels for %d images", len(labels), len(images))
	}
	if len(images) == 0 {
		return report, fmt.Errorf("no images to train on")
	}
	for i, l := range labels {
		if !l.Valid() {
			return report, fmt.Errorf("image %d has label %d", i, l)
		}
	}

	features, err := e.preprocess(images)
	if err != nil {
		return report, err
	}

	if e.network != nil {
		epochs := e.cfg.Epochs
		if epochs < 1 {
			epochs = 1
		}
		rng := rand.New(rand.NewSource(e.cfg.Seed))
		for epoch := 0; epoch < epochs; epoch++ {
			var loss float64
			for _, i := range rng.Perm(len(features)) {
				loss += e.network.Train(features[i], e.prototypes[labels[i]])
			}
			report.Loss = loss / float64(len(features))
			log.Debug().
				Str("architecture", string(e.cfg.Architecture)).
				Int("epoch", epoch).
				Float64("loss", report.Loss).
				Msg("training epoch")
		}
		report.Epochs = epochs
		e.trained.Store(true)
	}

	var correct int
	n := len(features)
	if n > evaluationSamples {
		n = evaluationSamples
	}
	for i := 0; i < n; i++ {
		if e.classify(e.embed(features[i])) == labels[i] {
			correct++
		}
	}
	report.Accuracy = float64(correct) / float64(n)
	report.Duration = time.Since(start)

	log.Info().
		Str("architecture", string(e.cfg.Architecture)).
		Int("samples", report.Samples).
		Int("epochs", report.Epochs).
		Float64("loss", report.Loss).
		Float64("accuracy", report.Accuracy).
		Dur("duration", report.Duration).
		Msg("trained feature extractor")

	return report, nil
}

// classify returns the label of the nearest prototype.
func (e *Extractor) classify(embedding []float64) model.Label {
	i, _ := digitmath.Nearest(embedding, e.prototypes, digitmath.EuclideanDistance)
	return model.Label(i)
}

func (e *Extractor) embed(features []float64) model.Embedding {
	if e.network != nil {
		return e.network.Predict(features)
	}
	out := mat.NewVecDense(e.cfg.EmbeddingSize, nil)
	out.MulVec(e.projection, mat.NewVecDense(len(features), features))
	embedding := make(model.Embedding, e.cfg.EmbeddingSize)
	for i := range embedding {
		embedding[i] = math.Tanh(out.AtVec(i))
	}
	return embedding
}

func checkImage(image model.Image) error {
	if len(image) != model.ImageSize {
		return fmt.Errorf("image of %d pixels instead of %d: %w", len(image), model.ImageSize, model.DimensionErr)
	}
	return nil
}

// Extract returns the embedding of a single image.
func (e *Extractor) Extract(image model.Image) (model.Embedding, error) {
	if !e.Trained() {
		return nil, fmt.Errorf("feature extractor not trained: %w", model.ModelNotReadyErr)
	}
	if err := checkImage(image); err != nil {
		return nil, err
	}
	return e.embed(e.features(image)), nil
}

// ExtractBatch returns the embeddings of all images in order.
func (e *Extractor) ExtractBatch(images []model.Image) ([]model.Embedding, error) {
	if !e.Trained() {
		return nil, fmt.Errorf("feature extractor not trained: %w", model.ModelNotReadyErr)
	}
	features, err := e.preprocess(images)
	if err != nil {
		return nil, err
	}
	embeddings := make([]model.Embedding, len(features))
	for i, f := range features {
		embeddings[i] = e.embed(f)
	}
	return embeddings, nil
}

// preprocess computes the input features of all images on a worker pool.
func (e *Extractor) preprocess(images []model.Image) ([][]float64, error) {
	for i, im := range images {
		if err := checkImage(im); err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
	}
	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}
	defer pool.Release()

	features := make([][]float64, len(images))
	var wg sync.WaitGroup
	for i := range images {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			features[i] = e.features(images[i])
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("could not schedule image %d: %w", i, err)
		}
	}
	wg.Wait()
	return features, nil
}

// Snapshot is the persisted state of an extractor.
type Snapshot struct {
	Config  model.FeatureExtractorConfig `json:"config"`
	Network *digitmath.NetworkSnapshot   `json:"network,omitempty"`
}

// Snapshot exports the learnt state of the extractor.
func (e *Extractor) Snapshot() (Snapshot, error) {
	if !e.Trained() {
		return Snapshot{}, fmt.Errorf("feature extractor not trained: %w", model.ModelNotReadyErr)
	}
	snapshot := Snapshot{Config: e.cfg}
	if e.network != nil {
		ns, err := e.network.Snapshot()
		if err != nil {
			return Snapshot{}, fmt.Errorf("could not export network: %w", err)
		}
		snapshot.Network = &ns
	}
	return snapshot, nil
}

// Restore rebuilds a trained extractor from its snapshot.
func Restore(snapshot Snapshot) (*Extractor, error) {
	e, err := New(snapshot.Config)
	if err != nil {
		return nil, err
	}
	if e.network == nil {
		return e, nil
	}
	if snapshot.Network == nil {
		return nil, fmt.Errorf("snapshot of %s extractor without network", snapshot.Config.Architecture)
	}
	layers := snapshot.Network.Layers
	if snapshot.Network.Input != e.input || len(layers) == 0 || len(layers[len(layers)-1].W) != e.cfg.EmbeddingSize {
		return nil, fmt.Errorf("network snapshot does not fit a %s extractor of size %d", snapshot.Config.Architecture, e.cfg.EmbeddingSize)
	}
	network, err := digitmath.RestoreNetwork(*snapshot.Network)
	if err != nil {
		return nil, fmt.Errorf("could not restore network: %w", err)
	}
	e.network = network
	e.trained.Store(true)
	return e, nil
}
