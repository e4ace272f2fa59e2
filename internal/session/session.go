package session

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/drakos74/hybrid-digits/internal/algo/cluster"
	"github.com/drakos74/hybrid-digits/internal/algo/extractor"
	"github.com/drakos74/hybrid-digits/internal/algo/predict"
	"github.com/drakos74/hybrid-digits/internal/algo/weights"
	"github.com/drakos74/hybrid-digits/internal/dataset"
	"github.com/drakos74/hybrid-digits/internal/metrics"
	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/drakos74/hybrid-digits/internal/stats"
	"github.com/drakos74/hybrid-digits/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ExtractorKey is the key of the extractor snapshot in the models storage.
var ExtractorKey = storage.Key{Group: "extractor", Label: "snapshot"}

// Report summarises an initialization.
type Report struct {
	Generation string           `json:"generation"`
	Real       int              `json:"real"`
	Synthetic  int              `json:"synthetic"`
	Extractor  extractor.Report `json:"extractor"`
	Clusters   int              `json:"clusters"`
	Fallback   bool             `json:"fallback"`
	Noise      int              `json:"noise"`
	Cause      string           `json:"cause,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Session runs the feedback loop of a single local user.
type Session struct {
	mutex sync.Mutex

	source  dataset.Source
	archive storage.Archive
	models  storage.Persistence
	metrics *metrics.Metrics

	store     *cluster.Store
	predictor *predict.Service
	engine    *weights.Engine

	cfg       *model.SystemConfig
	extractor *extractor.Extractor
	samples   map[string]*model.Sample
	order     []string
}

// New creates an empty session. It is not ready until initialized or restored.
func New(source dataset.Source, archive storage.Archive, models storage.Persistence, m *metrics.Metrics) (*Session, error) {
	store := cluster.NewStore()
	predictor, err := predict.NewService(store, predict.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.Observer
	}
	return &Session{
		source:    source,
		archive:   archive,
		models:    models,
		metrics:   m,
		store:     store,
		predictor: predictor,
		engine:    weights.NewEngine(),
		samples:   make(map[string]*model.Sample),
		order:     make([]string, 0),
	}, nil
}

// Ready checks if the session can serve predictions.
func (s *Session) Ready() bool {
	return s.predictor.Ready()
}

// Config returns the active configuration.
func (s *Session) Config() (model.SystemConfig, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.cfg == nil {
		return model.SystemConfig{}, false
	}
	return *s.cfg, true
}

// Initialize trains a new extractor, clusters its embeddings of the training batch
// and replaces the active generation.
func (s *Session) Initialize(ctx context.Context, cfg model.SystemConfig) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	start := time.Now()
	var report Report

	rng := rand.New(rand.NewSource(cfg.FeatureExtractor.Seed))
	batch, err := dataset.Prepare(s.source, cfg.FeatureExtractor, rng)
	if err != nil {
		return report, fmt.Errorf("could not prepare training data: %w", err)
	}
	report.Real = batch.Real
	report.Synthetic = batch.Synthetic
	if err := ctx.Err(); err != nil {
		return report, err
	}

	ext, err := extractor.New(cfg.FeatureExtractor)
	if err != nil {
		return report, err
	}
	report.Extractor, err = ext.Train(batch.Images, batch.Labels)
	if err != nil {
		return report, fmt.Errorf("could not train feature extractor: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	embeddings, err := ext.ExtractBatch(batch.Images)
	if err != nil {
		return report, fmt.Errorf("could not extract embeddings: %w", err)
	}
	result, err := cluster.Cluster(embeddings, cfg.Clustering)
	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if result.Cause != nil {
		report.Cause = result.Cause.Error()
		log.Warn().Err(result.Cause).Int("clusters", len(result.Clusters)).Msg("clustering fell back to partition")
	}
	report.Clusters = len(result.Clusters)
	report.Fallback = result.Fallback
	report.Noise = result.Noise

	s.store.ReplaceAll(result.Clusters, cfg.Clustering.Metric)
	s.predictor.Use(ext)
	s.extractor = ext
	s.cfg = &cfg
	report.Generation = s.store.Generation()
	report.Duration = time.Since(start)

	s.persist("config", func() error {
		return s.archive.SaveConfig(cfg)
	})
	s.persist("clusters", func() error {
		return s.archive.SaveClusters(s.store.ExportForPersistence())
	})
	s.persist("extractor", func() error {
		snapshot, err := ext.Snapshot()
		if err != nil {
			return err
		}
		return s.models.Store(ExtractorKey, snapshot)
	})
	s.metrics.Clusters(report.Clusters)
	s.record()

	log.Info().
		Str("generation", report.Generation).
		Str("architecture", string(cfg.FeatureExtractor.Architecture)).
		Str("algorithm", string(cfg.Clustering.Algorithm)).
		Int("clusters", report.Clusters).
		Bool("fallback", report.Fallback).
		Dur("duration", report.Duration).
		Msg("initialized session")

	return report, nil
}

// Restore loads the last generation from the archive.
// The session stays untouched if any piece of the model is missing.
func (s *Session) Restore() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cfg, err := s.archive.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load config: %v: %w", err, model.ModelNotReadyErr)
	}
	var snapshot extractor.Snapshot
	if err := s.models.Load(ExtractorKey, &snapshot); err != nil {
		return fmt.Errorf("could not load feature extractor: %v: %w", err, model.ModelNotReadyErr)
	}
	ext, err := extractor.Restore(snapshot)
	if err != nil {
		return fmt.Errorf("could not restore feature extractor: %v: %w", err, model.ModelNotReadyErr)
	}
	clusters, err := s.archive.LoadClusters()
	if err != nil {
		return fmt.Errorf("could not load clusters: %v: %w", err, model.ModelNotReadyErr)
	}
	if len(clusters) == 0 {
		return fmt.Errorf("no clusters archived: %w", model.ModelNotReadyErr)
	}
	if err := s.store.LoadFrom(clusters, cfg.Clustering.Metric); err != nil {
		return fmt.Errorf("could not load clusters: %v: %w", err, model.ModelNotReadyErr)
	}

	s.predictor.Use(ext)
	s.extractor = ext
	s.cfg = &cfg

	s.samples = make(map[string]*model.Sample)
	s.order = make([]string, 0)
	samples, err := s.archive.LoadSamples()
	if err != nil {
		log.Warn().Err(err).Msg("could not load samples")
	}
	for i := range samples {
		sample := samples[i]
		s.samples[sample.ID] = &sample
		s.order = append(s.order, sample.ID)
	}
	s.metrics.Clusters(len(clusters))

	log.Info().
		Str("generation", s.store.Generation()).
		Int("clusters", len(clusters)).
		Int("samples", len(samples)).
		Msg("restored session")
	return nil
}

// Next presents the next held-out digit of the dataset.
func (s *Session) Next() (model.Sample, error) {
	if !s.Ready() {
		return model.Sample{}, fmt.Errorf("session not initialized: %w", model.ModelNotReadyErr)
	}
	item, err := s.source.Test()
	if err != nil {
		return model.Sample{}, fmt.Errorf("could not draw test digit: %w", err)
	}
	return s.Present(item.Image, item.Label)
}

// Predict labels the image without recording a sample.
func (s *Session) Predict(image model.Image) (predict.Prediction, error) {
	return s.predictor.Predict(image)
}

// Present predicts the image and records a pending sample for it.
func (s *Session) Present(image model.Image, trueLabel model.Label) (model.Sample, error) {
	if !trueLabel.Valid() {
		return model.Sample{}, fmt.Errorf("true label %d: %w", trueLabel, model.InvalidFeedbackErr)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	prediction, err := s.predictor.Predict(image)
	if err != nil {
		return model.Sample{}, err
	}
	now := time.Now().UTC()
	sample := &model.Sample{
		ID:             uuid.New().String(),
		Generation:     s.store.Generation(),
		Image:          image.Copy(),
		PredictedLabel: prediction.Label,
		Confidence:     prediction.Confidence,
		ClusterID:      prediction.ClusterID,
		Feedback:       model.Pending,
		TrueLabel:      trueLabel,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.samples[sample.ID] = sample
	s.order = append(s.order, sample.ID)
	s.metrics.Prediction(prediction.Label, prediction.Confidence)
	s.persist("sample", func() error {
		return s.archive.SaveSample(*sample)
	})

	log.Debug().
		Str("sample", sample.ID).
		Int("cluster", sample.ClusterID).
		Int("label", int(sample.PredictedLabel)).
		Float64("confidence", sample.Confidence).
		Msg("presented digit")
	return *sample, nil
}

func (s *Session) pending(id string) (*model.Sample, error) {
	sample, ok := s.samples[id]
	if !ok {
		return nil, fmt.Errorf("sample '%s': %w", id, model.NotFoundErr)
	}
	if sample.Answered() {
		return nil, fmt.Errorf("sample '%s' already answered with '%s': %w", id, sample.Feedback, model.InvalidFeedbackErr)
	}
	return sample, nil
}

// Feedback applies the user answer to the prediction of the sample.
// An unsure answer only parks the sample for verification.
func (s *Session) Feedback(id string, kind model.Feedback) (model.Sample, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sample, err := s.pending(id)
	if err != nil {
		return model.Sample{}, err
	}

	switch kind {
	case model.Yes, model.No:
		if err := s.update(sample, kind, nil); err != nil {
			return model.Sample{}, err
		}
	case model.Unsure:
		if sample.Feedback == model.Unsure {
			return model.Sample{}, fmt.Errorf("sample '%s' already awaits verification: %w", id, model.InvalidFeedbackErr)
		}
	default:
		return model.Sample{}, fmt.Errorf("feedback '%s' for sample '%s': %w", kind, id, model.InvalidFeedbackErr)
	}

	sample.Feedback = kind
	sample.UpdatedAt = time.Now().UTC()
	s.done(sample)
	return *sample, nil
}

// Verify supplies the true label of a pending or unsure sample.
func (s *Session) Verify(id string, label model.Label) (model.Sample, error) {
	if !label.Valid() {
		return model.Sample{}, fmt.Errorf("verified label %d: %w", label, model.InvalidFeedbackErr)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	sample, err := s.pending(id)
	if err != nil {
		return model.Sample{}, err
	}
	if err := s.update(sample, model.Verified, &label); err != nil {
		return model.Sample{}, err
	}
	sample.Feedback = model.Verified
	sample.VerifiedLabel = &label
	sample.UpdatedAt = time.Now().UTC()
	s.done(sample)
	return *sample, nil
}

func (s *Session) update(sample *model.Sample, kind model.Feedback, label *model.Label) error {
	if s.cfg == nil || sample.Generation != s.store.Generation() {
		return fmt.Errorf("cluster %d of generation '%s': %w", sample.ClusterID, sample.Generation, model.NotFoundErr)
	}
	w, err := s.engine.Apply(s.store, sample.ClusterID, kind, s.cfg.Weights, label)
	if err != nil {
		return err
	}
	log.Debug().
		Str("sample", sample.ID).
		Int("cluster", sample.ClusterID).
		Str("feedback", string(kind)).
		Floats64("weights", w[:]).
		Msg("updated cluster")
	return nil
}

func (s *Session) done(sample *model.Sample) {
	s.metrics.Feedback(sample.Feedback)
	s.persist("sample", func() error {
		return s.archive.SaveSample(*sample)
	})
	if sample.Feedback != model.Unsure {
		s.persist("clusters", func() error {
			return s.archive.SaveClusters(s.store.ExportForPersistence())
		})
	}
	s.record()
}

// Pending returns the samples of the active generation awaiting verification.
func (s *Session) Pending() []model.Sample {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	pending := make([]model.Sample, 0)
	for _, sample := range s.current() {
		if sample.Feedback == model.Unsure {
			pending = append(pending, sample)
		}
	}
	return pending
}

// Samples returns all samples of the active generation, in the order they were presented.
func (s *Session) Samples() []model.Sample {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.current()
}

// Sample returns the sample with the given id.
func (s *Session) Sample(id string) (model.Sample, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	sample, ok := s.samples[id]
	if !ok {
		return model.Sample{}, fmt.Errorf("sample '%s': %w", id, model.NotFoundErr)
	}
	return *sample, nil
}

func (s *Session) current() []model.Sample {
	generation := s.store.Generation()
	samples := make([]model.Sample, 0)
	for _, id := range s.order {
		if sample := s.samples[id]; sample.Generation == generation {
			samples = append(samples, *sample)
		}
	}
	return samples
}

// Clusters returns a copy of the active clusters ordered by id.
func (s *Session) Clusters() []model.Cluster {
	clusters := s.store.ExportForPersistence()
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].ID < clusters[j].ID
	})
	return clusters
}

// Stats summarises the active generation.
func (s *Session) Stats() model.Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return stats.Compute(s.store.Generation(), s.current(), s.store.ExportForPersistence())
}

// Reset drops the model and every sample, here and in the archive.
func (s *Session) Reset() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.store.Reset()
	s.predictor.Use(nil)
	s.extractor = nil
	s.cfg = nil
	s.samples = make(map[string]*model.Sample)
	s.order = make([]string, 0)
	s.metrics.Clusters(0)

	s.persist("reset", s.archive.ResetAll)
	s.persist("extractor", func() error {
		return s.models.Delete(ExtractorKey)
	})
	log.Info().Msg("reset session")
	return nil
}

func (s *Session) record() {
	snapshot := stats.Compute(s.store.Generation(), s.current(), s.store.ExportForPersistence())
	s.metrics.Accuracy(snapshot.Accuracy)
	s.persist("snapshot", func() error {
		return s.archive.AppendSnapshot(snapshot)
	})
}

// persist runs the write and reports any failure without propagating it.
func (s *Session) persist(op string, write func() error) {
	if err := write(); err != nil {
		err = fmt.Errorf("%s: %v: %w", op, err, model.PersistenceErr)
		log.Error().Err(err).Str("op", op).Msg("could not persist")
		s.metrics.PersistenceError(op)
	}
}
