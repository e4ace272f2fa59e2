package stats

import (
	"testing"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	s := NewStats()
	assert.Equal(t, 0.0, s.Min())
	assert.Equal(t, 0.0, s.StDev())

	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Push(v)
	}
	assert.Equal(t, 8, s.Count())
	assert.Equal(t, 5.0, s.Avg())
	assert.InDelta(t, 2.0, s.StDev(), 1e-12)
	assert.Equal(t, 2.0, s.Min())
	assert.Equal(t, 9.0, s.Max())
}

func sample(predicted, truth model.Label, feedback model.Feedback, confidence float64) model.Sample {
	return model.Sample{
		PredictedLabel: predicted,
		TrueLabel:      truth,
		Feedback:       feedback,
		Confidence:     confidence,
	}
}

func TestCompute(t *testing.T) {
	samples := []model.Sample{
		sample(1, 1, model.Yes, 0.5),
		sample(1, 2, model.No, 0.3),
		sample(2, 2, model.Verified, 0.1),
		sample(3, 3, model.Unsure, 0.1),
		sample(3, 4, model.Pending, 0.5),
	}
	clusters := []model.Cluster{
		{Weights: model.UniformWeights()},
		{Weights: model.UniformWeights()},
	}

	snapshot := Compute("g", samples, clusters)
	assert.Equal(t, "g", snapshot.Generation)
	assert.Equal(t, 2, snapshot.Clusters)
	assert.Equal(t, 5, snapshot.Presented)
	assert.Equal(t, 1, snapshot.Feedback[model.Yes])
	assert.Equal(t, 1, snapshot.Feedback[model.Pending])
	assert.InDelta(t, 0.3, snapshot.MeanConfidence, 1e-12)
	assert.InDelta(t, 3.3219, snapshot.MeanWeightEntropy, 1e-4)
	// pending samples are not resolved yet
	assert.InDelta(t, 0.75, snapshot.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, snapshot.Precision[1], 1e-12)
	assert.InDelta(t, 1.0, snapshot.Recall[1], 1e-12)
	assert.InDelta(t, 0.5, snapshot.Recall[2], 1e-12)
	_, ok := snapshot.Precision[4]
	assert.False(t, ok)

	assert.NotEmpty(t, Summary(samples))
	assert.Equal(t, "no resolved samples", Summary(nil))
}

func TestCompute_Empty(t *testing.T) {
	snapshot := Compute("", nil, nil)
	assert.Equal(t, 0, snapshot.Presented)
	assert.Equal(t, 0.0, snapshot.Accuracy)
	assert.Nil(t, snapshot.Precision)
}
