package stats

import (
	"math"
	"strconv"
	"time"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/sjwhitworth/golearn/evaluation"
)

// Confusion builds the confusion matrix of the resolved samples against their true labels.
func Confusion(samples []model.Sample) evaluation.ConfusionMatrix {
	cm := make(evaluation.ConfusionMatrix)
	for _, s := range samples {
		if s.Feedback == model.Pending || s.ClusterID == model.NoCluster {
			continue
		}
		ref := strconv.Itoa(int(s.TrueLabel))
		if _, ok := cm[ref]; !ok {
			cm[ref] = make(map[string]int)
		}
		cm[ref][strconv.Itoa(int(s.PredictedLabel))]++
	}
	return cm
}

// Summary renders the per label scores of the resolved samples.
func Summary(samples []model.Sample) string {
	cm := Confusion(samples)
	if len(cm) == 0 {
		return "no resolved samples"
	}
	return evaluation.GetSummary(cm)
}

// Compute summarises the samples and clusters of a generation.
func Compute(generation string, samples []model.Sample, clusters []model.Cluster) model.Snapshot {
	snapshot := model.Snapshot{
		Time:       time.Now(),
		Generation: generation,
		Clusters:   len(clusters),
		Presented:  len(samples),
		Feedback:   make(map[model.Feedback]int),
	}

	confidence := NewStats()
	for _, s := range samples {
		snapshot.Feedback[s.Feedback]++
		if s.ClusterID != model.NoCluster {
			confidence.Push(s.Confidence)
		}
	}
	snapshot.MeanConfidence = confidence.Avg()

	entropy := NewStats()
	for _, c := range clusters {
		entropy.Push(c.Weights.Entropy())
	}
	snapshot.MeanWeightEntropy = entropy.Avg()

	cm := Confusion(samples)
	if len(cm) > 0 {
		snapshot.Accuracy = evaluation.GetAccuracy(cm)
		snapshot.Precision = make(map[model.Label]float64)
		snapshot.Recall = make(map[model.Label]float64)
		for l := 0; l < model.Labels; l++ {
			class := strconv.Itoa(l)
			if p := evaluation.GetPrecision(class, cm); !math.IsNaN(p) && predicted(cm, class) > 0 {
				snapshot.Precision[model.Label(l)] = p
			}
			if r := evaluation.GetRecall(class, cm); !math.IsNaN(r) && len(cm[class]) > 0 {
				snapshot.Recall[model.Label(l)] = r
			}
		}
	}
	return snapshot
}

func predicted(cm evaluation.ConfusionMatrix, class string) int {
	n := 0
	for _, row := range cm {
		n += row[class]
	}
	return n
}
