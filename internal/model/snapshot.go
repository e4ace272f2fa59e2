package model

import "time"

// Snapshot is a point in time summary of the feedback loop.
type Snapshot struct {
	Time              time.Time         `json:"time"`
	Generation        string            `json:"generation"`
	Clusters          int               `json:"clusters"`
	Presented         int               `json:"presented"`
	Feedback          map[Feedback]int  `json:"feedback"`
	Accuracy          float64           `json:"accuracy"`
	Precision         map[Label]float64 `json:"precision,omitempty"`
	Recall            map[Label]float64 `json:"recall,omitempty"`
	MeanConfidence    float64           `json:"mean_confidence"`
	MeanWeightEntropy float64           `json:"mean_weight_entropy"`
}
