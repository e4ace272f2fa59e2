package model

import (
	"fmt"
	"strings"
	"time"
)

// NoCluster marks a sample that could not be routed to any cluster.
const NoCluster = -1

// Feedback is the outcome of a presented sample.
type Feedback string

const (
	Pending  Feedback = "pending"
	Yes      Feedback = "yes"
	No       Feedback = "no"
	Unsure   Feedback = "unsure"
	Verified Feedback = "verified"
)

// ParseFeedback parses the feedback kind, accepting the one letter shortcuts.
func ParseFeedback(s string) (Feedback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", string(Yes):
		return Yes, nil
	case "n", string(No):
		return No, nil
	case "u", "?", string(Unsure):
		return Unsure, nil
	case "v", string(Verified):
		return Verified, nil
	case string(Pending):
		return Pending, nil
	}
	return "", fmt.Errorf("unknown feedback '%s': %w", s, InvalidFeedbackErr)
}

// Sample is a presented image together with its outcome.
type Sample struct {
	ID             string    `json:"id"`
	Generation     string    `json:"generation"`
	Image          Image     `json:"image,omitempty"`
	PredictedLabel Label     `json:"predicted_label"`
	Confidence     float64   `json:"confidence"`
	ClusterID      int       `json:"cluster_id"`
	Feedback       Feedback  `json:"feedback"`
	VerifiedLabel  *Label    `json:"verified_label,omitempty"`
	TrueLabel      Label     `json:"true_label"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Answered checks if the sample received a definite answer.
func (s Sample) Answered() bool {
	return s.Feedback == Yes || s.Feedback == No || s.Feedback == Verified
}
