package weights

import (
	"fmt"
	"math"

	"github.com/drakos74/hybrid-digits/internal/model"
)

// Modifier gives exclusive access to a single cluster.
type Modifier interface {
	Modify(id int, fn func(c *model.Cluster) error) error
}

// Engine applies feedback to the label distribution of clusters.
type Engine struct {
}

// NewEngine creates a new weight update engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply updates the cluster with the given id under the cluster lock,
// so that feedback on the same cluster is applied in arrival order.
func (e *Engine) Apply(clusters Modifier, id int, kind model.Feedback, params model.WeightsConfig, trueLabel *model.Label) (model.Weights, error) {
	var updated model.Weights
	err := clusters.Modify(id, func(c *model.Cluster) error {
		if err := e.Update(c, kind, params, trueLabel); err != nil {
			return err
		}
		updated = c.Weights
		return nil
	})
	return updated, err
}

// Update applies the feedback to the cluster weights in place.
//   - yes moves the current best label towards 1 by alpha.
//   - no shrinks the current best label by gamma.
//   - verified moves the true label towards 1 by beta.
//
// The weights are then floored at the minimum weight and renormalized.
func (e *Engine) Update(c *model.Cluster, kind model.Feedback, params model.WeightsConfig, trueLabel *model.Label) error {
	w := c.Weights
	switch kind {
	case model.Yes:
		d := w.Argmax()
		w[d] += params.Alpha * (1 - w[d])
	case model.No:
		d := w.Argmax()
		w[d] *= params.Gamma
	case model.Verified:
		if trueLabel == nil {
			return fmt.Errorf("verified feedback without label: %w", model.InvalidFeedbackErr)
		}
		t := *trueLabel
		if !t.Valid() {
			return fmt.Errorf("verified feedback with label %d: %w", t, model.InvalidFeedbackErr)
		}
		w[t] += params.Beta * (1 - w[t])
	default:
		return fmt.Errorf("cannot update weights for feedback '%s': %w", kind, model.InvalidFeedbackErr)
	}
	c.Weights = FloorAndNormalize(w, params.MinWeight)
	return nil
}

// FloorAndNormalize clamps every weight to the floor and divides by the new sum.
// Division can push a floored weight below the floor again. Such weights are
// pinned to the floor and the rest share the remaining mass in proportion,
// which is where repeating floor and divide would converge to.
func FloorAndNormalize(w model.Weights, floor float64) model.Weights {
	if floor*model.Labels >= 1 {
		return model.UniformWeights()
	}
	for i := range w {
		w[i] = math.Max(w[i], floor)
	}
	var pinned [model.Labels]bool
	count := 0
	scale := 1.0
	for count < model.Labels {
		var rest float64
		for i := range w {
			if !pinned[i] {
				rest += w[i]
			}
		}
		scale = (1 - float64(count)*floor) / rest
		changed := false
		for i := range w {
			if !pinned[i] && w[i]*scale < floor {
				pinned[i] = true
				count++
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	for i := range w {
		if pinned[i] {
			w[i] = floor
		} else {
			w[i] *= scale
		}
	}
	return w
}
