package math

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/drakos74/go-ex-machina/xmachina/ml"
	"github.com/drakos74/go-ex-machina/xmachina/net"
	"github.com/drakos74/go-ex-machina/xmachina/net/ff"
	"github.com/drakos74/go-ex-machina/xmath"
)

// LayerWeights is the learnt state of a dense layer.
type LayerWeights struct {
	W [][]float64 `json:"w"`
	B []float64   `json:"b"`
}

// NetworkSnapshot is everything needed to rebuild a trained network.
type NetworkSnapshot struct {
	Input  int            `json:"input"`
	Rate   float64        `json:"rate"`
	Layers []LayerWeights `json:"layers"`
}

// Network is a feed forward stack of tanh layers.
// Calls are serialized, the underlying cells keep state between passes.
type Network struct {
	mutex   sync.Mutex
	net     *ff.Network
	input   int
	sizes   []int
	rate    float64
	weights map[net.Meta]net.Weights
}

// uniform generates rows within +-1/sqrt(fan-in) from the given source.
func uniform(rng *rand.Rand) xmath.VectorGenerator {
	return func(p, index int) xmath.Vector {
		limit := 1 / math.Sqrt(float64(p))
		w := xmath.Vec(p)
		for i := 0; i < p; i++ {
			w[i] = (2*rng.Float64() - 1) * limit
		}
		return w
	}
}

func constant(b []float64) xmath.VectorGenerator {
	return func(s, index int) xmath.Vector {
		return xmath.Vec(s).With(b...)
	}
}

func layer(rate float64, weights, bias xmath.VectorGenerator) net.NeuronFactory {
	return net.NewBuilder().
		WithModule(ml.Base().
			WithRate(ml.Learn(rate, rate)).
			WithActivation(ml.TanH)).
		WithWeights(weights, bias).
		Factory(net.NewActivationCell)
}

// NewNetwork creates a new network with the given layer sizes.
// The last size is the output of the network.
func NewNetwork(input int, rate float64, seed int64, sizes ...int) *Network {
	rng := rand.New(rand.NewSource(seed))
	network := ff.New(input, sizes[len(sizes)-1])
	for _, s := range sizes {
		network.Add(s, layer(rate, uniform(rng), xmath.VoidVector))
	}
	network.Loss(ml.Pow)
	network.Trace()
	return &Network{
		net:   network,
		input: input,
		sizes: sizes,
		rate:  rate,
	}
}

// RestoreNetwork rebuilds a network from its snapshot.
func RestoreNetwork(snapshot NetworkSnapshot) (*Network, error) {
	if len(snapshot.Layers) == 0 {
		return nil, fmt.Errorf("snapshot without layers")
	}
	sizes := make([]int, len(snapshot.Layers))
	p := snapshot.Input
	for i, l := range snapshot.Layers {
		if len(l.W) == 0 || len(l.W) != len(l.B) {
			return nil, fmt.Errorf("layer %d has %d rows and %d biases", i, len(l.W), len(l.B))
		}
		for _, row := range l.W {
			if len(row) != p {
				return nil, fmt.Errorf("layer %d expects input %d but has row of %d", i, p, len(row))
			}
		}
		sizes[i] = len(l.W)
		p = len(l.W)
	}
	network := ff.New(snapshot.Input, sizes[len(sizes)-1])
	weights := make(map[net.Meta]net.Weights, len(sizes))
	for i, l := range snapshot.Layers {
		rows := make([]xmath.Vector, len(l.W))
		for j, row := range l.W {
			rows[j] = xmath.Vec(len(row)).With(row...)
		}
		network.Add(sizes[i], layer(snapshot.Rate, xmath.Row(rows...), constant(l.B)))
		weights[net.Meta{Layer: i}] = net.Weights{W: rows, B: xmath.Vec(len(l.B)).With(l.B...)}
	}
	network.Loss(ml.Pow)
	network.Trace()
	return &Network{
		net:     network,
		input:   snapshot.Input,
		sizes:   sizes,
		rate:    snapshot.Rate,
		weights: weights,
	}, nil
}

// Train runs one forward and backward pass and returns the loss norm.
func (n *Network) Train(in, out []float64) float64 {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	inp := xmath.Vec(len(in)).With(in...)

	loss, weights := n.net.Train(inp, xmath.Vec(len(out)).With(out...))
	if weights != nil {
		n.weights = weights
	}

	return loss.Norm()
}

// Predict returns the predicted output.
func (n *Network) Predict(in []float64) []float64 {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	inp := xmath.Vec(len(in)).With(in...)

	outp := n.net.Predict(inp)

	return outp
}

// Snapshot exports the current weights of the network.
func (n *Network) Snapshot() (NetworkSnapshot, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.weights == nil {
		return NetworkSnapshot{}, fmt.Errorf("network has not been trained")
	}
	snapshot := NetworkSnapshot{
		Input:  n.input,
		Rate:   n.rate,
		Layers: make([]LayerWeights, len(n.sizes)),
	}
	for i := range n.sizes {
		ww, ok := n.weights[net.Meta{Layer: i}]
		if !ok {
			return NetworkSnapshot{}, fmt.Errorf("no weights traced for layer %d", i)
		}
		rows := make([][]float64, len(ww.W))
		for j, row := range ww.W {
			rows[j] = append([]float64{}, row...)
		}
		snapshot.Layers[i] = LayerWeights{
			W: rows,
			B: append([]float64{}, ww.B...),
		}
	}
	return snapshot, nil
}
