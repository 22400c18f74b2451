package network

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/civicgo/kaiwa/internal/models"
)

// Param is one named weight array. Data is the flat row-major backing slice;
// matrices built over it share the same memory, so optimizer updates are
// visible everywhere.
type Param struct {
	Spec models.WeightSpec
	Data []float64
}

// Matrix returns a gonum view over a two-dimensional param.
func (p *Param) Matrix() *mat.Dense {
	return mat.NewDense(p.Spec.Shape[0], p.Spec.Shape[1], p.Data)
}

// Trainable reports whether the optimizer updates this param. Batch-norm
// moving statistics are tracked state, not optimized weights.
func (p *Param) Trainable() bool {
	return !strings.HasSuffix(p.Spec.Name, "/moving_mean") &&
		!strings.HasSuffix(p.Spec.Name, "/moving_variance")
}

// Network is the assembled classifier. It is built from a layer list and owns
// one Param per weight manifest entry, in manifest order.
type Network struct {
	layers   []models.LayerSpec
	manifest []models.WeightSpec
	params   []*Param
	byName   map[string]*Param

	vocabPlusOne int
	classes      int
	seqLen       int
	dropRates    []float64

	rng *rand.Rand
}

// Option configures a Network.
type Option func(*Network)

// WithRand sets the random source used for weight initialization and dropout.
func WithRand(rng *rand.Rand) Option {
	return func(n *Network) { n.rng = rng }
}

// New assembles a freshly initialized network from a layer list.
func New(layers []models.LayerSpec, opts ...Option) (*Network, error) {
	manifest, err := Manifest(layers)
	if err != nil {
		return nil, err
	}
	n := &Network{
		layers:   layers,
		manifest: manifest,
		byName:   make(map[string]*Param, len(manifest)),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	for _, layer := range layers {
		switch layer.Kind {
		case models.LayerEmbedding:
			n.vocabPlusOne = layer.InputDim
			n.seqLen = layer.InputLength
		case models.LayerDropout:
			n.dropRates = append(n.dropRates, layer.Rate)
		case models.LayerDense:
			n.classes = layer.Units // last dense wins: the output layer
		}
	}
	if n.vocabPlusOne == 0 || n.classes == 0 {
		return nil, fmt.Errorf("topology missing embedding or output layer")
	}
	for _, spec := range manifest {
		p := &Param{Spec: spec, Data: make([]float64, spec.Elements())}
		n.initParam(p)
		n.params = append(n.params, p)
		n.byName[spec.Name] = p
	}
	return n, nil
}

// initParam applies the default initializer for the param's role:
// Glorot-uniform for kernels, small uniform for embeddings, zeros for biases
// and batch-norm beta/moving mean, ones for gamma and moving variance.
func (n *Network) initParam(p *Param) {
	name := p.Spec.Name
	switch {
	case strings.HasSuffix(name, "/embeddings"):
		for i := range p.Data {
			p.Data[i] = n.rng.Float64()*0.1 - 0.05
		}
	case strings.HasSuffix(name, "/kernel"), strings.HasSuffix(name, "/recurrent_kernel"):
		fanIn, fanOut := p.Spec.Shape[0], p.Spec.Shape[1]
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		for i := range p.Data {
			p.Data[i] = n.rng.Float64()*2*limit - limit
		}
	case strings.HasSuffix(name, "/gamma"), strings.HasSuffix(name, "/moving_variance"):
		for i := range p.Data {
			p.Data[i] = 1
		}
	default:
		// biases, beta, moving mean stay zero
	}
}

// Layers returns the layer list the network was built from.
func (n *Network) Layers() []models.LayerSpec {
	return n.layers
}

// Manifest returns the weight manifest in traversal order.
func (n *Network) Manifest() []models.WeightSpec {
	return n.manifest
}

// Classes returns the number of output intents.
func (n *Network) Classes() int {
	return n.classes
}

// Weights returns every weight array's values in manifest order. The returned
// slices are the live backing arrays; callers must not mutate them.
func (n *Network) Weights() [][]float64 {
	out := make([][]float64, len(n.params))
	for i, p := range n.params {
		out[i] = p.Data
	}
	return out
}

// SetWeights assigns values to every param in manifest order. Lengths must
// match the manifest exactly.
func (n *Network) SetWeights(values [][]float64) error {
	if len(values) != len(n.params) {
		return fmt.Errorf("weight count mismatch: got %d arrays, manifest has %d", len(values), len(n.params))
	}
	for i, p := range n.params {
		if len(values[i]) != len(p.Data) {
			return fmt.Errorf("weight %q size mismatch: got %d values, want %d",
				p.Spec.Name, len(values[i]), len(p.Data))
		}
		copy(p.Data, values[i])
	}
	return nil
}

// param returns the named param; panics on unknown names, which can only
// happen if traversal and manifest derivation diverge.
func (n *Network) param(name string) *Param {
	p, ok := n.byName[name]
	if !ok {
		panic("network: unknown param " + name)
	}
	return p
}
