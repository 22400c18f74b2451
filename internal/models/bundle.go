package models

// BundleVersion is the persisted model bundle format version.
const BundleVersion = "1"

// LayerSpec describes one network layer. The ordered list of LayerSpecs is the
// single source of truth for both model construction and weight persistence,
// so build order and save order cannot diverge.
type LayerSpec struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Units       int     `json:"units,omitempty"`
	Activation  string  `json:"activation,omitempty"`
	Rate        float64 `json:"rate,omitempty"`
	InputDim    int     `json:"input_dim,omitempty"`
	OutputDim   int     `json:"output_dim,omitempty"`
	InputLength int     `json:"input_length,omitempty"`
}

// Layer kinds used in LayerSpec.Kind.
const (
	LayerEmbedding     = "embedding"
	LayerBiRNN         = "bidirectional_rnn"
	LayerGlobalAvgPool = "global_average_pooling"
	LayerDense         = "dense"
	LayerDropout       = "dropout"
	LayerBatchNorm     = "batch_normalization"
)

// WeightSpec is one entry of the weight manifest: a named trainable (or
// tracked) array with its shape and dtype, in model traversal order.
type WeightSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
}

// Elements returns the number of scalar values the entry holds.
func (w WeightSpec) Elements() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}

// TopologyDoc is the persisted topology artifact: the layer list plus the
// weight manifest in the exact order the weight blob is laid out.
type TopologyDoc struct {
	Layers         []LayerSpec  `json:"layers"`
	WeightManifest []WeightSpec `json:"weight_manifest"`
}

// TotalFloats returns the number of float32 values the weight blob must hold.
func (t *TopologyDoc) TotalFloats() int {
	var n int
	for _, w := range t.WeightManifest {
		n += w.Elements()
	}
	return n
}

// MetadataDoc is the persisted metadata artifact: everything besides topology
// and raw weights needed to answer queries.
type MetadataDoc struct {
	Vocabulary map[string]int      `json:"vocabulary"`
	Intents    []string            `json:"intents"`
	Responses  map[string][]string `json:"responses"`
	Version    string              `json:"version"`
}
