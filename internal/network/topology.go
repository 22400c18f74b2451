// Package network implements the intent classifier network: topology
// declaration, weight manifest derivation, forward and backward passes, and
// the Adam optimizer. The numeric core uses gonum matrices.
package network

import (
	"fmt"

	"github.com/civicgo/kaiwa/internal/models"
)

// Fixed layer sizes. The layer order and these sizes are load-bearing: the
// weight manifest is derived by traversing the layer list, and the codec
// restores weights in the same traversal order.
const (
	embeddingDim = 64
	rnnUnits     = 32
	dense1Units  = 128
	dense2Units  = 64
	dropout1Rate = 0.3
	dropout2Rate = 0.2
	bnEpsilon    = 1e-3
	bnMomentum   = 0.99
)

// Build returns the full topology for the given vocabulary size and intent
// count. The same list drives model construction, training, and persistence.
func Build(vocabularySize, intentCount int) []models.LayerSpec {
	return []models.LayerSpec{
		{
			Kind:        models.LayerEmbedding,
			Name:        "embedding",
			InputDim:    vocabularySize + 1,
			OutputDim:   embeddingDim,
			InputLength: models.SequenceLength,
		},
		{
			Kind:       models.LayerBiRNN,
			Name:       "bi_rnn",
			Units:      rnnUnits,
			Activation: "tanh",
		},
		{
			Kind: models.LayerGlobalAvgPool,
			Name: "pooling",
		},
		{
			Kind:       models.LayerDense,
			Name:       "dense_1",
			Units:      dense1Units,
			Activation: "relu",
		},
		{
			Kind: models.LayerDropout,
			Name: "dropout_1",
			Rate: dropout1Rate,
		},
		{
			Kind:       models.LayerDense,
			Name:       "dense_2",
			Units:      dense2Units,
			Activation: "relu",
		},
		{
			Kind: models.LayerDropout,
			Name: "dropout_2",
			Rate: dropout2Rate,
		},
		{
			Kind: models.LayerBatchNorm,
			Name: "batch_norm",
		},
		{
			Kind:       models.LayerDense,
			Name:       "output",
			Units:      intentCount,
			Activation: "softmax",
		},
	}
}

// Manifest derives the ordered weight manifest from a layer list. Feature
// dimensions are threaded through the traversal, so the manifest can only
// change if the topology does.
func Manifest(layers []models.LayerSpec) ([]models.WeightSpec, error) {
	var specs []models.WeightSpec
	features := 0
	f32 := func(name string, shape ...int) {
		specs = append(specs, models.WeightSpec{Name: name, Shape: shape, DType: "float32"})
	}
	for _, layer := range layers {
		switch layer.Kind {
		case models.LayerEmbedding:
			f32(layer.Name+"/embeddings", layer.InputDim, layer.OutputDim)
			features = layer.OutputDim
		case models.LayerBiRNN:
			for _, dir := range []string{"forward", "backward"} {
				f32(layer.Name+"/"+dir+"/kernel", features, layer.Units)
				f32(layer.Name+"/"+dir+"/recurrent_kernel", layer.Units, layer.Units)
				f32(layer.Name+"/"+dir+"/bias", layer.Units)
			}
			features = 2 * layer.Units
		case models.LayerGlobalAvgPool, models.LayerDropout:
			// no weights, feature dimension unchanged
		case models.LayerDense:
			f32(layer.Name+"/kernel", features, layer.Units)
			f32(layer.Name+"/bias", layer.Units)
			features = layer.Units
		case models.LayerBatchNorm:
			f32(layer.Name+"/gamma", features)
			f32(layer.Name+"/beta", features)
			f32(layer.Name+"/moving_mean", features)
			f32(layer.Name+"/moving_variance", features)
		default:
			return nil, fmt.Errorf("unknown layer kind %q", layer.Kind)
		}
	}
	return specs, nil
}
