// Package codec serializes a trained model into a three-artifact bundle and
// reconstructs a runnable model from one.
package codec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/network"
	"github.com/civicgo/kaiwa/internal/store"
)

// Bundle artifact keys in the blob store.
const (
	KeyTopology = "model/topology"
	KeyWeights  = "model/weights"
	KeyMetadata = "model/metadata"
)

// Model is a reconstructed (or freshly trained) model together with the
// lookup tables inference needs.
type Model struct {
	Net        *network.Network
	Vocabulary map[string]int
	Intents    []string
	Responses  map[string][]string
}

// Codec reads and writes model bundles against a blob store.
type Codec struct {
	blobs  store.BlobStore
	logger *zap.Logger
}

// New creates a Codec over the given blob store.
func New(blobs store.BlobStore, logger *zap.Logger) *Codec {
	return &Codec{blobs: blobs, logger: logger}
}

// Write persists the model as three artifacts: the topology document (layers
// plus weight manifest), the raw weight blob, and the metadata document. The
// blob is written last so a bundle with a topology but no weights can only
// mean an interrupted write.
func (c *Codec) Write(ctx context.Context, model *Model) error {
	topo := models.TopologyDoc{
		Layers:         model.Net.Layers(),
		WeightManifest: model.Net.Manifest(),
	}
	topoJSON, err := json.Marshal(&topo)
	if err != nil {
		return fmt.Errorf("marshal topology: %w", err)
	}
	meta := models.MetadataDoc{
		Vocabulary: model.Vocabulary,
		Intents:    model.Intents,
		Responses:  model.Responses,
		Version:    models.BundleVersion,
	}
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	blob := weightsToBytes(model.Net.Weights())
	if want := topo.TotalFloats() * 4; len(blob) != want {
		return fmt.Errorf("weight blob is %d bytes, manifest requires %d", len(blob), want)
	}

	if err := c.blobs.Put(ctx, KeyTopology, topoJSON); err != nil {
		return fmt.Errorf("%w: put topology: %v", ErrTransport, err)
	}
	if err := c.blobs.Put(ctx, KeyMetadata, metaJSON); err != nil {
		return fmt.Errorf("%w: put metadata: %v", ErrTransport, err)
	}
	if err := c.blobs.Put(ctx, KeyWeights, blob); err != nil {
		return fmt.Errorf("%w: put weights: %v", ErrTransport, err)
	}
	c.logger.Info("model bundle written",
		zap.Int("layers", len(topo.Layers)),
		zap.Int("manifest_entries", len(topo.WeightManifest)),
		zap.Int("weight_bytes", len(blob)),
		zap.Int("vocabulary_size", len(meta.Vocabulary)),
		zap.Int("intents", len(meta.Intents)),
	)
	return nil
}

// Read fetches the three artifacts and reassembles a runnable model: it
// rebuilds the architecture from the metadata's vocabulary size and intent
// count, verifies the persisted manifest matches the rebuilt one, then
// restores weights by slicing the flat blob in manifest order.
func (c *Codec) Read(ctx context.Context) (*Model, error) {
	meta, err := c.readMetadata(ctx)
	if err != nil {
		return nil, err
	}
	topo, err := c.readTopology(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := c.fetch(ctx, KeyWeights)
	if err != nil {
		return nil, err
	}

	floats := bytesToFloats(raw)
	needed := topo.TotalFloats()
	if len(floats) < needed {
		return nil, fmt.Errorf("%w: blob holds %d floats, manifest requires %d",
			ErrInsufficientWeightData, len(floats), needed)
	}
	if surplus := len(floats) - needed; surplus > 0 {
		// Tolerated as trailing padding; logged so a genuine manifest/blob
		// mismatch is observable.
		c.logger.Warn("weight blob has surplus floats",
			zap.Int("surplus", surplus),
			zap.Int("required", needed),
		)
	}

	net, err := network.New(network.Build(len(meta.Vocabulary), len(meta.Intents)))
	if err != nil {
		return nil, fmt.Errorf("rebuild architecture: %w", err)
	}
	if err := manifestsEqual(topo.WeightManifest, net.Manifest()); err != nil {
		return nil, fmt.Errorf("persisted manifest does not match rebuilt architecture: %w", err)
	}

	values := make([][]float64, len(topo.WeightManifest))
	offset := 0
	for i, spec := range topo.WeightManifest {
		n := spec.Elements()
		values[i] = floats[offset : offset+n]
		offset += n
	}
	if err := net.SetWeights(values); err != nil {
		return nil, fmt.Errorf("restore weights: %w", err)
	}

	c.logger.Debug("model bundle loaded",
		zap.Int("vocabulary_size", len(meta.Vocabulary)),
		zap.Int("intents", len(meta.Intents)),
		zap.Int("manifest_entries", len(topo.WeightManifest)),
		zap.Int("total_floats", needed),
	)
	return &Model{
		Net:        net,
		Vocabulary: meta.Vocabulary,
		Intents:    meta.Intents,
		Responses:  meta.Responses,
	}, nil
}

func (c *Codec) readMetadata(ctx context.Context) (*models.MetadataDoc, error) {
	raw, err := c.fetch(ctx, KeyMetadata)
	if err != nil {
		return nil, err
	}
	var meta models.MetadataDoc
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if len(meta.Vocabulary) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return &meta, nil
}

func (c *Codec) readTopology(ctx context.Context) (*models.TopologyDoc, error) {
	raw, err := c.fetch(ctx, KeyTopology)
	if err != nil {
		return nil, err
	}
	var topo models.TopologyDoc
	if err := json.Unmarshal(raw, &topo); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if len(topo.WeightManifest) == 0 {
		return nil, ErrMissingManifest
	}
	return &topo, nil
}

// fetch maps a missing blob to ErrBundleMissing and any other storage failure
// to ErrTransport, preserving the cause in the message.
func (c *Codec) fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := c.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBundleMissing, key)
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrTransport, key, err)
	}
	return data, nil
}

func manifestsEqual(persisted, rebuilt []models.WeightSpec) error {
	if len(persisted) != len(rebuilt) {
		return fmt.Errorf("entry count %d vs %d", len(persisted), len(rebuilt))
	}
	for i := range persisted {
		if persisted[i].Name != rebuilt[i].Name {
			return fmt.Errorf("entry %d: %q vs %q", i, persisted[i].Name, rebuilt[i].Name)
		}
		if persisted[i].Elements() != rebuilt[i].Elements() {
			return fmt.Errorf("entry %q: %d vs %d elements",
				persisted[i].Name, persisted[i].Elements(), rebuilt[i].Elements())
		}
	}
	return nil
}
