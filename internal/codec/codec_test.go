package codec

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/network"
	"github.com/civicgo/kaiwa/internal/store"
)

func newTestModel(t *testing.T, vocabSize, intents int) *Model {
	t.Helper()
	net, err := network.New(network.Build(vocabSize, intents),
		network.WithRand(rand.New(rand.NewSource(5))))
	if err != nil {
		t.Fatal(err)
	}
	vocab := make(map[string]int, vocabSize)
	for i := 0; i < vocabSize; i++ {
		vocab[string(rune('a'+i))] = i + 1
	}
	intentNames := make([]string, intents)
	responses := make(map[string][]string, intents)
	for i := range intentNames {
		name := "intent_" + string(rune('a'+i))
		intentNames[i] = name
		responses[name] = []string{"response for " + name}
	}
	return &Model{Net: net, Vocabulary: vocab, Intents: intentNames, Responses: responses}
}

func TestWriteRead_roundTrip(t *testing.T) {
	blobs := store.NewMemoryStore()
	c := New(blobs, zap.NewNop())
	ctx := context.Background()

	model := newTestModel(t, 8, 3)
	if err := c.Write(ctx, model); err != nil {
		t.Fatal(err)
	}
	loaded, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Every manifest entry's values survive to float32 precision.
	orig, got := model.Net.Weights(), loaded.Net.Weights()
	if len(orig) != len(got) {
		t.Fatalf("weight array count: %d vs %d", len(orig), len(got))
	}
	for i := range orig {
		if len(orig[i]) != len(got[i]) {
			t.Fatalf("array %d length: %d vs %d", i, len(orig[i]), len(got[i]))
		}
		for j := range orig[i] {
			want := float64(float32(orig[i][j]))
			if math.Abs(got[i][j]-want) > 1e-12 {
				t.Fatalf("array %d[%d]: %v vs %v", i, j, got[i][j], want)
			}
		}
	}

	if len(loaded.Vocabulary) != len(model.Vocabulary) {
		t.Errorf("vocabulary size %d, want %d", len(loaded.Vocabulary), len(model.Vocabulary))
	}
	if len(loaded.Intents) != 3 || loaded.Intents[0] != model.Intents[0] {
		t.Errorf("intents = %v", loaded.Intents)
	}
	if len(loaded.Responses) != 3 {
		t.Errorf("responses = %v", loaded.Responses)
	}

	// Reloaded model predicts identically to within float32 rounding.
	seq := make([]int, models.SequenceLength)
	seq[0], seq[1] = 2, 5
	pa, pb := model.Net.Predict(seq), loaded.Net.Predict(seq)
	for i := range pa {
		if math.Abs(pa[i]-pb[i]) > 1e-5 {
			t.Errorf("prediction %d: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestRead_missingArtifacts(t *testing.T) {
	ctx := context.Background()
	for _, missing := range []string{KeyTopology, KeyWeights, KeyMetadata} {
		blobs := store.NewMemoryStore()
		c := New(blobs, zap.NewNop())
		if err := c.Write(ctx, newTestModel(t, 4, 2)); err != nil {
			t.Fatal(err)
		}
		if err := blobs.Delete(ctx, missing); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Read(ctx); !errors.Is(err, ErrBundleMissing) {
			t.Errorf("missing %s: expected ErrBundleMissing, got %v", missing, err)
		}
	}
}

func TestRead_shortBlob(t *testing.T) {
	blobs := store.NewMemoryStore()
	c := New(blobs, zap.NewNop())
	ctx := context.Background()
	if err := c.Write(ctx, newTestModel(t, 4, 2)); err != nil {
		t.Fatal(err)
	}
	if err := blobs.Put(ctx, KeyWeights, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read(ctx); !errors.Is(err, ErrInsufficientWeightData) {
		t.Errorf("expected ErrInsufficientWeightData, got %v", err)
	}
}

func TestRead_surplusTolerated(t *testing.T) {
	blobs := store.NewMemoryStore()
	c := New(blobs, zap.NewNop())
	ctx := context.Background()
	model := newTestModel(t, 4, 2)
	if err := c.Write(ctx, model); err != nil {
		t.Fatal(err)
	}
	blob, err := blobs.Get(ctx, KeyWeights)
	if err != nil {
		t.Fatal(err)
	}
	if err := blobs.Put(ctx, KeyWeights, append(append([]byte{}, blob...), 0, 0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read(ctx); err != nil {
		t.Errorf("surplus bytes should be tolerated, got %v", err)
	}
}

func TestRead_emptyVocabulary(t *testing.T) {
	blobs := store.NewMemoryStore()
	c := New(blobs, zap.NewNop())
	ctx := context.Background()
	if err := c.Write(ctx, newTestModel(t, 4, 2)); err != nil {
		t.Fatal(err)
	}
	meta, _ := json.Marshal(&models.MetadataDoc{
		Vocabulary: map[string]int{},
		Intents:    []string{"a"},
		Version:    models.BundleVersion,
	})
	if err := blobs.Put(ctx, KeyMetadata, meta); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read(ctx); !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("expected ErrEmptyVocabulary, got %v", err)
	}
}

func TestRead_emptyManifest(t *testing.T) {
	blobs := store.NewMemoryStore()
	c := New(blobs, zap.NewNop())
	ctx := context.Background()
	if err := c.Write(ctx, newTestModel(t, 4, 2)); err != nil {
		t.Fatal(err)
	}
	topo, _ := json.Marshal(&models.TopologyDoc{Layers: network.Build(4, 2)})
	if err := blobs.Put(ctx, KeyTopology, topo); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read(ctx); !errors.Is(err, ErrMissingManifest) {
		t.Errorf("expected ErrMissingManifest, got %v", err)
	}
}

func TestBytesToFloats_padsOddLength(t *testing.T) {
	// 11 bytes pad to 12 and decode to exactly 3 floats.
	floats := bytesToFloats(make([]byte, 11))
	if len(floats) != 3 {
		t.Errorf("got %d floats, want 3", len(floats))
	}
}

func TestWeightsToBytes_lengthAndValues(t *testing.T) {
	blob := weightsToBytes([][]float64{{1.5, -2}, {0.25}})
	if len(blob) != 12 {
		t.Fatalf("blob length = %d, want 12", len(blob))
	}
	floats := bytesToFloats(blob)
	want := []float64{1.5, -2, 0.25}
	for i, v := range want {
		if floats[i] != v {
			t.Errorf("float %d = %v, want %v", i, floats[i], v)
		}
	}
}
