package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/classifier"
	"github.com/civicgo/kaiwa/internal/codec"
	"github.com/civicgo/kaiwa/internal/config"
	"github.com/civicgo/kaiwa/internal/dataset"
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/server"
	"github.com/civicgo/kaiwa/internal/store"
	"github.com/civicgo/kaiwa/internal/trainer"
)

type stack struct {
	cfg      *config.Config
	examples *store.ExampleStore
	codec    *codec.Codec
	engine   *classifier.Engine
	trainer  *trainer.Trainer
	server   *server.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "examples.db"),
			BundlePath:   filepath.Join(dir, "model"),
		},
		Training: config.TrainingConfig{
			MaxEpochs: 10, BatchSize: 8, LearningRate: 0.01, MaxPatience: 5, ValidationSplit: 0.2,
		},
	}
	examples, err := store.NewExampleStore(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { examples.Close() })
	blobs, err := store.NewDiskStore(cfg.Storage.BundlePath)
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	c := codec.New(blobs, logger)
	engine := classifier.New(c, logger, classifier.WithRand(rand.New(rand.NewSource(11))))
	tr := trainer.New(examples, c, cfg.Training, logger, trainer.WithRand(rand.New(rand.NewSource(11))))
	return &stack{
		cfg:      cfg,
		examples: examples,
		codec:    c,
		engine:   engine,
		trainer:  tr,
		server:   server.NewServer(engine, tr, examples, cfg, logger),
	}
}

func TestE2E_TrainPersistReloadPredict(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	if err := dataset.Seed(ctx, s.examples); err != nil {
		t.Fatal(err)
	}

	var terminal models.TrainProgress
	for event := range s.trainer.Run(ctx) {
		terminal = event
	}
	if terminal.Status != models.StatusCompleted {
		t.Fatalf("training terminal event = %+v", terminal)
	}

	// The bundle on disk must reproduce the trained model exactly. A fresh
	// engine over the same store simulates a process restart.
	logger := zap.NewNop()
	restarted := classifier.New(s.codec, logger, classifier.WithRand(rand.New(rand.NewSource(11))))
	if err := restarted.LoadModel(ctx); err != nil {
		t.Fatalf("reload after restart: %v", err)
	}

	queries := []string{
		"what are your office hours",
		"i forgot my password",
		"hello",
	}
	for _, q := range queries {
		first, err := s.engine.PredictIntent(ctx, q)
		if err != nil {
			t.Fatalf("predict %q: %v", q, err)
		}
		second, err := restarted.PredictIntent(ctx, q)
		if err != nil {
			t.Fatalf("predict %q after reload: %v", q, err)
		}
		if first.Intent != second.Intent {
			t.Errorf("query %q: intent %q before reload, %q after", q, first.Intent, second.Intent)
		}
		if len(first.AllProbabilities) != len(second.AllProbabilities) {
			t.Fatalf("query %q: probability count changed across reload", q)
		}
		for i := range first.AllProbabilities {
			diff := first.AllProbabilities[i].Probability - second.AllProbabilities[i].Probability
			if diff < -1e-6 || diff > 1e-6 {
				t.Errorf("query %q: probability %d drifted by %v across reload", q, i, diff)
			}
		}
		if first.Response == "" {
			t.Errorf("query %q: empty response", q)
		}
	}
}

func TestE2E_HTTPSurface(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if err := dataset.Seed(ctx, s.examples); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(s.server.Router())
	defer ts.Close()

	// Health first.
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	// Train over HTTP and read the NDJSON stream to its terminal event.
	resp, err = http.Post(ts.URL+"/api/v1/train", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("train status = %d", resp.StatusCode)
	}
	var terminal models.TrainProgress
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &terminal); err != nil {
			t.Fatalf("bad progress line %q: %v", scanner.Text(), err)
		}
	}
	if terminal.Status != models.StatusCompleted {
		t.Fatalf("training terminal event = %+v", terminal)
	}

	// Predict against the freshly trained model.
	body, _ := json.Marshal(models.PredictRequest{Text: "when is garbage collected"})
	resp, err = http.Post(ts.URL+"/api/v1/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict status = %d", resp.StatusCode)
	}
	var prediction models.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		t.Fatal(err)
	}
	if prediction.Intent == "" || prediction.Response == "" {
		t.Errorf("incomplete prediction: %+v", prediction)
	}
	var sum float64
	for _, p := range prediction.AllProbabilities {
		sum += p.Probability
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %v", sum)
	}

	// Explicit reload and status.
	resp, err = http.Post(ts.URL+"/api/v1/model/load", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("model load status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status struct {
		Examples    int64 `json:"examples"`
		ModelLoaded bool  `json:"model_loaded"`
		Intents     int   `json:"intents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Examples == 0 || !status.ModelLoaded || status.Intents == 0 {
		t.Errorf("status = %+v", status)
	}
}
