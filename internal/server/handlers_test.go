package server

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
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/network"
	"github.com/civicgo/kaiwa/internal/store"
	"github.com/civicgo/kaiwa/internal/trainer"
)

func newTestServer(t *testing.T) (*Server, *store.ExampleStore, *codec.Codec) {
	t.Helper()
	dir := t.TempDir()
	examples, err := store.NewExampleStore(filepath.Join(dir, "examples.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { examples.Close() })
	blobs, err := store.NewDiskStore(filepath.Join(dir, "model"))
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	c := codec.New(blobs, logger)
	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Storage: config.StorageConfig{DatabasePath: filepath.Join(dir, "examples.db"), BundlePath: filepath.Join(dir, "model")},
		Training: config.TrainingConfig{
			MaxEpochs: 3, BatchSize: 8, LearningRate: 0.01, MaxPatience: 5, ValidationSplit: 0.2,
		},
	}
	engine := classifier.New(c, logger, classifier.WithRand(rand.New(rand.NewSource(7))))
	tr := trainer.New(examples, c, cfg.Training, logger, trainer.WithRand(rand.New(rand.NewSource(7))))
	return NewServer(engine, tr, examples, cfg, logger), examples, c
}

func seedExamples(t *testing.T, examples *store.ExampleStore) {
	t.Helper()
	err := examples.AddExamples(context.Background(), []models.TrainingExample{
		{Pattern: "hello there", Intent: "greeting"},
		{Pattern: "hi", Intent: "greeting"},
		{Pattern: "good morning", Intent: "greeting"},
		{Pattern: "goodbye", Intent: "farewell"},
		{Pattern: "see you later", Intent: "farewell"},
		{Pattern: "bye for now", Intent: "farewell"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := examples.SetResponses(context.Background(), "greeting", []string{"Hello!"}); err != nil {
		t.Fatal(err)
	}
}

func writeBundle(t *testing.T, c *codec.Codec) {
	t.Helper()
	net, err := network.New(network.Build(4, 2),
		network.WithRand(rand.New(rand.NewSource(5))))
	if err != nil {
		t.Fatal(err)
	}
	model := &codec.Model{
		Net:        net,
		Vocabulary: map[string]int{"hello": 1, "there": 2, "goodbye": 3, "hi": 4},
		Intents:    []string{"greeting", "farewell"},
		Responses:  map[string][]string{"greeting": {"Hello!"}, "farewell": {"Bye!"}},
	}
	if err := c.Write(context.Background(), model); err != nil {
		t.Fatal(err)
	}
}

func TestHandlePredict(t *testing.T) {
	srv, _, c := newTestServer(t)
	writeBundle(t, c)

	body, _ := json.Marshal(models.PredictRequest{Text: "hello there"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handlePredict(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.Prediction
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Intent == "" || out.Response == "" {
		t.Errorf("incomplete prediction: %+v", out)
	}
}

func TestHandlePredict_missingBundleStillResponds(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, _ := json.Marshal(models.PredictRequest{Text: "hello"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handlePredict(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.Prediction
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Response == "" {
		t.Error("expected apology response without a model")
	}
	if out.Intent != "" {
		t.Errorf("apology should carry no intent, got %q", out.Intent)
	}
}

func TestHandlePredict_emptyText(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body, _ := json.Marshal(models.PredictRequest{Text: "   "})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handlePredict(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleTrain_streamsProgressAndCompletes(t *testing.T) {
	srv, examples, c := newTestServer(t)
	seedExamples(t, examples)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/train", nil)
	w := httptest.NewRecorder()
	srv.handleTrain(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type: got %q", ct)
	}

	var events []models.TrainProgress
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		var ev models.TrainProgress
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) < 3 {
		t.Fatalf("expected started, epochs, and a terminal event, got %d", len(events))
	}
	if events[0].Status != models.StatusStarted {
		t.Errorf("first event = %q", events[0].Status)
	}
	last := events[len(events)-1]
	if last.Status != models.StatusCompleted {
		t.Fatalf("terminal event = %+v", last)
	}
	if last.ProgressPercent != 100 {
		t.Errorf("final progress = %d", last.ProgressPercent)
	}

	// The run must have persisted a readable bundle and warmed the engine.
	if _, err := c.Read(context.Background()); err != nil {
		t.Errorf("bundle not readable after training: %v", err)
	}
	if !srv.engine.Loaded() {
		t.Error("engine should hold the new model after training")
	}
}

func TestHandleTrain_emptyStoreFails(t *testing.T) {
	srv, _, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/train", nil)
	w := httptest.NewRecorder()
	srv.handleTrain(w, r)
	// Headers are already committed when the failure surfaces; the stream
	// itself carries the failed event.
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var last models.TrainProgress
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &last); err != nil {
			t.Fatal(err)
		}
	}
	if last.Status != models.StatusFailed || last.Error == "" {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestHandleTrain_conflictWhileRunning(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.training.Store(true)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/train", nil)
	w := httptest.NewRecorder()
	srv.handleTrain(w, r)
	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", w.Code)
	}
}

func TestHandleModelLoad(t *testing.T) {
	srv, _, c := newTestServer(t)
	writeBundle(t, c)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/model/load", nil)
	w := httptest.NewRecorder()
	srv.handleModelLoad(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Status         string `json:"status"`
		VocabularySize int    `json:"vocabulary_size"`
		Intents        int    `json:"intents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "loaded" || out.VocabularySize != 4 || out.Intents != 2 {
		t.Errorf("response = %+v", out)
	}
}

func TestHandleModelLoad_missingBundle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/model/load", nil)
	w := httptest.NewRecorder()
	srv.handleModelLoad(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, examples, c := newTestServer(t)
	seedExamples(t, examples)
	writeBundle(t, c)
	if err := srv.engine.LoadModel(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Examples       int64  `json:"examples"`
		ModelLoaded    bool   `json:"model_loaded"`
		VocabularySize int    `json:"vocabulary_size"`
		Intents        int    `json:"intents"`
		DiskUsageBytes *int64 `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Examples != 6 {
		t.Errorf("examples: got %d, want 6", out.Examples)
	}
	if !out.ModelLoaded || out.VocabularySize != 4 || out.Intents != 2 {
		t.Errorf("model info = %+v", out)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes < 1 {
		t.Error("expected positive disk_usage_bytes")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}
