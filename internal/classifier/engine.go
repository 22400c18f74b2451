// Package classifier answers live queries against the current model: it
// featurizes the query, runs a forward pass, and picks a response.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/codec"
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/vectorizer"
	"github.com/civicgo/kaiwa/pkg/utils"
)

// ErrModelNotLoaded distinguishes "no load ever succeeded" from a genuine
// prediction failure.
var ErrModelNotLoaded = errors.New("model not loaded")

// fallbackResponses cover intents with an empty response list.
var fallbackResponses = []string{
	"I'm not sure I understood that. Could you rephrase it?",
	"Sorry, I don't have an answer for that yet.",
	"I didn't quite get that. Can you try asking another way?",
}

// apologyResponse is what the end user sees when the model cannot be loaded.
const apologyResponse = "Sorry, I'm having trouble answering right now. Please try again in a moment."

// Engine is the inference engine. The loaded model is process-wide cached
// state: one slot, populated by the first successful load and reused by every
// later call. The mutex makes concurrent first callers share a single load
// instead of racing duplicate reads.
type Engine struct {
	codec  *codec.Codec
	logger *zap.Logger

	mu    sync.Mutex
	model *codec.Model

	pickMu sync.Mutex
	rng    *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for response selection.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// New creates an Engine over the given codec.
func New(c *codec.Codec, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{codec: c, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// LoadModel reads the bundle and replaces the cached model. Idempotent; on
// failure the cache is left empty and the load error is returned.
func (e *Engine) LoadModel(ctx context.Context) error {
	model, err := e.codec.Read(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.model = nil
		return fmt.Errorf("load model: %w", err)
	}
	e.model = model
	e.logger.Info("model loaded",
		zap.Int("vocabulary_size", len(model.Vocabulary)),
		zap.Int("intents", len(model.Intents)),
	)
	return nil
}

// Loaded reports whether a model is currently cached.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

// ModelInfo returns the cached model's vocabulary size and intent count,
// or zeros when nothing is loaded.
func (e *Engine) ModelInfo() (vocabularySize, intentCount int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return 0, 0
	}
	return len(e.model.Vocabulary), len(e.model.Intents)
}

// ensureLoaded returns the cached model, loading it lazily on first use.
// Double-checked under the mutex: concurrent first callers block on one load.
func (e *Engine) ensureLoaded(ctx context.Context) (*codec.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model, nil
	}
	model, err := e.codec.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelNotLoaded, err)
	}
	e.model = model
	e.logger.Info("model lazily loaded",
		zap.Int("vocabulary_size", len(model.Vocabulary)),
		zap.Int("intents", len(model.Intents)),
	)
	return model, nil
}

// PredictIntent classifies text and returns the full prediction. Load and
// transport failures propagate as wrapped errors; the cached model is never
// mutated.
func (e *Engine) PredictIntent(ctx context.Context, text string) (*models.Prediction, error) {
	model, err := e.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	sequence := vectorizer.Featurize(text, model.Vocabulary)
	probs := model.Net.Predict(sequence)
	best := utils.Argmax(probs)
	if best < 0 {
		return nil, fmt.Errorf("model produced no probabilities")
	}

	intent := model.Intents[best]
	all := make([]models.IntentScore, len(model.Intents))
	for i, name := range model.Intents {
		all[i] = models.IntentScore{Intent: name, Probability: probs[i]}
	}

	responses := model.Responses[intent]
	pool := responses
	if len(pool) == 0 {
		pool = fallbackResponses
	}
	return &models.Prediction{
		Intent:           intent,
		Confidence:       probs[best],
		Response:         e.pick(pool),
		Responses:        responses,
		AllProbabilities: all,
	}, nil
}

// Respond is the user-facing boundary: any load or transport failure is
// logged in full and converted to a fixed apology, never surfaced raw.
func (e *Engine) Respond(ctx context.Context, text string) *models.Prediction {
	prediction, err := e.PredictIntent(ctx, text)
	if err != nil {
		e.logger.Error("prediction unavailable", zap.Error(err))
		return &models.Prediction{
			Response: apologyResponse,
		}
	}
	return prediction
}

func (e *Engine) pick(pool []string) string {
	e.pickMu.Lock()
	defer e.pickMu.Unlock()
	return pool[e.rng.Intn(len(pool))]
}
