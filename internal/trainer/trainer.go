// Package trainer drives the training loop: vectorize, build, optimize with
// early stopping and learning-rate decay, then persist the bundle.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/codec"
	"github.com/civicgo/kaiwa/internal/config"
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/network"
	"github.com/civicgo/kaiwa/internal/store"
	"github.com/civicgo/kaiwa/internal/vectorizer"
)

// ErrEmptyCorpus is returned when the example store yields no usable corpus.
// Nothing is persisted in that case.
var ErrEmptyCorpus = errors.New("training corpus is empty")

// Learning rate halves once the non-improvement streak exceeds this.
const decayPatience = 2

// Trainer runs full training invocations. Each run trains one replacement
// model from the example store and writes a whole new bundle on success.
type Trainer struct {
	examples *store.ExampleStore
	codec    *codec.Codec
	cfg      config.TrainingConfig
	logger   *zap.Logger
	rng      *rand.Rand
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithRand sets the random source used for augmentation, initialization,
// shuffling, and dropout. Inject a seeded source in tests.
func WithRand(rng *rand.Rand) Option {
	return func(t *Trainer) { t.rng = rng }
}

// New creates a Trainer.
func New(examples *store.ExampleStore, c *codec.Codec, cfg config.TrainingConfig, logger *zap.Logger, opts ...Option) *Trainer {
	t := &Trainer{examples: examples, codec: c, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return t
}

// Run starts one training invocation and returns its progress stream. The
// stream is buffered for the whole run and closed after a terminal event, so
// a caller that stops reading only stops observing; the run itself proceeds
// to completion. ctx covers the initial example fetch only — there is no
// cancellation once the epoch loop starts.
func (t *Trainer) Run(ctx context.Context) <-chan models.TrainProgress {
	out := make(chan models.TrainProgress, t.cfg.MaxEpochs+8)
	go func() {
		defer close(out)
		runID := uuid.NewString()
		if err := t.run(ctx, runID, out); err != nil {
			t.logger.Error("training run failed", zap.String("run_id", runID), zap.Error(err))
			out <- models.TrainProgress{
				RunID:  runID,
				Status: models.StatusFailed,
				Error:  err.Error(),
			}
		}
	}()
	return out
}

func (t *Trainer) run(ctx context.Context, runID string, out chan<- models.TrainProgress) error {
	out <- models.TrainProgress{RunID: runID, Status: models.StatusStarted}

	examples, err := t.examples.ListExamples(ctx)
	if err != nil {
		return fmt.Errorf("load examples: %w", err)
	}
	if len(examples) == 0 {
		return ErrEmptyCorpus
	}
	responses, err := t.examples.Responses(ctx)
	if err != nil {
		return fmt.Errorf("load responses: %w", err)
	}

	vec := vectorizer.New(vectorizer.WithRand(t.rng))
	corpus := vec.BuildCorpus(examples)
	if len(corpus.Sequences) == 0 || len(corpus.Vocabulary) == 0 {
		return ErrEmptyCorpus
	}
	out <- models.TrainProgress{RunID: runID, Status: models.StatusVectorized, ProgressPercent: 5}
	t.logger.Info("corpus vectorized",
		zap.String("run_id", runID),
		zap.Int("examples", len(examples)),
		zap.Int("sequences", len(corpus.Sequences)),
		zap.Int("vocabulary_size", len(corpus.Vocabulary)),
		zap.Int("intents", len(corpus.Intents)),
	)

	net, err := network.New(network.Build(len(corpus.Vocabulary), len(corpus.Intents)),
		network.WithRand(t.rng))
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}

	learningRate := t.cfg.LearningRate
	opt := network.NewAdam(learningRate)
	bestLoss := math.Inf(1)
	patience := 0
	converged := false

	for epoch := 0; epoch < t.cfg.MaxEpochs; epoch++ {
		trainSeqs, trainLabels, valSeqs, valLabels := t.split(corpus)

		var epochLoss float64
		batches := 0
		for start := 0; start < len(trainSeqs); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(trainSeqs) {
				end = len(trainSeqs)
			}
			epochLoss += net.TrainBatch(trainSeqs[start:end], trainLabels[start:end], opt)
			batches++
		}
		currentLoss := epochLoss / float64(batches)

		var valLoss, valAcc float64
		if len(valSeqs) > 0 {
			valLoss, valAcc = net.Evaluate(valSeqs, valLabels)
		}

		if currentLoss < bestLoss {
			bestLoss = currentLoss
			patience = 0
		} else {
			patience++
			if patience >= t.cfg.MaxPatience {
				converged = true
			}
		}
		if !converged && patience > decayPatience {
			learningRate /= 2
			opt = network.NewAdam(learningRate)
			t.logger.Info("learning rate halved",
				zap.String("run_id", runID),
				zap.Int("epoch", epoch+1),
				zap.Float64("learning_rate", learningRate),
			)
		}

		status := models.StatusEpoch
		if converged {
			status = models.StatusConverged
		}
		out <- models.TrainProgress{
			RunID:           runID,
			Status:          status,
			ProgressPercent: 5 + 90*(epoch+1)/t.cfg.MaxEpochs,
			Epoch:           epoch + 1,
			Loss:            currentLoss,
			ValLoss:         valLoss,
			Accuracy:        valAcc,
			LearningRate:    learningRate,
			Patience:        patience,
		}
		if converged {
			break
		}
	}

	out <- models.TrainProgress{RunID: runID, Status: models.StatusSaving, ProgressPercent: 95}
	model := &codec.Model{
		Net:        net,
		Vocabulary: corpus.Vocabulary,
		Intents:    corpus.Intents,
		Responses:  responses,
	}
	// Persistence deliberately ignores the observer's context: once training
	// finished, the bundle write must not be aborted by a disconnect.
	if err := t.codec.Write(context.Background(), model); err != nil {
		return fmt.Errorf("persist bundle: %w", err)
	}
	out <- models.TrainProgress{RunID: runID, Status: models.StatusCompleted, ProgressPercent: 100}
	t.logger.Info("training run completed",
		zap.String("run_id", runID),
		zap.Float64("best_loss", bestLoss),
		zap.Bool("converged", converged),
	)
	return nil
}

// split reshuffles the corpus and holds out the validation fraction. Called
// once per epoch so the held-out set differs between epochs.
func (t *Trainer) split(corpus *models.Corpus) (trainSeqs [][]int, trainLabels []int, valSeqs [][]int, valLabels []int) {
	n := len(corpus.Sequences)
	perm := t.rng.Perm(n)
	valCount := int(t.cfg.ValidationSplit * float64(n))
	if valCount >= n {
		valCount = n - 1
	}
	for i, idx := range perm {
		if i < valCount {
			valSeqs = append(valSeqs, corpus.Sequences[idx])
			valLabels = append(valLabels, corpus.Labels[idx])
		} else {
			trainSeqs = append(trainSeqs, corpus.Sequences[idx])
			trainLabels = append(trainLabels, corpus.Labels[idx])
		}
	}
	return trainSeqs, trainLabels, valSeqs, valLabels
}
