package models

// Training run statuses reported through the progress stream.
const (
	StatusStarted    = "started"
	StatusVectorized = "vectorized"
	StatusEpoch      = "epoch"
	StatusConverged  = "converged"
	StatusSaving     = "saving"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TrainProgress is one event on a training run's progress stream.
// Epoch-level fields are zero for non-epoch events; Error is set only on a
// failed terminal event.
type TrainProgress struct {
	RunID           string  `json:"run_id"`
	Status          string  `json:"status"`
	ProgressPercent int     `json:"progress_percent"`
	Epoch           int     `json:"epoch,omitempty"`
	Loss            float64 `json:"loss,omitempty"`
	ValLoss         float64 `json:"val_loss,omitempty"`
	Accuracy        float64 `json:"accuracy,omitempty"`
	LearningRate    float64 `json:"learning_rate,omitempty"`
	Patience        int     `json:"patience,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (p *TrainProgress) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}
