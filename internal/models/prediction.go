package models

// IntentScore is one (intent, probability) pair from the softmax output.
type IntentScore struct {
	Intent      string  `json:"intent"`
	Probability float64 `json:"probability"`
}

// Prediction is the result of classifying one query. AllProbabilities covers
// every known intent in the model's intent order; sorting is a caller concern.
type Prediction struct {
	Intent           string        `json:"intent"`
	Confidence       float64       `json:"confidence"`
	Response         string        `json:"response"`
	Responses        []string      `json:"responses"`
	AllProbabilities []IntentScore `json:"all_probabilities"`
}

// PredictRequest is the inference request body.
type PredictRequest struct {
	Text string `json:"text"`
}
