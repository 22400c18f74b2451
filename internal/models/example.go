// Package models defines the shared data types for the intent engine.
package models

// SequenceLength is the fixed encoded length of every pattern: longer inputs
// are truncated, shorter ones right-padded with the reserved index 0.
const SequenceLength = 20

// TrainingExample is one labeled utterance: a user pattern and the intent it
// expresses. Many examples share an intent.
type TrainingExample struct {
	Pattern string `json:"pattern"`
	Intent  string `json:"intent"`
}

// Corpus is the vectorized training set: fixed-length token-index sequences,
// one class id per sequence, the vocabulary they were encoded with, and the
// intents in first-encounter order (class id = position in Intents).
type Corpus struct {
	Sequences  [][]int
	Labels     []int
	Vocabulary map[string]int
	Intents    []string
}
