package vectorizer

import (
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/pkg/utils"
)

// unknownToken is looked up in the vocabulary for unseen query features.
// Corpora built here never assign it, so the lookup falls back to index 0.
const unknownToken = "<unk>"

// BuildCorpus augments every example, assigns vocabulary indices to tokens in
// first-encounter order starting at 1, and encodes each emitted pattern as a
// fixed-length sequence. Labels are positions in the returned intent list
// (also first-encounter order).
//
// An empty example list yields an empty corpus and vocabulary; rejecting that
// is the caller's concern.
func (v *Vectorizer) BuildCorpus(examples []models.TrainingExample) *models.Corpus {
	corpus := &models.Corpus{Vocabulary: make(map[string]int)}
	intentIndex := make(map[string]int)

	type tagged struct {
		pattern string
		label   int
	}
	var emitted []tagged

	for _, ex := range examples {
		label, ok := intentIndex[ex.Intent]
		if !ok {
			label = len(corpus.Intents)
			intentIndex[ex.Intent] = label
			corpus.Intents = append(corpus.Intents, ex.Intent)
		}
		for _, pattern := range v.Augment(ex.Pattern) {
			emitted = append(emitted, tagged{pattern: pattern, label: label})
			for _, token := range utils.SplitWords(pattern) {
				if _, known := corpus.Vocabulary[token]; !known {
					corpus.Vocabulary[token] = len(corpus.Vocabulary) + 1
				}
			}
		}
	}

	for _, e := range emitted {
		corpus.Sequences = append(corpus.Sequences, Encode(e.pattern, corpus.Vocabulary))
		corpus.Labels = append(corpus.Labels, e.label)
	}
	return corpus
}

// Encode tokenizes pattern on whitespace, maps each token through the
// vocabulary (0 when unknown), truncates to the sequence length, and
// right-pads with 0 to exactly that length.
func Encode(pattern string, vocabulary map[string]int) []int {
	seq := make([]int, models.SequenceLength)
	words := utils.TruncateWords(utils.SplitWords(pattern), models.SequenceLength)
	for i, w := range words {
		seq[i] = vocabulary[w]
	}
	return seq
}

// Featurize prepares one query string for inference: normalize, tokenize into
// unigrams followed by adjacent-pair bigrams, map through the vocabulary with
// the unknown-token fallback, and truncate/pad to the sequence length.
func Featurize(text string, vocabulary map[string]int) []int {
	words := utils.SplitWords(utils.NormalizeText(text))
	features := append(words, utils.Bigrams(words)...)

	unknown := vocabulary[unknownToken]
	seq := make([]int, models.SequenceLength)
	for i, f := range utils.TruncateWords(features, models.SequenceLength) {
		if idx, ok := vocabulary[f]; ok {
			seq[i] = idx
		} else {
			seq[i] = unknown
		}
	}
	return seq
}
