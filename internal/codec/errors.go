package codec

import "errors"

// Sentinel errors for bundle persistence. Callers test with errors.Is; the
// wrapped messages carry the artifact and cause.
var (
	// ErrBundleMissing: one of the three bundle artifacts is absent.
	ErrBundleMissing = errors.New("model bundle artifact missing")
	// ErrEmptyVocabulary: metadata present but holds no vocabulary entries.
	ErrEmptyVocabulary = errors.New("model metadata has empty vocabulary")
	// ErrMissingManifest: topology present but its weight manifest is empty.
	ErrMissingManifest = errors.New("topology has no weight manifest")
	// ErrInsufficientWeightData: weight blob shorter than the manifest requires.
	ErrInsufficientWeightData = errors.New("insufficient weight data")
	// ErrTransport: storage failure while fetching or writing an artifact.
	ErrTransport = errors.New("bundle transport failure")
)
