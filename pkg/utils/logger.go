package utils

import "go.uber.org/zap"

// NewLogger returns the process logger. Debug mode selects the development
// config (human-readable console output, debug level); otherwise the
// production config is used (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
