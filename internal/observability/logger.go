// Package observability wires logging, error reporting, and metrics around
// the HTTP stack.
package observability

import "go.uber.org/zap"

// NewLogger builds the process-wide structured logger: JSON to stdout in
// production, console output in development.
func NewLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
