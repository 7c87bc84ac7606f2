package ports

import "context"

// Logger is the structured logging interface injected throughout the
// pipeline. Fields are flat key-value maps; implementations decide the
// output format. All settlement-path components log through this so a
// different backend (zerolog, zap) can be swapped in at the composition root.
type Logger interface {
	// Debug logs at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs at Warning level.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs an error with its message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
