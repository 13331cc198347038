// Package logx configures smmaster's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps console
// output readable (short timestamp + short caller), file output
// JSON-structured, and lets the Service re-apply level and sinks when the
// config file changes.
package logx
