// Package logging provides structured logging for Gatekeeper Core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text during development, with service and version attached to
// each entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("listening", "port", cfg.API.Port)
//
// Never log store passwords or broker credentials.
package logging
