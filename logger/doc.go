// Package logger provides structured logging for snapstream using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with map-based structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("stream.engine")
//	log.Info("worker started", logger.Fields(logger.FieldBinding, "numbers"))
package logger
