// Package errors provides the structured AppError used by snapstream's
// collaborators (broker, key-value store, codecs, configuration) and the
// CLI. Each error carries a machine-readable code, a retryable flag, and
// the process exit status the CLI reports for it.
package errors
