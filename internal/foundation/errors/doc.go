// Package errors provides the classified error primitives used across sassc.
//
// A ClassifiedError carries a category (config, compile, filesystem, watch, ...),
// a severity, a retry strategy and structured context. Errors are created through
// the fluent ErrorBuilder:
//
//	err := errors.ConfigError("invalid sassconfig.json").
//		WithContext("path", configPath).
//		WithCause(parseErr).
//		Build()
//
// The CLI and HTTP adapters turn classified errors into exit codes and JSON
// responses respectively.
package errors
