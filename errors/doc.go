// Package errors defines the error taxonomy of the transcription service.
// Every failure a caller can observe is an *AppError carrying a
// machine-readable code, the HTTP status used when it is reported before
// streaming starts, and an optional cause.
package errors
