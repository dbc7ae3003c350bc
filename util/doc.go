// Package util provides small helpers shared across the service: size
// parsing for configuration and filename sanitisation for uploads.
package util
