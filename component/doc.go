// Package component defines the lifecycle contract shared by the
// long-lived parts of the service (HTTP server, storage, notifier,
// telemetry) and a Registry that starts them in order and stops them in
// reverse.
package component
