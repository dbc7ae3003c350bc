// Package security builds client TLS configuration for the outbound
// transports: the webhook HTTP client and the Kafka writer.
//
//	cfg := security.TLSConfig{CAFile: "/etc/ssl/broker-ca.pem"}
//	tc, err := cfg.Build() // nil when TLS is not configured
package security
