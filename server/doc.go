// Package server is the service's HTTP surface: a Gin engine behind a
// net/http middleware chain, served over HTTP/1.1 and h2c.
//
// Routes, each also mounted under /api:
//
//   - GET  /health      {"status":"ok"} while every component is healthy
//   - GET  /ready       readiness probe
//   - GET  /version     build information
//   - POST /transcribe  multipart upload answered with server-sent events
//
// Middleware (server/middleware), outermost first: Recovery, RequestID,
// CORS, RequestLogger. The transcribe routes add RateLimit when enabled
// and a body cap derived from the upload limit.
package server
