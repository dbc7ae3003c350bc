// Package httpclient provides the outbound HTTP client used for webhook
// delivery and for uploading recordings from the command line.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://hooks.example.com",
//	    Timeout: 10 * time.Second,
//	    Auth:    httpclient.BearerAuth("token"),
//	})
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/api/meet",
//	    Body:   payload, // JSON-encoded
//	})
//
// # Streaming
//
// DoStream returns a StreamResponse whose SSE reader yields the events of
// a text/event-stream response.
package httpclient
