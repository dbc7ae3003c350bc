// Package sse implements the transcription progress protocol over a single
// Server-Sent Events response.
//
// A job stream carries at most three frames, always in this order:
//
//	data: {"status":"processing","message":"Starting transcription..."}
//
//	data: {"status":"complete","transcription":"..."}   (or)
//	data: {"status":"error","message":"..."}
//
// Stream is the server side; Reader parses the same framing for clients.
//
// # Usage
//
//	stream, err := sse.NewStream(w, r, log)
//	if err != nil { ... }
//	defer stream.Close()
//	stream.Open()
//	stream.Processing(sse.DefaultProcessingMessage)
//	stream.Complete(text)
package sse
