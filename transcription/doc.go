// Package transcription defines the speech-to-text engine capability and
// the pieces shared by its backends.
//
// # Backends
//
//   - transcription/whispercpp: local whisper.cpp CLI run as a subprocess
//   - transcription/openai: OpenAI-compatible audio transcription API
//
// Every backend writes its transcript to <OutputBase>.txt, so the file is
// owned by the job workspace and removed with it.
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.Register(whispercpp.Name, func() (transcription.Engine, error) { ... })
//	engine, err := reg.Create(cfg.Engine.Type)
//	pooled := transcription.NewPooled(engine, transcription.PoolConfig{Size: 2})
//	res, err := pooled.Transcribe(ctx, transcription.Request{AudioPath: p, OutputBase: base})
package transcription
