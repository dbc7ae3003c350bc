// Package logger provides structured logging on top of zerolog.
//
// Components obtain a scoped logger with WithComponent and attach job
// fields with WithJob:
//
//	log := base.WithComponent("pipeline").WithJob(j.ID)
//	log.Info("transcription complete", logger.Fields("chars", len(text)))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"   # or "json"
package logger
