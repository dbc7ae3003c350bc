package app

import (
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/process"
	"github.com/kbukum/whisperserver/transcription"
	"github.com/kbukum/whisperserver/transcription/openai"
	"github.com/kbukum/whisperserver/transcription/whispercpp"
)

// EngineNames lists the values engine.type accepts.
func EngineNames() []string {
	return newEngineRegistry(EngineConfig{}, logger.Nop()).Names()
}

func newEngineRegistry(cfg EngineConfig, log *logger.Logger) *transcription.Registry {
	r := transcription.NewRegistry()
	r.Register(whispercpp.Name, func() (transcription.Engine, error) {
		return whispercpp.New(cfg.WhisperCPP, process.NewExecutor(cfg.Process), log), nil
	})
	r.Register(openai.Name, func() (transcription.Engine, error) {
		return openai.New(cfg.OpenAI, log), nil
	})
	return r
}
