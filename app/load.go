package app

import (
	"github.com/kbukum/whisperserver/config"
	"github.com/kbukum/whisperserver/version"
)

// legacyEnv maps the environment names of earlier deployments onto
// configuration keys.
var legacyEnv = map[string]string{
	"PORT":             "server.port",
	"WHISPER_CPP_PATH": "engine.whispercpp.dir",
	"MODEL_PATH":       "engine.whispercpp.model",
	"UPLOAD_DIR":       "storage.dir",
	"WEBHOOK_URL":      "notifier.webhook.url",
	"OPENAI_API_KEY":   "engine.openai.api_key",
}

// LoadOptions points Load at explicit files. Empty fields fall back to the
// search paths of config.Load.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// Load reads the configuration from defaults, config.yml, .env and the
// environment, then applies defaults and validates it.
func Load(opts LoadOptions) (*Config, error) {
	loaderOpts := []config.LoaderOption{
		config.WithDefault("name", version.ServiceName),
		config.WithDefault("notifier.enabled", true),
		config.WithDefault("notifier.webhook.enabled", true),
	}
	for env, key := range legacyEnv {
		loaderOpts = append(loaderOpts, config.WithEnvAlias(env, key))
	}
	if opts.ConfigFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.ConfigFile))
	}
	if opts.EnvFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.EnvFile))
	}

	cfg := &Config{}
	if err := config.Load(version.ServiceName, cfg, loaderOpts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
