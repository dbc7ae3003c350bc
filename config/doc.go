// Package config loads service configuration with Viper.
//
// Sources are layered in this order, later ones winning:
//
//  1. config.yml (explicit path, or searched under ./cmd/<service>/, ./config/, .)
//  2. .env file (loaded into the process environment with godotenv)
//  3. legacy environment aliases registered with WithEnvAlias (e.g. PORT)
//  4. environment variables, mapped onto nested keys (SERVER_PORT -> server.port)
//
// Configuration is read once at startup and never reloaded.
package config
