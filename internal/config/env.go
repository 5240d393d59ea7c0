package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override secrets in the config file.
const (
	EnvOpenAIKey      = "TANSAKU_OPENAI_API_KEY"
	EnvOpenAIKeyAlt   = "OPENAI_API_KEY"
	EnvRedisPassword  = "TANSAKU_REDIS_PASSWORD"
	EnvNeo4jPassword  = "TANSAKU_NEO4J_PASSWORD"
	EnvEmbeddingModel = "TANSAKU_EMBEDDING_MODEL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays secrets and selected settings from the environment.
func ApplyEnv(cfg *Config) {
	if v := firstEnv(EnvOpenAIKey, EnvOpenAIKeyAlt); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Vector.Redis.Password = v
	}
	if v := os.Getenv(EnvNeo4jPassword); v != "" {
		cfg.Graph.Password = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
