package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// config is the diagnostic CLI's environment-sourced defaults, overridable
// by command-line flags. Grounded on internal/env/config.go's
// godotenv->envconfig pipeline.
type config struct {
	Host     string `env:"RESP3PING_HOST,default=127.0.0.1"`
	Port     string `env:"RESP3PING_PORT,default=6379"`
	Username string `env:"RESP3PING_USERNAME"`
	Password string `env:"RESP3PING_PASSWORD"`
}

func loadConfig(ctx context.Context) (*config, error) {
	cfg := config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
