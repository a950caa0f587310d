package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ProsperityMC/christmas-draw/derange"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen     string        `yaml:"listen"`
	Database   string        `yaml:"database"`
	LogLevel   string        `yaml:"logLevel"`
	SessionTtl time.Duration `yaml:"sessionTtl"`
	Login      LoginConfig   `yaml:"login"`
	Draw       DrawConfig    `yaml:"draw"`
	Cors       CorsConfig    `yaml:"cors"`
}

type CorsConfig struct {
	// AllowedOrigins lists the browser origins allowed to call the API with credentials.
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type LoginConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

type DiscordConfig struct {
	Id          string `yaml:"id"`
	Token       string `yaml:"token"`
	RedirectUrl string `yaml:"redirectUrl"`
	SuccessUrl  string `yaml:"successUrl"`
}

func (d DiscordConfig) Enabled() bool { return d.Id != "" }

type DrawConfig struct {
	// Strategy is one of auto, rejection or direct.
	Strategy       string `yaml:"strategy"`
	MaxAttempts    int    `yaml:"maxAttempts"`
	RejectionLimit int    `yaml:"rejectionLimit"`
	// Seed 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

func (d DrawConfig) Generator() (*derange.Generator, error) {
	strategy, err := derange.ParseStrategy(d.Strategy)
	if err != nil {
		return nil, err
	}
	opts := []derange.Option{
		derange.WithStrategy(strategy),
		derange.WithMaxAttempts(d.MaxAttempts),
	}
	if d.RejectionLimit > 0 {
		opts = append(opts, derange.WithRejectionLimit(d.RejectionLimit))
	}
	seed := d.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return derange.NewSeeded(seed, opts...), nil
}

func loadConfig(path string) (Config, error) {
	openConf, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer openConf.Close()

	conf := Config{
		Listen:     ":8080",
		Database:   "draw.db",
		LogLevel:   "info",
		SessionTtl: 12 * time.Hour,
	}
	// an empty file keeps the defaults
	if err := yaml.NewDecoder(openConf).Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if !filepath.IsAbs(conf.Database) {
		conf.Database = filepath.Join(filepath.Dir(path), conf.Database)
	}
	if _, err := derange.ParseStrategy(conf.Draw.Strategy); err != nil {
		return Config{}, err
	}
	return conf, nil
}
