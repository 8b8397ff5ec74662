// Package config loads the YAML configuration shared by the commands and
// applies ABSA_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teatak/absa/encoder"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/tagset"
	"github.com/teatak/absa/trainer"
)

// Config represents the main application configuration
type Config struct {
	Head    HeadConfig     `yaml:"head" json:"head"`
	Encoder EncoderConfig  `yaml:"encoder" json:"encoder"`
	Train   trainer.Config `yaml:"train" json:"train"`
	Data    DataConfig     `yaml:"data" json:"data"`
	Server  ServerConfig   `yaml:"server" json:"server"`
	Logging LoggingConfig  `yaml:"logging" json:"logging"`
}

// HeadConfig selects and sizes the classification head.
type HeadConfig struct {
	Kind   string `yaml:"kind" json:"kind"` // linear, lstm, san, crf
	Hidden int    `yaml:"hidden" json:"hidden"`
	Layers int    `yaml:"layers" json:"layers"`
	FFDim  int    `yaml:"ff_dim" json:"ff_dim"`
	Seed   uint64 `yaml:"seed" json:"seed"`
}

// EncoderConfig sizes the hashed embedding encoder.
type EncoderConfig struct {
	Dim           int     `yaml:"dim" json:"dim"`
	Buckets       int     `yaml:"buckets" json:"buckets"`
	Context       float64 `yaml:"context" json:"context"`
	Seed          uint64  `yaml:"seed" json:"seed"`
	CaseSensitive bool    `yaml:"case_sensitive" json:"case_sensitive"`
}

// DataConfig points at the files the commands read and write.
type DataConfig struct {
	Schema string `yaml:"schema" json:"schema"` // BIEOS, BIO or OT
	Vocab  string `yaml:"vocab" json:"vocab"`
	Model  string `yaml:"model" json:"model"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr         string `yaml:"addr" json:"addr"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"` // debug, info, warn, error
	Development bool   `yaml:"development" json:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Head: HeadConfig{Kind: "crf", Layers: 1, Seed: 42},
		Encoder: EncoderConfig{
			Dim:     encoder.DefaultDim,
			Buckets: encoder.DefaultBuckets,
			Context: encoder.DefaultContext,
			Seed:    1,
		},
		Train:   trainer.Config{Epochs: 10, LearningRate: 1, Shuffle: true, Seed: 7},
		Data:    DataConfig{Schema: "OT", Vocab: "data/vocab.txt", Model: "data/absa_model.txt"},
		Server:  ServerConfig{Addr: ":8080", ReadTimeout: 10, WriteTimeout: 10},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file. A .env file in the working directory is
// loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Head.Kind = getEnv("ABSA_HEAD", c.Head.Kind)
	c.Encoder.Dim = getEnvInt("ABSA_DIM", c.Encoder.Dim)
	c.Data.Schema = getEnv("ABSA_SCHEMA", c.Data.Schema)
	c.Data.Vocab = getEnv("ABSA_VOCAB", c.Data.Vocab)
	c.Data.Model = getEnv("ABSA_MODEL", c.Data.Model)
	c.Server.Addr = getEnv("ABSA_ADDR", c.Server.Addr)
	c.Logging.Level = getEnv("ABSA_LOG_LEVEL", c.Logging.Level)
	c.Train.Epochs = getEnvInt("ABSA_EPOCHS", c.Train.Epochs)
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	if _, err := head.ParseKind(c.Head.Kind); err != nil {
		return fmt.Errorf("config: head.kind: %w", err)
	}
	if _, err := tagset.ParseSchema(c.Data.Schema); err != nil {
		return fmt.Errorf("config: data.schema: %w", err)
	}
	if c.Encoder.Dim <= 0 {
		return fmt.Errorf("config: encoder.dim must be positive, got %d", c.Encoder.Dim)
	}
	return nil
}

// HeadConfig returns the head configuration for the configured encoder width.
func (c *Config) HeadConfig() (head.Config, error) {
	kind, err := head.ParseKind(c.Head.Kind)
	if err != nil {
		return head.Config{}, err
	}
	return head.Config{
		Kind:   kind,
		Dim:    c.Encoder.Dim,
		Hidden: c.Head.Hidden,
		Layers: c.Head.Layers,
		FFDim:  c.Head.FFDim,
		Seed:   c.Head.Seed,
	}, nil
}

// EncoderOptions returns the options for encoder.NewHashed.
func (c *Config) EncoderOptions() []encoder.Option {
	opts := []encoder.Option{
		encoder.WithDim(c.Encoder.Dim),
		encoder.WithSeed(c.Encoder.Seed),
		encoder.WithContext(c.Encoder.Context),
	}
	if c.Encoder.Buckets > 0 {
		opts = append(opts, encoder.WithBuckets(c.Encoder.Buckets))
	}
	if c.Encoder.CaseSensitive {
		opts = append(opts, encoder.WithCaseSensitive())
	}
	return opts
}

// Schema returns the parsed dataset schema.
func (c *Config) Schema() tagset.Schema {
	s, _ := tagset.ParseSchema(c.Data.Schema)
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
