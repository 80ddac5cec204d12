// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration.
//
// Configuration layers in a fixed order: the embedded defaults load
// first, an optional YAML file overlays them, and GNN_* environment
// variables win last. Load validates the merged result, so a service
// that starts has a usable configuration.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/codegraph/features"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/encode"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/training"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

// MaxConfigFileSize bounds the config file read. A service config
// larger than this is a mistake, not a configuration.
const MaxConfigFileSize = 1 << 20

var configTracer = otel.Tracer("gnn.config")

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the merged service configuration.
//
// Description:
//
//	Produced by Load. Every section validates on load, so handlers and
//	constructors can consume fields without re-checking ranges.
//
// Thread Safety: Immutable after Load; safe for concurrent reads.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Log configures the slog handler.
	Log LogConfig `yaml:"log"`

	// Store configures the parameter snapshot store.
	Store StoreConfig `yaml:"store"`

	// Model configures the encoder built at startup when the store
	// holds no snapshot.
	Model ModelConfig `yaml:"model"`

	// Training seeds the default run configuration. Zero fields defer
	// to the trainer's own defaults.
	Training training.Config `yaml:"training"`

	// Inference configures the compression front end.
	Inference InferenceConfig `yaml:"inference"`

	// Experts configures detector fan-out.
	Experts ExpertsConfig `yaml:"experts"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, host optional.
	// Env: GNN_ADDR
	Addr string `yaml:"addr"`

	// ReadTimeoutSeconds bounds reading one request.
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`

	// WriteTimeoutSeconds bounds writing one response. Covers the
	// handler, so it must exceed the compress timeout.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`

	// ShutdownGraceSeconds bounds draining in-flight requests on
	// shutdown.
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds"`
}

// ReadTimeout returns ReadTimeoutSeconds as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns WriteTimeoutSeconds as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// ShutdownGrace returns ShutdownGraceSeconds as a duration.
func (s ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceSeconds) * time.Second
}

// LogConfig configures the slog handler built in main.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Env: GNN_LOG_LEVEL
	Level string `yaml:"level"`

	// Format is json or text.
	// Env: GNN_LOG_FORMAT
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreConfig configures the badger-backed snapshot store.
type StoreConfig struct {
	// Dir is the badger directory. Empty selects an in-memory store,
	// which loses snapshots on restart.
	// Env: GNN_STORE_DIR
	Dir string `yaml:"dir"`
}

// ModelConfig describes the encoder the service builds when the store
// holds no published snapshot.
type ModelConfig struct {
	// Architecture is sage, gat, or hybrid.
	Architecture string `yaml:"architecture"`

	// HiddenDims lists each layer's output width, in order.
	HiddenDims []int `yaml:"hidden_dims"`

	// Heads is the attention head count for GAT layers.
	Heads int `yaml:"heads"`

	// Aggregation is the SAGE neighbor aggregation, mean or sum.
	Aggregation string `yaml:"aggregation"`

	// Dropout applies between layers during training.
	Dropout float32 `yaml:"dropout"`

	// Readout names the pooling strategy.
	Readout string `yaml:"readout"`

	// EmbedDim is the output embedding width.
	EmbedDim int `yaml:"embed_dim"`

	// Seed makes the initial parameter draw reproducible.
	Seed int64 `yaml:"seed"`
}

// LayerConfig builds the layer stack configuration. Input width and
// edge kind count come from the feature extractor and graph encoding,
// which fix them for every model this service can serve.
func (m ModelConfig) LayerConfig() layers.Config {
	return layers.Config{
		Architecture: layers.Architecture(m.Architecture),
		InputDim:     features.Dim,
		HiddenDims:   append([]int(nil), m.HiddenDims...),
		Heads:        m.Heads,
		Aggregation:  layers.Aggregation(m.Aggregation),
		Dropout:      m.Dropout,
		EdgeKinds:    encode.KindCount(),
	}
}

// InferenceConfig configures the compression front end.
type InferenceConfig struct {
	// CacheCapacity bounds the embedding cache entry count.
	CacheCapacity int `yaml:"cache_capacity"`

	// CompressTimeoutMs bounds one compression call.
	CompressTimeoutMs int `yaml:"compress_timeout_ms"`

	// SimilarK is the default neighbor count for similarity queries.
	SimilarK int `yaml:"similar_k"`
}

// CompressTimeout returns CompressTimeoutMs as a duration.
func (i InferenceConfig) CompressTimeout() time.Duration {
	return time.Duration(i.CompressTimeoutMs) * time.Millisecond
}

// ExpertsConfig configures detector fan-out.
type ExpertsConfig struct {
	// Workers bounds concurrent detector calls. Zero selects
	// GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load builds the service configuration.
//
// Description:
//
//	Parses the embedded defaults, overlays the YAML file at path when
//	path is non-empty, applies GNN_* environment overrides, and
//	validates the result. File sections overlay whole: a list in the
//	file replaces the default list.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - Optional config file path. Empty skips the file layer.
//
// Outputs:
//
//	*Config - The validated configuration. Never nil on success.
//	error - Non-nil if reading, parsing, or validation failed.
//
// Thread Safety: Safe for concurrent use; the returned Config is
// immutable by convention.
func Load(ctx context.Context, path string) (*Config, error) {
	if ctx == nil {
		return nil, fmt.Errorf("config: ctx must not be nil")
	}

	_, span := configTracer.Start(ctx, "config.Load")
	defer span.End()

	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if len(data) > MaxConfigFileSize {
			return nil, fmt.Errorf("config: %s exceeds maximum size (%d > %d)", path, len(data), MaxConfigFileSize)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	span.SetAttributes(
		attribute.String("file", path),
		attribute.String("addr", cfg.Server.Addr),
		attribute.String("architecture", cfg.Model.Architecture),
		attribute.Int("embed_dim", cfg.Model.EmbedDim),
		attribute.Bool("store_in_memory", cfg.Store.Dir == ""),
	)

	slog.Info("configuration loaded",
		slog.String("file", path),
		slog.String("addr", cfg.Server.Addr),
		slog.String("log_level", cfg.Log.Level),
		slog.String("architecture", cfg.Model.Architecture),
		slog.String("store_dir", cfg.Store.Dir),
	)

	return cfg, nil
}

// applyEnvOverrides lets deployment knobs win over file values.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = envString("GNN_ADDR", cfg.Server.Addr)
	cfg.Log.Level = envString("GNN_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("GNN_LOG_FORMAT", cfg.Log.Format)
	cfg.Store.Dir = envString("GNN_STORE_DIR", cfg.Store.Dir)
	cfg.Experts.Workers = envInt("GNN_EXPERT_WORKERS", cfg.Experts.Workers)
	cfg.Inference.CacheCapacity = envInt("GNN_CACHE_CAPACITY", cfg.Inference.CacheCapacity)
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// =============================================================================
// Validation
// =============================================================================

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "text": true}

// Validate checks every section of the merged configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server: addr must not be empty")
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("server: read_timeout_seconds must be positive, got %d", c.Server.ReadTimeoutSeconds)
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("server: write_timeout_seconds must be positive, got %d", c.Server.WriteTimeoutSeconds)
	}
	if c.Server.ShutdownGraceSeconds <= 0 {
		return fmt.Errorf("server: shutdown_grace_seconds must be positive, got %d", c.Server.ShutdownGraceSeconds)
	}

	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}

	if err := c.Model.LayerConfig().Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if c.Model.Readout == "" {
		return fmt.Errorf("model: readout must not be empty")
	}
	if c.Model.EmbedDim <= 0 {
		return fmt.Errorf("model: embed_dim must be positive, got %d", c.Model.EmbedDim)
	}

	if err := c.Training.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	if c.Inference.CacheCapacity < 0 {
		return fmt.Errorf("inference: cache_capacity must not be negative, got %d", c.Inference.CacheCapacity)
	}
	if c.Inference.CompressTimeoutMs <= 0 {
		return fmt.Errorf("inference: compress_timeout_ms must be positive, got %d", c.Inference.CompressTimeoutMs)
	}
	if c.Inference.SimilarK <= 0 {
		return fmt.Errorf("inference: similar_k must be positive, got %d", c.Inference.SimilarK)
	}
	if c.Server.WriteTimeout() <= c.Inference.CompressTimeout() {
		return fmt.Errorf("server: write_timeout_seconds (%d) must exceed inference.compress_timeout_ms (%d)",
			c.Server.WriteTimeoutSeconds, c.Inference.CompressTimeoutMs)
	}

	if c.Experts.Workers < 0 {
		return fmt.Errorf("experts: workers must not be negative, got %d", c.Experts.Workers)
	}

	return nil
}
