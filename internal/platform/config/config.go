// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a
strongly-typed Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the novelforge API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// RulesDir is the filesystem directory the rule provider loads
	// *.json book-source rule files from.
	RulesDir string `env:"RULES_DIR" envDefault:"./data/rules"`

	// CacheDir is the on-disk tier of the two-tier cache (search/detail/TOC/chapter).
	CacheDir string `env:"CACHE_DIR" envDefault:"./data/cache"`

	// DownloadsDir is where finished TXT/EPUB artifacts are materialized.
	DownloadsDir string `env:"DOWNLOADS_DIR" envDefault:"./data/downloads"`

	// OutboundConcurrency caps in-flight outbound HTTP requests process-wide.
	OutboundConcurrency int `env:"OUTBOUND_CONCURRENCY" envDefault:"5"`

	// DownloadBatchSize is loaded from DOWNLOAD_BATCH_SIZE but not read by
	// the Download Orchestrator, which uses constants.DownloadBatchSize.
	DownloadBatchSize int `env:"DOWNLOAD_BATCH_SIZE" envDefault:"10"`

	// SourceTimeout is loaded from SOURCE_TIMEOUT but not read by the
	// Aggregator, which uses constants.DefaultSourceTimeout.
	SourceTimeout time.Duration `env:"SOURCE_TIMEOUT" envDefault:"15s"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
