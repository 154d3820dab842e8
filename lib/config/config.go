// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads deployment configuration for Attenda
// components.
//
// Configuration comes from a single YAML file named by the
// ATTENDA_CONFIG environment variable or a --config flag. There are
// no fallbacks or automatic discovery, and environment variables
// never override file values; a deployment's behavior is fully
// determined by one auditable file.
//
// The file may carry development, staging, and production sections
// whose values override the base config when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/attenda-foundation/attenda/lib/blobstore"
	"github.com/attenda-foundation/attenda/lib/escrow"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/seal"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for an Attenda deployment.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// PackageID is the deployed contract package ("0x" + 64 hex).
	PackageID string `yaml:"package_id"`

	// Threshold is the key-share weight required to decrypt.
	Threshold int `yaml:"threshold"`

	// KeyServers is the weighted committee.
	KeyServers []KeyServerConfig `yaml:"key_servers"`

	// Blobstore configures the blob store gateway.
	Blobstore BlobstoreConfig `yaml:"blobstore"`

	// Session configures holder sessions.
	Session SessionConfig `yaml:"session"`

	// RecoveryKeys are organizer age recovery keys. Optional; when
	// present every issuance also emits an escrow bundle.
	RecoveryKeys []string `yaml:"recovery_keys"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may override.
// A nil or empty field leaves the base value in place.
type Overrides struct {
	PackageID  string            `yaml:"package_id,omitempty"`
	Threshold  int               `yaml:"threshold,omitempty"`
	KeyServers []KeyServerConfig `yaml:"key_servers,omitempty"`
	Blobstore  *BlobstoreConfig  `yaml:"blobstore,omitempty"`
	Session    *SessionConfig    `yaml:"session,omitempty"`
}

// KeyServerConfig describes one key server.
type KeyServerConfig struct {
	// ID is the server's ledger registration object ("0x" + 64 hex).
	ID string `yaml:"id"`

	// URL is the server's base URL.
	URL string `yaml:"url"`

	// Weight is the number of key shares the server holds.
	Weight int `yaml:"weight"`
}

// BlobstoreConfig configures the blob store gateway.
type BlobstoreConfig struct {
	// PublisherURL is the upload endpoint.
	PublisherURL string `yaml:"publisher_url"`

	// AggregatorURL is the read endpoint. Defaults to PublisherURL.
	AggregatorURL string `yaml:"aggregator_url"`
}

// SessionConfig configures holder sessions.
type SessionConfig struct {
	// TTLMinutes is the session credential lifetime. The wallet is
	// prompted once per session; shorter TTLs mean more prompts,
	// longer ones mean a stolen credential stays useful longer.
	TTLMinutes int `yaml:"ttl_minutes"`
}

// Default returns the base configuration merged under every loaded
// file. It exists so optional fields have sensible values, not as a
// substitute for a config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Threshold:   2,
		Session:     SessionConfig{TTLMinutes: 10},
	}
}

// Load reads configuration from the path in ATTENDA_CONFIG. No
// fallbacks: an unset variable is an error, not a default.
func Load() (*Config, error) {
	path := os.Getenv("ATTENDA_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("ATTENDA_CONFIG environment variable not set; " +
			"set it to the path of your attenda.yaml config file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile reads configuration from a specific file path and applies
// the matching environment section.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.PackageID != "" {
		c.PackageID = overrides.PackageID
	}
	if overrides.Threshold != 0 {
		c.Threshold = overrides.Threshold
	}
	if len(overrides.KeyServers) > 0 {
		c.KeyServers = overrides.KeyServers
	}
	if overrides.Blobstore != nil {
		if overrides.Blobstore.PublisherURL != "" {
			c.Blobstore.PublisherURL = overrides.Blobstore.PublisherURL
		}
		if overrides.Blobstore.AggregatorURL != "" {
			c.Blobstore.AggregatorURL = overrides.Blobstore.AggregatorURL
		}
	}
	if overrides.Session != nil && overrides.Session.TTLMinutes != 0 {
		c.Session.TTLMinutes = overrides.Session.TTLMinutes
	}
}

// Validate checks the configuration for errors, reporting all of them
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if _, err := ref.ParseObjectID(c.PackageID); err != nil {
		errs = append(errs, fmt.Errorf("package_id: %w", err))
	}
	if c.Threshold < 2 {
		errs = append(errs, fmt.Errorf("threshold must be at least 2, got %d", c.Threshold))
	}

	if len(c.KeyServers) == 0 {
		errs = append(errs, fmt.Errorf("at least one key server is required"))
	}
	totalWeight := 0
	for i, server := range c.KeyServers {
		if _, err := ref.ParseObjectID(server.ID); err != nil {
			errs = append(errs, fmt.Errorf("key_servers[%d].id: %w", i, err))
		}
		if server.URL == "" {
			errs = append(errs, fmt.Errorf("key_servers[%d].url is required", i))
		}
		if server.Weight < 1 {
			errs = append(errs, fmt.Errorf("key_servers[%d].weight must be at least 1, got %d", i, server.Weight))
		}
		totalWeight += server.Weight
	}
	if len(c.KeyServers) > 0 && totalWeight < c.Threshold {
		errs = append(errs, fmt.Errorf("total key server weight %d is below threshold %d", totalWeight, c.Threshold))
	}
	if totalWeight > 255 {
		errs = append(errs, fmt.Errorf("total key server weight %d exceeds the 255-share limit", totalWeight))
	}

	if c.Blobstore.PublisherURL == "" {
		errs = append(errs, fmt.Errorf("blobstore.publisher_url is required"))
	}

	if c.Session.TTLMinutes < 1 || c.Session.TTLMinutes > 24*60 {
		errs = append(errs, fmt.Errorf("session.ttl_minutes must be between 1 and 1440, got %d", c.Session.TTLMinutes))
	}

	for i, key := range c.RecoveryKeys {
		if err := escrow.ValidateRecoveryKey(key); err != nil {
			errs = append(errs, fmt.Errorf("recovery_keys[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SealConfig builds the threshold encryption client configuration.
// Call Validate first; parse errors here mean an unvalidated config.
func (c *Config) SealConfig() (seal.Config, error) {
	packageID, err := ref.ParseObjectID(c.PackageID)
	if err != nil {
		return seal.Config{}, fmt.Errorf("package_id: %w", err)
	}

	servers := make([]seal.ServerConfig, len(c.KeyServers))
	for i, server := range c.KeyServers {
		id, err := ref.ParseObjectID(server.ID)
		if err != nil {
			return seal.Config{}, fmt.Errorf("key_servers[%d].id: %w", i, err)
		}
		servers[i] = seal.ServerConfig{ID: id, URL: server.URL, Weight: server.Weight}
	}

	return seal.Config{
		PackageID: packageID,
		Threshold: c.Threshold,
		Servers:   servers,
	}, nil
}

// BlobstoreClientConfig builds the blob gateway configuration.
func (c *Config) BlobstoreClientConfig() blobstore.Config {
	return blobstore.Config{
		PublisherURL:  c.Blobstore.PublisherURL,
		AggregatorURL: c.Blobstore.AggregatorURL,
	}
}
