// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
environment: development
package_id: "0x` + "abababababababababababababababababababababababababababababababab" + `"
threshold: 2
key_servers:
  - id: "0x0101010101010101010101010101010101010101010101010101010101010101"
    url: "https://keys-1.attenda.app"
    weight: 1
  - id: "0x0202020202020202020202020202020202020202020202020202020202020202"
    url: "https://keys-2.attenda.app"
    weight: 1
blobstore:
  publisher_url: "https://publisher.walrus.example"
  aggregator_url: "https://aggregator.walrus.example"
session:
  ttl_minutes: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attenda.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if cfg.Threshold != 2 || len(cfg.KeyServers) != 2 {
		t.Errorf("threshold=%d servers=%d, want 2 and 2", cfg.Threshold, len(cfg.KeyServers))
	}
	if cfg.SessionTTL() != 10*time.Minute {
		t.Errorf("SessionTTL = %v, want 10m", cfg.SessionTTL())
	}

	sealCfg, err := cfg.SealConfig()
	if err != nil {
		t.Fatalf("SealConfig error: %v", err)
	}
	if len(sealCfg.Servers) != 2 || sealCfg.Servers[0].Weight != 1 {
		t.Error("SealConfig did not carry the server set")
	}
	if sealCfg.PackageID.IsZero() {
		t.Error("SealConfig has zero package ID")
	}

	blobCfg := cfg.BlobstoreClientConfig()
	if blobCfg.PublisherURL != "https://publisher.walrus.example" {
		t.Errorf("PublisherURL = %q", blobCfg.PublisherURL)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	yaml := validYAML + `
production:
  session:
    ttl_minutes: 5
  blobstore:
    publisher_url: "https://publisher.prod.example"
`
	// Base environment is development: production section is inert.
	cfg, err := LoadFile(writeConfig(t, yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.TTLMinutes != 10 {
		t.Errorf("development TTL = %d, want 10", cfg.Session.TTLMinutes)
	}

	// Same file with environment switched applies the overrides.
	cfg, err = LoadFile(writeConfig(t, strings.Replace(yaml, "environment: development", "environment: production", 1)))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.TTLMinutes != 5 {
		t.Errorf("production TTL = %d, want 5", cfg.Session.TTLMinutes)
	}
	if cfg.Blobstore.PublisherURL != "https://publisher.prod.example" {
		t.Errorf("production publisher = %q", cfg.Blobstore.PublisherURL)
	}
	if cfg.Blobstore.AggregatorURL != "https://aggregator.walrus.example" {
		t.Error("override clobbered a field it did not set")
	}
}

func TestValidateCatchesEverythingAtOnce(t *testing.T) {
	cfg := &Config{
		Environment: "qa",
		PackageID:   "not-an-id",
		Threshold:   1,
		KeyServers:  []KeyServerConfig{{ID: "bad", Weight: 0}},
		Session:     SessionConfig{TTLMinutes: 0},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, want := range []string{"environment", "package_id", "threshold", "key_servers[0]", "publisher_url", "ttl_minutes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error does not mention %s: %v", want, err)
		}
	}
}

func TestValidateWeightArithmetic(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}

	cfg.Threshold = 3 // exceeds total weight 2
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted threshold above total weight")
	}
}

func TestLoadRequiresEnvVariable(t *testing.T) {
	t.Setenv("ATTENDA_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded without ATTENDA_CONFIG")
	}

	t.Setenv("ATTENDA_CONFIG", writeConfig(t, validYAML))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile succeeded on a missing file")
	}
}
