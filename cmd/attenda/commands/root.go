// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the attenda operator CLI: issue tickets,
// open them as a holder, verify QR payloads, and poke the blob store
// directly.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/attenda-foundation/attenda/cmd/attenda/cli"
	"github.com/attenda-foundation/attenda/lib/blobstore"
	"github.com/attenda-foundation/attenda/lib/config"
	"github.com/attenda-foundation/attenda/lib/seal"
	"github.com/attenda-foundation/attenda/lib/ticketvault"
	"github.com/attenda-foundation/attenda/lib/version"
)

// Root builds the attenda command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "attenda",
		Summary: "Encrypted event tickets over threshold key servers.",
		Description: "attenda issues, stores, and opens encrypted event tickets.\n" +
			"Ticket metadata is encrypted client-side, bound to an on-ledger\n" +
			"access policy, and stored in the blob store; decryption requires\n" +
			"approval from a threshold of independent key servers.",
		Subcommands: []*cli.Command{
			issueCommand(),
			openCommand(),
			verifyQRCommand(),
			blobCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information.",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

// logger is the shared CLI logger. Output goes to stderr so stdout
// stays clean for JSON results.
func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// configFlag registers the shared --config flag.
func configFlag(flags *pflag.FlagSet) *string {
	return flags.String("config", "", "path to attenda.yaml (default: $ATTENDA_CONFIG)")
}

// loadConfig loads and validates deployment configuration from
// --config or ATTENDA_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildVault constructs the full client stack from configuration.
func buildVault(cfg *config.Config) (*ticketvault.Vault, error) {
	sealCfg, err := cfg.SealConfig()
	if err != nil {
		return nil, err
	}
	sealClient, err := seal.NewClient(sealCfg)
	if err != nil {
		return nil, err
	}
	blobClient, err := blobstore.New(cfg.BlobstoreClientConfig())
	if err != nil {
		return nil, err
	}
	return ticketvault.New(ticketvault.Config{
		Seal:         sealClient,
		Blobs:        blobClient,
		RecoveryKeys: cfg.RecoveryKeys,
	})
}

// printJSON writes a result object to stdout, indented for humans.
func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
