// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/attenda-foundation/attenda/cmd/attenda/cli"
	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/session"
)

func openCommand() *cli.Command {
	var (
		configPath *string
		blobID     string
		policyID   string
		walletKey  string
	)

	return &cli.Command{
		Name:    "open",
		Summary: "Decrypt a stored ticket as its holder.",
		Description: "open fetches the encrypted envelope from the blob store, signs a\n" +
			"session challenge with the wallet key, asks every key server to\n" +
			"release its shares against the access policy, and prints the\n" +
			"decrypted ticket record. The holder address is derived from the\n" +
			"wallet key; sessions cannot be opened for any other address.",
		Usage: "attenda open --blob-id <id> --policy <id> --wallet-key <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("open", pflag.ContinueOnError)
			configPath = configFlag(flags)
			flags.StringVar(&blobID, "blob-id", "", "blob store ID of the envelope")
			flags.StringVar(&policyID, "policy", "", "access policy object ID")
			flags.StringVar(&walletKey, "wallet-key", "", "file holding the hex Ed25519 wallet seed")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			vault, err := buildVault(cfg)
			if err != nil {
				return err
			}

			blob, err := ref.ParseBlobID(blobID)
			if err != nil {
				return fmt.Errorf("--blob-id: %w", err)
			}
			policy, err := ref.ParseObjectID(policyID)
			if err != nil {
				return fmt.Errorf("--policy: %w", err)
			}
			signer, err := loadWalletKey(walletKey)
			if err != nil {
				return err
			}
			walletPub := signer.Public().(ed25519.PublicKey)
			holder, err := session.WalletAddress(walletPub)
			if err != nil {
				return err
			}

			sealCfg, err := cfg.SealConfig()
			if err != nil {
				return err
			}
			s, err := session.Create(holder, sealCfg.PackageID, cfg.SessionTTL(), clock.Real())
			if err != nil {
				return err
			}
			credential, err := s.Sign(walletPub, func(message []byte) ([]byte, error) {
				return ed25519.Sign(signer, message), nil
			})
			if err != nil {
				return err
			}

			log := logger()
			log.Info("opening ticket", "blob", blob, "address", holder,
				"ttl_minutes", cfg.Session.TTLMinutes)

			record, err := vault.Open(context.Background(), blob, credential, policy)
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
}

// loadWalletKey reads an Ed25519 private key from a file holding the
// hex seed. Operator tooling only; real holders sign in their wallet.
func loadWalletKey(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("--wallet-key is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wallet key: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("wallet key is not hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet seed has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
