// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/attenda-foundation/attenda/cmd/attenda/cli"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/ticketmeta"
)

func issueCommand() *cli.Command {
	var (
		configPath *string
		eventID    string
		ticketID   string
		holder     string
		policyID   string
		title      string
		location   string
		ticketType string
		startTime  string
	)

	return &cli.Command{
		Name:    "issue",
		Summary: "Assemble, encrypt, and store a ticket.",
		Description: "issue assembles the ticket metadata record, encrypts it bound\n" +
			"to the event's access policy, registers key shares with every\n" +
			"configured key server, and uploads the envelope to the blob store.\n" +
			"The printed blob ID and commitment go into the mint transaction.",
		Usage: "attenda issue --event <id> --ticket <id> --holder <address> --policy <id> [flags]",
		Examples: []cli.Example{
			{
				Description: "issue a VIP ticket",
				Command:     "attenda issue --event 0x... --ticket 0x... --holder 0x... --policy 0x... --type VIP",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("issue", pflag.ContinueOnError)
			configPath = configFlag(flags)
			flags.StringVar(&eventID, "event", "", "event object ID")
			flags.StringVar(&ticketID, "ticket", "", "ticket object ID")
			flags.StringVar(&holder, "holder", "", "holder address")
			flags.StringVar(&policyID, "policy", "", "access policy object ID")
			flags.StringVar(&title, "title", "", "event title")
			flags.StringVar(&location, "location", "", "venue (defaults to TBA)")
			flags.StringVar(&ticketType, "type", "", "ticket type (defaults to General Admission)")
			flags.StringVar(&startTime, "start", "", "event start time, RFC 3339")
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

			holderAddress, err := ref.ParseAddress(holder)
			if err != nil {
				return fmt.Errorf("--holder: %w", err)
			}
			policy, err := ref.ParseObjectID(policyID)
			if err != nil {
				return fmt.Errorf("--policy: %w", err)
			}
			var start time.Time
			if startTime != "" {
				start, err = time.Parse(time.RFC3339, startTime)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}

			log := logger()
			log.Info("issuing ticket", "event", eventID, "ticket", ticketID, "holder", holderAddress)

			result, err := vault.Issue(context.Background(), ticketmeta.Params{
				EventID:    eventID,
				TicketID:   ticketID,
				EventTitle: title,
				Holder:     holderAddress,
				PolicyID:   policy,
				Location:   location,
				TicketType: ticketType,
				StartTime:  start,
			})
			if err != nil {
				return err
			}

			log.Info("ticket issued", "blob", result.BlobID, "encryption_id", hex.EncodeToString(result.EncryptionID))
			return printJSON(map[string]any{
				"blobId":         result.BlobID.String(),
				"url":            result.URL,
				"encryptionId":   hex.EncodeToString(result.EncryptionID),
				"commitment":     hex.EncodeToString(result.Commitment),
				"recoveryBundle": result.RecoveryBundle,
			})
		},
	}
}
