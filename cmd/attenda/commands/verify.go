// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/attenda-foundation/attenda/cmd/attenda/cli"
	"github.com/attenda-foundation/attenda/lib/qrticket"
)

func verifyQRCommand() *cli.Command {
	var (
		ticketID    string
		payloadFile string
	)

	return &cli.Command{
		Name:    "verify-qr",
		Summary: "Check a scanned QR payload against a ticket ID.",
		Description: "verify-qr decodes a scanned QR payload (JSON on stdin or from\n" +
			"--payload) and reports whether it belongs to the given ticket.\n" +
			"This is the gate-side check; it needs no session and decrypts\n" +
			"nothing.",
		Usage: "attenda verify-qr --ticket <id> [--payload <file>]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("verify-qr", pflag.ContinueOnError)
			flags.StringVar(&ticketID, "ticket", "", "expected ticket object ID")
			flags.StringVar(&payloadFile, "payload", "", "file with the QR payload JSON (default: stdin)")
			return flags
		},
		Run: func(args []string) error {
			if ticketID == "" {
				return fmt.Errorf("--ticket is required")
			}

			var content []byte
			var err error
			if payloadFile != "" {
				content, err = os.ReadFile(payloadFile)
			} else {
				content, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			if !qrticket.Verify(content, ticketID) {
				return fmt.Errorf("QR payload does not verify for ticket %s", ticketID)
			}

			payload, err := qrticket.Decode(content)
			if err != nil {
				return err
			}
			logger().Info("QR payload verified", "ticket", payload.TicketID,
				"event", payload.EventID, "holder", payload.Holder)
			return printJSON(payload)
		},
	}
}
