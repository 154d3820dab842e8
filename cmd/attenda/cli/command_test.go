// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesSubcommand(t *testing.T) {
	var ran []string
	root := &Command{
		Name: "attenda",
		Subcommands: []*Command{
			{Name: "issue", Run: func(args []string) error {
				ran = append(ran, "issue")
				return nil
			}},
			{Name: "blob", Subcommands: []*Command{
				{Name: "get", Run: func(args []string) error {
					ran = append(ran, "blob get "+strings.Join(args, " "))
					return nil
				}},
			}},
		},
	}

	if err := root.Execute([]string{"issue"}); err != nil {
		t.Fatalf("Execute(issue) error: %v", err)
	}
	if err := root.Execute([]string{"blob", "get", "blob-0001"}); err != nil {
		t.Fatalf("Execute(blob get) error: %v", err)
	}
	if len(ran) != 2 || ran[0] != "issue" || ran[1] != "blob get blob-0001" {
		t.Errorf("dispatch order = %v", ran)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	root := &Command{
		Name:        "attenda",
		Subcommands: []*Command{{Name: "issue", Run: func([]string) error { return nil }}},
	}
	err := root.Execute([]string{"isue"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Execute(unknown) = %v", err)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var got string
	command := &Command{
		Name: "open",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("open", pflag.ContinueOnError)
			flags.StringVar(&got, "blob-id", "", "")
			return flags
		},
		Run: func(args []string) error { return nil },
	}
	if err := command.Execute([]string{"--blob-id", "blob-0007"}); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "blob-0007" {
		t.Errorf("--blob-id = %q", got)
	}

	if err := command.Execute([]string{"--no-such-flag"}); err == nil {
		t.Error("Execute accepted an unknown flag")
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	root := &Command{
		Name:        "attenda",
		Subcommands: []*Command{{Name: "issue"}},
	}
	if err := root.Execute(nil); err == nil {
		t.Error("Execute with no args and no Run returned nil")
	}
}

func TestPrintHelpListsSubcommandsAndExamples(t *testing.T) {
	root := &Command{
		Name:    "attenda",
		Summary: "Encrypted event tickets.",
		Subcommands: []*Command{
			{Name: "issue", Summary: "Issue an encrypted ticket."},
			{Name: "open", Summary: "Decrypt a stored ticket."},
		},
		Examples: []Example{{Description: "issue a ticket", Command: "attenda issue --event 0x..."}},
	}

	var out strings.Builder
	root.PrintHelp(&out)
	help := out.String()
	for _, want := range []string{"issue", "Decrypt a stored ticket.", "Examples:", "attenda <command> --help"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}
