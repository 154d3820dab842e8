// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/attenda-foundation/attenda/cmd/attenda/cli"
	"github.com/attenda-foundation/attenda/lib/blobstore"
	"github.com/attenda-foundation/attenda/lib/ref"
)

func blobCommand() *cli.Command {
	return &cli.Command{
		Name:    "blob",
		Summary: "Raw blob store operations.",
		Subcommands: []*cli.Command{
			blobPutCommand(),
			blobGetCommand(),
		},
	}
}

func blobPutCommand() *cli.Command {
	var (
		configPath *string
		file       string
		tags       []string
	)

	return &cli.Command{
		Name:    "put",
		Summary: "Upload a file to the blob store.",
		Usage:   "attenda blob put --file <path> [--tag key=value]...",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("put", pflag.ContinueOnError)
			configPath = configFlag(flags)
			flags.StringVar(&file, "file", "", "file to upload")
			flags.StringArrayVar(&tags, "tag", nil, "tag as key=value (repeatable)")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			client, err := blobstore.New(cfg.BlobstoreClientConfig())
			if err != nil {
				return err
			}

			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			blobTags := make(blobstore.Tags, len(tags))
			for _, tag := range tags {
				key, value, ok := strings.Cut(tag, "=")
				if !ok || key == "" {
					return fmt.Errorf("--tag %q is not key=value", tag)
				}
				blobTags[key] = value
			}

			reference, err := client.Put(context.Background(), data, blobTags)
			if err != nil {
				return err
			}
			logger().Info("blob stored", "blob", reference.BlobID, "bytes", len(data))
			return printJSON(reference)
		},
	}
}

func blobGetCommand() *cli.Command {
	var (
		configPath *string
		output     string
	)

	return &cli.Command{
		Name:    "get",
		Summary: "Download a blob by ID.",
		Usage:   "attenda blob get <blob-id> [--output <path>]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("get", pflag.ContinueOnError)
			configPath = configFlag(flags)
			flags.StringVar(&output, "output", "", "write to file instead of stdout")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one blob ID is required")
			}
			blob, err := ref.ParseBlobID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			client, err := blobstore.New(cfg.BlobstoreClientConfig())
			if err != nil {
				return err
			}

			data, err := client.Get(context.Background(), blob)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, data, 0o600)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
