// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/sandpool-project/sandpool/cmd/sandpool/cli"
	"github.com/sandpool-project/sandpool/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}

func root() *cli.Command {
	return &cli.Command{
		Name: "sandpool",
		Description: `Sandpool: AWS sandbox account leasing.

Operators register pooled accounts, users lease them through
templates, and the daemon drives the account lifecycle: cleanup,
assignment, freezing, termination, and recycling.`,
		Subcommands: []*cli.Command{
			leaseCommand(),
			accountCommand(),
			templateCommand(),
			statusCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}
