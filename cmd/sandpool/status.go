// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/pflag"

	"github.com/sandpool-project/sandpool/cmd/sandpool/cli"
)

func statusCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var status map[string]any
			if err := client.Call(ctx, "status", nil, &status); err != nil {
				return err
			}
			return cli.WriteJSON(status)
		},
	}
}
