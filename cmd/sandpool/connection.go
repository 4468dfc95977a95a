// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/pflag"

	"github.com/sandpool-project/sandpool/cmd/sandpool/cli"
	"github.com/sandpool-project/sandpool/lib/service"
)

// connection holds the daemon socket flag shared by every command
// that talks to sandpool-leased.
type connection struct {
	socketPath string
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socketPath, "socket", "", "daemon socket path (default from $SANDPOOL_CONFIG)")
}

func (c *connection) client() (*service.Client, error) {
	return cli.Connect(c.socketPath)
}
