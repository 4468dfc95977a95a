// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"os"
	"time"

	"github.com/sandpool-project/sandpool/lib/config"
	"github.com/sandpool-project/sandpool/lib/service"
)

// callTimeout bounds a single daemon round trip. Approvals and
// terminations run sagas against AWS, so this is generous.
const callTimeout = 60 * time.Second

// Connect returns a client for the daemon socket. An explicit
// socketPath wins; otherwise the path comes from the config file named
// by SANDPOOL_CONFIG.
func Connect(socketPath string) (*service.Client, error) {
	if socketPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		socketPath = cfg.Socket.Path
	}
	if _, err := os.Stat(socketPath); err != nil {
		return nil, err
	}
	return service.NewClient(socketPath), nil
}

// CallContext returns a context bounding one daemon call.
func CallContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}
