// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Sandpool
// components.
//
// Configuration is loaded from a single file specified by:
//   - SANDPOOL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Sandpool.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the record store.
	Store StoreConfig `yaml:"store"`

	// Socket configures the control socket served by
	// sandpool-leased.
	Socket SocketConfig `yaml:"socket"`

	// Leasing configures the orchestrator.
	Leasing LeasingConfig `yaml:"leasing"`

	// Monitor configures the threshold sweeper.
	Monitor MonitorConfig `yaml:"monitor"`

	// AWS configures the cloud-side collaborators. Ignored when
	// Leasing.DevMode is set.
	AWS AWSConfig `yaml:"aws"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Socket  *SocketConfig  `yaml:"socket,omitempty"`
	Leasing *LeasingConfig `yaml:"leasing,omitempty"`
	Monitor *MonitorConfig `yaml:"monitor,omitempty"`
	AWS     *AWSConfig     `yaml:"aws,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Sandpool data.
	Root string `yaml:"root"`

	// State is where runtime state (the database, socket) is stored.
	State string `yaml:"state"`
}

// StoreConfig configures the record store.
type StoreConfig struct {
	// Path is the SQLite database file.
	// Default: ${SANDPOOL_ROOT}/state/sandpool.db
	Path string `yaml:"path"`

	// PoolSize is the connection pool size.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// SocketConfig configures the control socket.
type SocketConfig struct {
	// Path is the Unix socket path served by sandpool-leased.
	// Default: ${SANDPOOL_ROOT}/state/leased.sock
	Path string `yaml:"path"`
}

// LeasingConfig configures the orchestrator.
type LeasingConfig struct {
	// MaxLeasesPerUser bounds active-or-pending leases per user.
	// Default: 3
	MaxLeasesPerUser int `yaml:"max_leases_per_user"`

	// DevMode replaces the AWS collaborators with in-process stubs
	// that track placement and access in memory. For local
	// development only.
	// Default: true (development), false elsewhere
	DevMode bool `yaml:"dev_mode"`
}

// MonitorConfig configures the threshold sweeper.
type MonitorConfig struct {
	// Enabled turns the sweeper on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Interval is the sweep cadence as a Go duration string.
	// Default: 5m
	Interval string `yaml:"interval"`
}

// AWSConfig configures the cloud-side collaborators.
type AWSConfig struct {
	// Region for all service clients.
	Region string `yaml:"region"`

	// OrganizationalUnits maps each account status to the OU that
	// backs it. Every non-Exit status needs an entry.
	OrganizationalUnits map[string]string `yaml:"organizational_units"`

	// IdentityStoreID is the IAM Identity Center identity store.
	IdentityStoreID string `yaml:"identity_store_id"`

	// SSOInstanceARN is the IAM Identity Center instance.
	SSOInstanceARN string `yaml:"sso_instance_arn"`

	// PermissionSetARN is the permission set assigned to sandbox
	// users and operator groups.
	PermissionSetARN string `yaml:"permission_set_arn"`

	// GroupIDs maps operator group names (Manager, Admin) to identity
	// store group IDs.
	GroupIDs map[string]string `yaml:"group_ids"`

	// EventBusName is the EventBridge bus domain events are published
	// to.
	// Default: sandpool
	EventBusName string `yaml:"event_bus_name"`

	// EventSource is the source string stamped on published events.
	// Default: sandpool.leasing
	EventSource string `yaml:"event_source"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback - the
// config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "sandpool")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  defaultRoot,
			State: filepath.Join(defaultRoot, "state"),
		},
		Store: StoreConfig{
			Path:     "${SANDPOOL_ROOT}/state/sandpool.db",
			PoolSize: 4,
		},
		Socket: SocketConfig{
			Path: "${SANDPOOL_ROOT}/state/leased.sock",
		},
		Leasing: LeasingConfig{
			MaxLeasesPerUser: 3,
			DevMode:          true,
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: "5m",
		},
		AWS: AWSConfig{
			EventBusName: "sandpool",
			EventSource:  "sandpool.leasing",
		},
	}
}

// Load loads configuration from the SANDPOOL_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults - if SANDPOOL_CONFIG is not
// set, this fails. This ensures deterministic, auditable configuration
// with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("SANDPOOL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SANDPOOL_CONFIG environment variable not set; " +
			"set it to the path of your sandpool.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values - this ensures deterministic, auditable
// configuration. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Apply environment-specific overrides (development/staging/
	// production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific
// overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production default: never the in-memory stubs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Leasing: &LeasingConfig{
					MaxLeasesPerUser: c.Leasing.MaxLeasesPerUser,
					DevMode:          false,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Socket != nil {
		if overrides.Socket.Path != "" {
			c.Socket.Path = overrides.Socket.Path
		}
	}

	if overrides.Leasing != nil {
		if overrides.Leasing.MaxLeasesPerUser != 0 {
			c.Leasing.MaxLeasesPerUser = overrides.Leasing.MaxLeasesPerUser
		}
		// DevMode is a bool, so we always apply it from overrides.
		c.Leasing.DevMode = overrides.Leasing.DevMode
	}

	if overrides.Monitor != nil {
		c.Monitor.Enabled = overrides.Monitor.Enabled
		if overrides.Monitor.Interval != "" {
			c.Monitor.Interval = overrides.Monitor.Interval
		}
	}

	if overrides.AWS != nil {
		if overrides.AWS.Region != "" {
			c.AWS.Region = overrides.AWS.Region
		}
		if overrides.AWS.OrganizationalUnits != nil {
			c.AWS.OrganizationalUnits = overrides.AWS.OrganizationalUnits
		}
		if overrides.AWS.IdentityStoreID != "" {
			c.AWS.IdentityStoreID = overrides.AWS.IdentityStoreID
		}
		if overrides.AWS.SSOInstanceARN != "" {
			c.AWS.SSOInstanceARN = overrides.AWS.SSOInstanceARN
		}
		if overrides.AWS.PermissionSetARN != "" {
			c.AWS.PermissionSetARN = overrides.AWS.PermissionSetARN
		}
		if overrides.AWS.GroupIDs != nil {
			c.AWS.GroupIDs = overrides.AWS.GroupIDs
		}
		if overrides.AWS.EventBusName != "" {
			c.AWS.EventBusName = overrides.AWS.EventBusName
		}
		if overrides.AWS.EventSource != "" {
			c.AWS.EventSource = overrides.AWS.EventSource
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SANDPOOL_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SANDPOOL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Socket.Path = expandVars(c.Socket.Path, vars)
}

// MonitorInterval parses Monitor.Interval.
func (c *Config) MonitorInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Monitor.Interval)
	if err != nil {
		return 0, fmt.Errorf("monitor.interval %q: %w", c.Monitor.Interval, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("monitor.interval %q: must be positive", c.Monitor.Interval)
	}
	return interval, nil
}

// Validate checks the configuration for structural problems. AWS
// fields are checked only when dev mode is off, because the stubs
// need none of them.
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.Store.PoolSize < 1 {
		return fmt.Errorf("store.pool_size %d: must be at least 1", c.Store.PoolSize)
	}
	if c.Monitor.Enabled {
		if _, err := c.MonitorInterval(); err != nil {
			return err
		}
	}
	if c.Leasing.MaxLeasesPerUser < 1 {
		return fmt.Errorf("leasing.max_leases_per_user %d: must be at least 1", c.Leasing.MaxLeasesPerUser)
	}
	if c.Leasing.DevMode {
		return nil
	}
	if c.AWS.Region == "" {
		return fmt.Errorf("aws.region is required outside dev mode")
	}
	if c.AWS.IdentityStoreID == "" {
		return fmt.Errorf("aws.identity_store_id is required outside dev mode")
	}
	if c.AWS.SSOInstanceARN == "" {
		return fmt.Errorf("aws.sso_instance_arn is required outside dev mode")
	}
	if c.AWS.PermissionSetARN == "" {
		return fmt.Errorf("aws.permission_set_arn is required outside dev mode")
	}
	for _, status := range []string{"Entry", "CleanUp", "Available", "Active", "Frozen", "Quarantine"} {
		if c.AWS.OrganizationalUnits[status] == "" {
			return fmt.Errorf("aws.organizational_units.%s is required outside dev mode", status)
		}
	}
	return nil
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
