// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/sandpool-project/sandpool/cmd/sandpool/cli"
	"github.com/sandpool-project/sandpool/lib/schema"
)

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:    "account",
		Summary: "Register and manage pooled accounts",
		Subcommands: []*cli.Command{
			accountRegisterCommand(),
			accountListCommand(),
			accountShowCommand(),
			accountCleanCommand(),
			accountEjectCommand(),
			accountQuarantineCommand(),
			accountRecycleCommand(),
		},
	}
}

func accountRegisterCommand() *cli.Command {
	var (
		conn  connection
		email string
		name  string
	)

	return &cli.Command{
		Name:    "register",
		Summary: "Bring an AWS account into the pool",
		Usage:   "sandpool account register <aws-account-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Register a fresh account",
				Command:     "sandpool account register 111122223333 --email sandbox+1@example.com --name sandbox-1",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("register", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&email, "email", "", "the account's root email")
			flagSet.StringVar(&name, "name", "", "the account's display name")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected <aws-account-id>")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var account schema.Account
			if err := client.Call(ctx, "account.register", map[string]any{
				"awsAccountId": args[0],
				"email":        email,
				"name":         name,
			}, &account); err != nil {
				return err
			}
			return cli.WriteJSON(account)
		},
	}
}

func accountListCommand() *cli.Command {
	var (
		conn       connection
		statuses   []string
		outputJSON bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "List pooled accounts",
		Usage:   "sandpool account list [--status STATUS ...] [flags]",
		Examples: []cli.Example{
			{
				Description: "List accounts waiting for cleanup",
				Command:     "sandpool account list --status CleanUp",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringSliceVar(&statuses, "status", nil, "filter by account status (repeatable)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var accounts []schema.Account
			if err := client.Call(ctx, "account.list", map[string]any{
				"statuses": statuses,
			}, &accounts); err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(accounts)
			}
			return writeAccountTable(accounts)
		},
	}
}

func accountShowCommand() *cli.Command {
	return accountAction("show", "Show one account", "account.get", nil)
}

func accountCleanCommand() *cli.Command {
	return accountAction("clean", "Mark an account's cleanup run complete", "account.clean",
		func(flagSet *pflag.FlagSet) func() map[string]any {
			var executionID string
			flagSet.StringVar(&executionID, "execution-id", "", "cleanup pipeline run identifier")
			return func() map[string]any {
				return map[string]any{
					"executionId":        executionID,
					"executionStartTime": time.Now().UTC(),
				}
			}
		})
}

func accountEjectCommand() *cli.Command {
	return accountAction("eject", "Remove an account from the pool permanently", "account.eject", nil)
}

func accountQuarantineCommand() *cli.Command {
	return accountAction("quarantine", "Pull an account from circulation", "account.quarantine",
		func(flagSet *pflag.FlagSet) func() map[string]any {
			var reason string
			flagSet.StringVar(&reason, "reason", "", "why the account is being quarantined")
			return func() map[string]any { return map[string]any{"reason": reason} }
		})
}

func accountRecycleCommand() *cli.Command {
	return accountAction("recycle", "Send a quarantined account back through cleanup", "account.recycle", nil)
}

// accountAction builds the single-account commands, which all address
// one account and differ only in the action name and extra fields.
func accountAction(name, summary, action string, extra func(*pflag.FlagSet) func() map[string]any) *cli.Command {
	var conn connection
	var extraFields func() map[string]any

	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("sandpool account %s <aws-account-id> [flags]", name),
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			conn.addFlags(flagSet)
			if extra != nil {
				extraFields = extra(flagSet)
			}
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected <aws-account-id>")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			fields := map[string]any{"awsAccountId": args[0]}
			if extraFields != nil {
				for key, value := range extraFields() {
					fields[key] = value
				}
			}

			var result map[string]any
			if err := client.Call(ctx, action, fields, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func writeAccountTable(accounts []schema.Account) error {
	if len(accounts) == 0 {
		fmt.Println("no accounts")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tSTATUS\tNAME\tDRIFT\tLAST CLEANED")
	for _, account := range accounts {
		lastCleaned := "never"
		if account.CleanupExecutionContext != nil {
			lastCleaned = account.CleanupExecutionContext.ExecutionStartTime.Format("2006-01-02 15:04")
		}
		drift := ""
		if account.DriftAtLastScan {
			drift = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			account.AWSAccountID, account.Status, account.Name, drift, lastCleaned)
	}
	return tw.Flush()
}
