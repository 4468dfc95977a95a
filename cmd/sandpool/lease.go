// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/sandpool-project/sandpool/cmd/sandpool/cli"
	"github.com/sandpool-project/sandpool/lib/schema"
)

func leaseCommand() *cli.Command {
	return &cli.Command{
		Name:    "lease",
		Summary: "Request, approve, and manage sandbox leases",
		Subcommands: []*cli.Command{
			leaseRequestCommand(),
			leaseListCommand(),
			leaseShowCommand(),
			leaseApproveCommand(),
			leaseDenyCommand(),
			leaseFreezeCommand(),
			leaseUnfreezeCommand(),
			leaseTerminateCommand(),
		},
	}
}

func leaseRequestCommand() *cli.Command {
	var (
		conn     connection
		user     string
		template string
		comments string
	)

	return &cli.Command{
		Name:    "request",
		Summary: "Request a new lease from a template",
		Usage:   "sandpool lease request --user EMAIL --template UUID [flags]",
		Examples: []cli.Example{
			{
				Description: "Request a lease and say what it is for",
				Command:     "sandpool lease request --user dev@example.com --template 9f0c... --comments 'load test'",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("request", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&user, "user", "", "requesting user's email (required)")
			flagSet.StringVar(&template, "template", "", "lease template UUID (required)")
			flagSet.StringVar(&comments, "comments", "", "justification recorded on the lease")
			return flagSet
		},
		Run: func(args []string) error {
			if user == "" || template == "" {
				return fmt.Errorf("--user and --template are required")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var lease schema.Lease
			if err := client.Call(ctx, "lease.request", map[string]any{
				"userEmail":    user,
				"templateUuid": template,
				"comments":     comments,
			}, &lease); err != nil {
				return err
			}
			return cli.WriteJSON(lease)
		},
	}
}

func leaseListCommand() *cli.Command {
	var (
		conn       connection
		user       string
		statuses   []string
		outputJSON bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "List leases by user or status",
		Usage:   "sandpool lease list [--user EMAIL | --status STATUS ...] [flags]",
		Examples: []cli.Example{
			{
				Description: "List a user's leases",
				Command:     "sandpool lease list --user dev@example.com",
			},
			{
				Description: "List frozen leases",
				Command:     "sandpool lease list --status Frozen",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&user, "user", "", "filter by user email")
			flagSet.StringSliceVar(&statuses, "status", nil, "filter by lease status (repeatable)")
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

			fields := map[string]any{}
			if user != "" {
				fields["userEmail"] = user
			}
			if len(statuses) > 0 {
				fields["statuses"] = statuses
			}

			var leases []schema.Lease
			if err := client.Call(ctx, "lease.list", fields, &leases); err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(leases)
			}
			return writeLeaseTable(leases)
		},
	}
}

func leaseShowCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "show",
		Summary: "Show one lease",
		Usage:   "sandpool lease show <user-email> <lease-uuid> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <user-email> <lease-uuid>")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var lease schema.Lease
			if err := client.Call(ctx, "lease.get", map[string]any{
				"userEmail": args[0],
				"uuid":      args[1],
			}, &lease); err != nil {
				return err
			}
			return cli.WriteJSON(lease)
		},
	}
}

// leaseAction builds the approve/deny/freeze/unfreeze/terminate
// commands, which all address one lease and differ only in the action
// name and extra fields.
func leaseAction(name, summary, action string, extra func(*pflag.FlagSet) func() map[string]any) *cli.Command {
	var conn connection
	var extraFields func() map[string]any

	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("sandpool lease %s <user-email> <lease-uuid> [flags]", name),
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			conn.addFlags(flagSet)
			if extra != nil {
				extraFields = extra(flagSet)
			}
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <user-email> <lease-uuid>")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			fields := map[string]any{
				"userEmail": args[0],
				"uuid":      args[1],
			}
			if extraFields != nil {
				for key, value := range extraFields() {
					fields[key] = value
				}
			}

			var lease schema.Lease
			if err := client.Call(ctx, action, fields, &lease); err != nil {
				return err
			}
			return cli.WriteJSON(lease)
		},
	}
}

func leaseApproveCommand() *cli.Command {
	return leaseAction("approve", "Approve a pending lease", "lease.approve",
		func(flagSet *pflag.FlagSet) func() map[string]any {
			var approvedBy string
			flagSet.StringVar(&approvedBy, "approved-by", "", "approver's email (required)")
			return func() map[string]any { return map[string]any{"approvedBy": approvedBy} }
		})
}

func leaseDenyCommand() *cli.Command {
	return leaseAction("deny", "Deny a pending lease", "lease.deny",
		func(flagSet *pflag.FlagSet) func() map[string]any {
			var deniedBy string
			flagSet.StringVar(&deniedBy, "denied-by", "", "denier's email (required)")
			return func() map[string]any { return map[string]any{"deniedBy": deniedBy} }
		})
}

func leaseFreezeCommand() *cli.Command {
	return leaseAction("freeze", "Suspend an active lease", "lease.freeze",
		func(flagSet *pflag.FlagSet) func() map[string]any {
			var reason string
			flagSet.StringVar(&reason, "reason", "", "why the lease is being frozen")
			return func() map[string]any { return map[string]any{"reason": reason} }
		})
}

func leaseUnfreezeCommand() *cli.Command {
	return leaseAction("unfreeze", "Resume a frozen lease", "lease.unfreeze", nil)
}

func leaseTerminateCommand() *cli.Command {
	return leaseAction("terminate", "Terminate a lease and reclaim its account", "lease.terminate", nil)
}

func writeLeaseTable(leases []schema.Lease) error {
	if len(leases) == 0 {
		fmt.Println("no leases")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "USER\tUUID\tSTATUS\tACCOUNT\tCOST\tEXPIRES")
	for _, lease := range leases {
		expires := "-"
		if lease.ExpirationDate != nil {
			expires = lease.ExpirationDate.Format("2006-01-02 15:04")
		}
		account := lease.AWSAccountID
		if account == "" {
			account = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			lease.UserEmail, lease.UUID, lease.Status, account,
			lease.TotalCostAccrued, expires)
	}
	return tw.Flush()
}
