// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/sandpool-project/sandpool/cmd/sandpool/cli"
	"github.com/sandpool-project/sandpool/lib/schema"
)

func templateCommand() *cli.Command {
	return &cli.Command{
		Name:    "template",
		Summary: "Manage lease templates",
		Subcommands: []*cli.Command{
			templateCreateCommand(),
			templateListCommand(),
			templateShowCommand(),
			templateDeleteCommand(),
		},
	}
}

func templateCreateCommand() *cli.Command {
	var (
		conn             connection
		name             string
		description      string
		requiresApproval bool
		maxSpend         string
		durationHours    float64
		blueprintID      string
		createdBy        string
	)

	return &cli.Command{
		Name:    "create",
		Summary: "Define a new lease template",
		Usage:   "sandpool template create --name NAME [flags]",
		Examples: []cli.Example{
			{
				Description: "A self-service template with a 50 dollar cap and a one-week lifetime",
				Command:     "sandpool template create --name short-lived --max-spend 50 --duration-hours 168",
			},
			{
				Description: "A manager-gated template",
				Command:     "sandpool template create --name long-lived --requires-approval --duration-hours 720",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.StringVar(&name, "name", "", "display name (required)")
			flagSet.StringVar(&description, "description", "", "what the template is for")
			flagSet.BoolVar(&requiresApproval, "requires-approval", false, "gate leases behind a manager decision")
			flagSet.StringVar(&maxSpend, "max-spend", "", "budget cap in USD (empty for unbounded)")
			flagSet.Float64Var(&durationHours, "duration-hours", 0, "lease lifetime in hours (0 for unbounded)")
			flagSet.StringVar(&blueprintID, "blueprint", "", "blueprint deployed into the account before access")
			flagSet.StringVar(&createdBy, "created-by", "", "operator defining the template")
			return flagSet
		},
		Run: func(args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			template := schema.LeaseTemplate{
				Name:                 name,
				Description:          description,
				RequiresApproval:     requiresApproval,
				LeaseDurationInHours: durationHours,
				BlueprintID:          blueprintID,
				CreatedBy:            createdBy,
			}
			if maxSpend != "" {
				cap, err := decimal.NewFromString(maxSpend)
				if err != nil {
					return fmt.Errorf("parsing --max-spend: %w", err)
				}
				template.MaxSpend = &cap
			}

			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var created schema.LeaseTemplate
			if err := client.Call(ctx, "template.create", map[string]any{
				"template": template,
			}, &created); err != nil {
				return err
			}
			return cli.WriteJSON(created)
		},
	}
}

func templateListCommand() *cli.Command {
	var (
		conn       connection
		outputJSON bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "List lease templates",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.addFlags(flagSet)
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

			var templates []schema.LeaseTemplate
			if err := client.Call(ctx, "template.list", nil, &templates); err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(templates)
			}
			return writeTemplateTable(templates)
		},
	}
}

func templateShowCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "show",
		Summary: "Show one template",
		Usage:   "sandpool template show <template-uuid> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected <template-uuid>")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var template schema.LeaseTemplate
			if err := client.Call(ctx, "template.get", map[string]any{
				"uuid": args[0],
			}, &template); err != nil {
				return err
			}
			return cli.WriteJSON(template)
		},
	}
}

func templateDeleteCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a template",
		Usage:   "sandpool template delete <template-uuid> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected <template-uuid>")
			}
			client, err := conn.client()
			if err != nil {
				return err
			}
			ctx, cancel := cli.CallContext()
			defer cancel()

			var result map[string]any
			if err := client.Call(ctx, "template.delete", map[string]any{
				"uuid": args[0],
			}, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func writeTemplateTable(templates []schema.LeaseTemplate) error {
	if len(templates) == 0 {
		fmt.Println("no templates")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\tAPPROVAL\tMAX SPEND\tDURATION\tBLUEPRINT")
	for _, template := range templates {
		approval := "auto"
		if template.RequiresApproval {
			approval = "manual"
		}
		cap := "-"
		if template.MaxSpend != nil {
			cap = template.MaxSpend.String()
		}
		duration := "-"
		if template.LeaseDurationInHours > 0 {
			duration = fmt.Sprintf("%gh", template.LeaseDurationInHours)
		}
		blueprint := template.BlueprintName
		if blueprint == "" {
			blueprint = template.BlueprintID
		}
		if blueprint == "" {
			blueprint = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			template.UUID, template.Name, approval, cap, duration, blueprint)
	}
	return tw.Flush()
}
