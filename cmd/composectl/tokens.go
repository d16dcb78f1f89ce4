package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doffcore/compose/libs/compose"
)

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "Summarize the composition's token bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildFixtureContainer()
			if err != nil {
				return err
			}

			report := compose.Introspect(container)
			fmt.Fprintf(cmd.OutOrStdout(), "tokens: %d\n", report.Tokens.TotalTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "bindings: %d (named: %d)\n", report.Tokens.TotalBindings, report.Tokens.NamedBindings)
			return nil
		},
	}
}
