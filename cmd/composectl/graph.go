package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doffcore/compose/libs/compose"
)

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print every binding and the resolved activation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildFixtureContainer()
			if err != nil {
				return err
			}

			report := compose.Introspect(container)
			fmt.Fprintf(cmd.OutOrStdout(), "%d service(s):\n", report.ServiceCount)
			for _, binding := range report.Bindings {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s lifetime=%-10s activation=%-12s module=%s\n",
					binding.ServiceID, binding.Lifetime, binding.Activation, binding.ModuleName)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\nactivation order:")
			for i, id := range report.ResolutionOrder {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, id)
			}
			return nil
		},
	}
}
