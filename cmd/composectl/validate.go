package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doffcore/compose/libs/compose"
)

// newValidateCmd builds the composition and prints the resulting
// ValidationReport, replacing what the teacher's doffy-validate did with
// a static AST scan of string-literal Resolve calls: this package has no
// such calls left to scan, so validation runs against a real Container
// instead.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Build the composition root and report validation errors and warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildFixtureContainer()
			if err != nil {
				if verrs, ok := err.(*compose.ValidationErrors); ok {
					for _, e := range verrs.Errors {
						fmt.Fprintln(cmd.OutOrStdout(), "error:", e)
					}
					return fmt.Errorf("%d validation error(s)", len(verrs.Errors))
				}
				return err
			}

			report := container.Report()
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %v\n", report.IsValid)
			fmt.Fprintf(cmd.OutOrStdout(), "services: %d, dependencies: %d\n", report.ServiceCount, report.DependencyCount)
			for _, w := range report.Warnings {
				fmt.Fprintln(cmd.OutOrStdout(), "warning:", w)
			}
			return nil
		},
	}
}
