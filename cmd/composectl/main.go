package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "composectl",
		Short: "Inspect a composition root built on the runtime composition core",
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newTokensCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
