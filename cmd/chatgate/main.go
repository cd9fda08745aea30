package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "chatgate",
		Short:   "chatgate: a rate-limited, caching gateway for OpenAI-compatible chat APIs",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
