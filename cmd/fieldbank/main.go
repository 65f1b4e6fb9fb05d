package main

import (
	"fmt"
	"os"

	"github.com/fieldbankhq/fieldbank/internal/cli"
	"github.com/fieldbankhq/fieldbank/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldbank",
		Short: "Fieldbank CLI - Personal knowledge for form filling",
		Long: `Fieldbank CLI provides commands to resolve, confirm, and manage
the personal facts behind automatic form filling.

Environment variables:
  FIELDBANK_API_KEY   API key for authentication (required)
  FIELDBANK_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ResolveCmd())
	rootCmd.AddCommand(client.ConfirmCmd())
	rootCmd.AddCommand(client.EntriesCmd())
	rootCmd.AddCommand(client.DocumentsCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
