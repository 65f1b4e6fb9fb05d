package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ConfirmCmd creates the confirm command
func ConfirmCmd() *cobra.Command {
	var fieldKey string

	cmd := &cobra.Command{
		Use:   "confirm <label> <value>",
		Short: "Confirm a field answer",
		Long:  "Record a user-approved answer as the canonical verified value for a form field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runConfirm(cmd, args[0], args[1], fieldKey, outputJSON)
		},
	}

	cmd.Flags().StringVar(&fieldKey, "field-key", "", "Explicit field key (defaults to the normalized label)")
	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runConfirm(cmd *cobra.Command, label, value, fieldKey string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	body := map[string]string{
		"label": label,
		"value": value,
	}
	if fieldKey != "" {
		body["field_key"] = fieldKey
	}

	resp, err := api.Post("/confirm", body)
	if err != nil {
		return fmt.Errorf("failed to confirm field: %w", err)
	}

	var entry entryResult
	if err := json.Unmarshal(resp.Data, &entry); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Confirmed '%s' = '%s'\n", entry.Label, entry.Value)
	fmt.Printf("Entry ID: %s\n", entry.ID)
	return nil
}
