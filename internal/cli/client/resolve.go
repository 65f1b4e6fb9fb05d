package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ResolveCmd creates the resolve command
func ResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <label>",
		Short: "Resolve a form field label to a stored answer",
		Long:  "Run the resolution cascade for a form field label and print the answer, or the reason there is none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runResolve(cmd, args[0], outputJSON)
		},
	}

	cmd.Flags().Bool("output", false, "Output as JSON")
	cmd.AddCommand(ResolveFeedbackCmd())

	return cmd
}

// ResolveFeedbackCmd creates the resolve feedback command
func ResolveFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <entry-id>",
		Short: "Report that a resolved value was used",
		Long:  "Record that the value of an entry was actually placed into a form field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolveFeedback(cmd, args[0])
		},
	}

	return cmd
}

type resolveResult struct {
	Status  string `json:"status"`
	Stage   string `json:"stage"`
	Value   string `json:"value,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

func runResolve(cmd *cobra.Command, label string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/resolve", map[string]string{"label": label})
	if err != nil {
		return fmt.Errorf("failed to resolve field: %w", err)
	}

	var result resolveResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	switch result.Status {
	case "value":
		fmt.Printf("%s\n", result.Value)
		fmt.Printf("(stage: %s, entry: %s)\n", result.Stage, result.EntryID)
	case "deferred":
		fmt.Printf("Deferred: conflicting stored answers, confirmation needed (stage: %s)\n", result.Stage)
	default:
		fmt.Printf("No match (stage: %s)\n", result.Stage)
	}

	return nil
}

func runResolveFeedback(cmd *cobra.Command, entryID string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Post("/resolve/feedback", map[string]string{"entry_id": entryID}); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	fmt.Printf("Usage recorded for entry %s\n", entryID)
	return nil
}
