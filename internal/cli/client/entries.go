package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// entryResult mirrors the server's entry response shape.
type entryResult struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	Group          string  `json:"group"`
	Label          string  `json:"label"`
	Value          string  `json:"value,omitempty"`
	Payload        string  `json:"payload,omitempty"`
	Confidence     float64 `json:"confidence"`
	Verified       bool    `json:"verified"`
	LastVerifiedAt string  `json:"last_verified_at,omitempty"`
	Provenance     string  `json:"provenance,omitempty"`
	UsageCount     int64   `json:"usage_count"`
	LastUsedAt     string  `json:"last_used_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// EntriesCmd creates the entries parent command
func EntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage stored entries",
		Long:  "Add, list, inspect, and delete stored knowledge entries",
	}

	cmd.AddCommand(EntriesAddCmd())
	cmd.AddCommand(EntriesListCmd())
	cmd.AddCommand(EntriesGetCmd())
	cmd.AddCommand(EntriesDeleteCmd())
	cmd.AddCommand(EntriesPurgeCmd())

	return cmd
}

// EntriesAddCmd creates the entries add command
func EntriesAddCmd() *cobra.Command {
	var (
		kind       string
		group      string
		value      string
		payload    string
		confidence float64
		provenance string
	)

	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Record an extracted fact",
		Long:  "Store an extracted fact as an unverified candidate for later confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEntriesAdd(cmd, args[0], kind, group, value, payload, confidence, provenance, outputJSON)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Entry kind (default: derived_field_value)")
	cmd.Flags().StringVar(&group, "group", "", "Field group key (default: normalized label)")
	cmd.Flags().StringVar(&value, "value", "", "Field value")
	cmd.Flags().StringVar(&payload, "payload", "", "Prose payload for non-field entries")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "Extraction confidence (0..1)")
	cmd.Flags().StringVar(&provenance, "provenance", "", "Where the fact came from")
	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runEntriesAdd(cmd *cobra.Command, label, kind, group, value, payload string, confidence float64, provenance string, outputJSON bool) error {
	if value == "" && payload == "" {
		return fmt.Errorf("either --value or --payload is required")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"label": label,
	}
	if kind != "" {
		body["kind"] = kind
	}
	if group != "" {
		body["group"] = group
	}
	if value != "" {
		body["value"] = value
	}
	if payload != "" {
		body["payload"] = payload
	}
	if confidence > 0 {
		body["confidence"] = confidence
	}
	if provenance != "" {
		body["provenance"] = provenance
	}

	resp, err := api.Post("/entries", body)
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}

	var result struct {
		Entry  *entryResult `json:"entry"`
		Stored bool         `json:"stored"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if !result.Stored {
		fmt.Println("Skipped: a fresh verified answer already covers this field")
		return nil
	}

	fmt.Printf("Entry stored: %s\n", result.Entry.ID)
	return nil
}

// EntriesListCmd creates the entries list command
func EntriesListCmd() *cobra.Command {
	var (
		kind   string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries",
		Long:  "List stored entries, optionally filtered by kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEntriesList(cmd, kind, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by entry kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runEntriesList(cmd *cobra.Command, kind string, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	query := url.Values{}
	if kind != "" {
		query.Set("kind", kind)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	path := "/entries"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	var result struct {
		Entries []*entryResult `json:"entries"`
		Cursor  string         `json:"cursor"`
		HasMore bool           `json:"has_more"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(result.Entries) == 0 {
		fmt.Println("No entries found")
		return nil
	}

	for _, entry := range result.Entries {
		status := "unverified"
		if entry.Verified {
			status = "verified"
		}
		answer := entry.Value
		if answer == "" {
			answer = truncate(entry.Payload, 60)
		}
		fmt.Printf("  %s  [%s/%s]  %s = %s\n", entry.ID, entry.Kind, status, entry.Label, answer)
	}
	if result.HasMore && result.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", result.Cursor)
	}

	return nil
}

// EntriesGetCmd creates the entries get command
func EntriesGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEntriesGet(cmd, args[0], outputJSON)
		},
	}

	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runEntriesGet(cmd *cobra.Command, entryID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/entries/" + entryID)
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
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

	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Kind:       %s\n", entry.Kind)
	fmt.Printf("Group:      %s\n", entry.Group)
	fmt.Printf("Label:      %s\n", entry.Label)
	if entry.Value != "" {
		fmt.Printf("Value:      %s\n", entry.Value)
	} else {
		fmt.Printf("Payload:    %s\n", entry.Payload)
	}
	fmt.Printf("Verified:   %t\n", entry.Verified)
	if entry.LastVerifiedAt != "" {
		fmt.Printf("Verified at: %s\n", entry.LastVerifiedAt)
	}
	fmt.Printf("Confidence: %.2f\n", entry.Confidence)
	if entry.Provenance != "" {
		fmt.Printf("Provenance: %s\n", entry.Provenance)
	}
	fmt.Printf("Used:       %d times\n", entry.UsageCount)
	fmt.Printf("Created:    %s\n", entry.CreatedAt)

	return nil
}

// EntriesDeleteCmd creates the entries delete command
func EntriesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntriesDelete(cmd, args[0])
		},
	}

	return cmd
}

func runEntriesDelete(cmd *cobra.Command, entryID string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete("/entries/" + entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	fmt.Printf("Entry %s deleted\n", entryID)
	return nil
}

// EntriesPurgeCmd creates the entries purge command
func EntriesPurgeCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all entries of one kind",
		Long:  "Delete every stored entry of the given kind for the authenticated owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntriesPurge(cmd, kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Entry kind to purge (required)")
	cmd.MarkFlagRequired("kind")

	return cmd
}

func runEntriesPurge(cmd *cobra.Command, kind string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/entries/purge", map[string]string{"kind": kind})
	if err != nil {
		return fmt.Errorf("failed to purge entries: %w", err)
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Deleted %d entries of kind '%s'\n", result.Deleted, kind)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
