package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type documentResult struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SHA256      string `json:"sha256"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// DocumentsCmd creates the documents parent command
func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Manage supporting documents",
		Long:  "Upload, list, download, and delete supporting documents",
	}

	cmd.AddCommand(DocumentsUploadCmd())
	cmd.AddCommand(DocumentsListCmd())
	cmd.AddCommand(DocumentsDownloadCmd())
	cmd.AddCommand(DocumentsDeleteCmd())

	return cmd
}

// DocumentsUploadCmd creates the documents upload command
func DocumentsUploadCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document",
		Long:  "Upload a file through a presigned URL and register it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentsUpload(cmd, args[0], description, outputJSON)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Document description")
	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runDocumentsUpload(cmd *cobra.Command, filePath, description string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("failed to hash file: %w", err)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	filename := filepath.Base(filePath)
	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	initResp, err := api.Post("/documents/init", map[string]string{
		"filename":  filename,
		"mime_type": mimeType,
	})
	if err != nil {
		return fmt.Errorf("failed to initiate upload: %w", err)
	}

	var initResult struct {
		DocumentID string `json:"document_id"`
		StorageKey string `json:"storage_key"`
		UploadURL  string `json:"upload_url"`
	}
	if err := json.Unmarshal(initResp.Data, &initResult); err != nil {
		return fmt.Errorf("failed to parse init response: %w", err)
	}

	var onProgress ProgressFunc
	if !outputJSON {
		onProgress = func(current, total int64) {
			if total > 0 {
				fmt.Printf("\rUploading... %d%%", current*100/total)
			}
		}
	}
	if err := api.UploadReaderWithProgress(initResult.UploadURL, file, stat.Size(), mimeType, onProgress); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	if !outputJSON {
		fmt.Println()
	}

	body := map[string]string{
		"document_id": initResult.DocumentID,
		"storage_key": initResult.StorageKey,
		"filename":    filename,
		"mime_type":   mimeType,
		"sha256":      checksum,
	}
	if description != "" {
		body["description"] = description
	}

	completeResp, err := api.Post("/documents/complete", body)
	if err != nil {
		return fmt.Errorf("failed to complete upload: %w", err)
	}

	var doc documentResult
	if err := json.Unmarshal(completeResp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse complete response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Document uploaded: %s (%s)\n", doc.Filename, doc.ID)
	return nil
}

// DocumentsListCmd creates the documents list command
func DocumentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentsList(cmd, outputJSON)
		},
	}

	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runDocumentsList(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/documents")
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var result struct {
		Documents []*documentResult `json:"documents"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(result.Documents, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(result.Documents) == 0 {
		fmt.Println("No documents found")
		return nil
	}

	for _, doc := range result.Documents {
		fmt.Printf("  %s  %s (%s, uploaded: %s)\n", doc.ID, doc.Filename, doc.MimeType, doc.CreatedAt)
	}

	return nil
}

// DocumentsDownloadCmd creates the documents download command
func DocumentsDownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a document",
		Long:  "Fetch a presigned download URL and save the document locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocumentsDownload(cmd, args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output file path (default: original filename)")

	return cmd
}

func runDocumentsDownload(cmd *cobra.Command, documentID, outputPath string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/documents/" + documentID + "/download")
	if err != nil {
		return fmt.Errorf("failed to get download URL: %w", err)
	}

	var result struct {
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputPath == "" {
		outputPath = documentID
	}

	if err := api.DownloadFile(result.DownloadURL, outputPath); err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}

	fmt.Printf("Downloaded to %s\n", outputPath)
	return nil
}

// DocumentsDeleteCmd creates the documents delete command
func DocumentsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocumentsDelete(cmd, args[0])
		},
	}

	return cmd
}

func runDocumentsDelete(cmd *cobra.Command, documentID string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete("/documents/" + documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Printf("Document %s deleted\n", documentID)
	return nil
}
