package domain

import (
	"fmt"
	"time"
)

// Document represents a source artifact an owner uploaded, such as a
// submitted essay, transcript, or application export. Documents are never
// parsed here; they exist so entries can carry an opaque provenance
// reference back to the artifact they were extracted from.
type Document struct {
	ID          string
	OwnerID     string
	Filename    string
	MimeType    string
	SHA256      string
	StorageKey  string
	Description string
	CreatedAt   time.Time
}

// NewDocument creates a new Document instance
func NewDocument(
	id, ownerID string,
	filename, mimeType, sha256, storageKey, description string,
	createdAt time.Time,
) *Document {
	return &Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		MimeType:    mimeType,
		SHA256:      sha256,
		StorageKey:  storageKey,
		Description: description,
		CreatedAt:   createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.OwnerID == "" {
		return fmt.Errorf("document OwnerID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.MimeType == "" {
		return fmt.Errorf("document MimeType is required")
	}

	if d.SHA256 == "" {
		return fmt.Errorf("document SHA256 is required")
	}

	if d.StorageKey == "" {
		return fmt.Errorf("document StorageKey is required")
	}

	return nil
}
