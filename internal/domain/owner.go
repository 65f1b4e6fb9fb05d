package domain

import (
	"fmt"
	"time"
)

// Owner represents one person's fact store. All entries are scoped to an
// owner; nothing is shared across owners.
type Owner struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewOwner creates a new Owner instance
func NewOwner(id, name string, createdAt time.Time) *Owner {
	return &Owner{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
	}
}

// ValidateOwner validates an Owner instance
func ValidateOwner(o *Owner) error {
	if o == nil {
		return fmt.Errorf("owner cannot be nil")
	}

	if o.ID == "" {
		return fmt.Errorf("owner ID is required")
	}

	if o.Name == "" {
		return fmt.Errorf("owner Name is required")
	}

	return nil
}
