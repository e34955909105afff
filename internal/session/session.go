// Package session provides the durable store for IQR session records.
// The ranking engine keeps its own in-memory session per sid, but that
// copy expires on its own schedule; the records kept here are the source
// of truth used to rebuild engine state after expiry.
package session

import (
	"context"
	"errors"
	"time"
)

// Common errors for session operations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrFolderNotFound  = errors.New("session folder not found")
)

// Session is the durable record for one interactive search session.
// PosUUIDs and NegUUIDs hold the last label sets successfully submitted
// to the ranking engine; they are replaced wholesale on every refine,
// never merged.
type Session struct {
	SID         string    `json:"sid"`
	OwnerID     string    `json:"owner_id"`
	FolderID    string    `json:"folder_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PosUUIDs    []string  `json:"pos_uuids"`
	NegUUIDs    []string  `json:"neg_uuids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasLabels reports whether the session carries any stored example labels.
func (s *Session) HasLabels() bool {
	return len(s.PosUUIDs) > 0 || len(s.NegUUIDs) > 0
}

// Folder is the per-owner container holding session records.
type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultFolderName is the display name given to a newly created session folder.
const DefaultFolderName = "Sessions"

// Repository defines the interface for durable session storage.
type Repository interface {
	// EnsureFolder returns the owner's session folder, creating it if absent.
	// Repeated calls for the same owner return the same folder.
	EnsureFolder(ctx context.Context, ownerID string) (*Folder, error)

	// Insert stores a new session record inside the owner's folder.
	Insert(ctx context.Context, s *Session) error

	// GetBySID retrieves a session record by its sid.
	// Returns ErrSessionNotFound if no record exists.
	GetBySID(ctx context.Context, sid string) (*Session, error)

	// ListByOwner returns all session records belonging to the owner,
	// newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Session, error)

	// UpdateMetadata updates display name and/or description. Nil fields
	// are left unchanged. Returns the updated record.
	UpdateMetadata(ctx context.Context, sid string, name, description *string) (*Session, error)

	// SetLabels replaces the stored positive/negative label sets.
	// Called after every successful refine so the record mirrors the
	// engine's state exactly.
	SetLabels(ctx context.Context, sid string, pos, neg []string) error
}
