package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session // sid -> Session
	folders  map[string]*Folder  // ownerID -> Folder
}

// NewInMemoryRepository creates a new in-memory session repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]*Session),
		folders:  make(map[string]*Folder),
	}
}

// EnsureFolder returns the owner's session folder, creating it if absent.
func (r *InMemoryRepository) EnsureFolder(ctx context.Context, ownerID string) (*Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.folders[ownerID]; ok {
		cp := *f
		return &cp, nil
	}
	f := &Folder{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      DefaultFolderName,
		CreatedAt: time.Now(),
	}
	r.folders[ownerID] = f
	cp := *f
	return &cp, nil
}

// Insert stores a new session record.
func (r *InMemoryRepository) Insert(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cp := copySession(s)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.sessions[cp.SID] = cp
	return nil
}

// GetBySID retrieves a session record by its sid.
func (r *InMemoryRepository) GetBySID(ctx context.Context, sid string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(s), nil
}

// ListByOwner returns all session records belonging to the owner, newest first.
func (r *InMemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			out = append(out, copySession(s))
		}
	}
	// Newest first, matching the Postgres ORDER BY.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateMetadata updates display name and/or description.
func (r *InMemoryRepository) UpdateMetadata(ctx context.Context, sid string, name, description *string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if name != nil {
		s.Name = *name
	}
	if description != nil {
		s.Description = *description
	}
	s.UpdatedAt = time.Now()
	return copySession(s), nil
}

// SetLabels replaces the stored positive/negative label sets.
func (r *InMemoryRepository) SetLabels(ctx context.Context, sid string, pos, neg []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sid]
	if !ok {
		return ErrSessionNotFound
	}
	s.PosUUIDs = append([]string(nil), pos...)
	s.NegUUIDs = append([]string(nil), neg...)
	s.UpdatedAt = time.Now()
	return nil
}

// copySession returns a deep copy so callers cannot mutate stored state.
func copySession(s *Session) *Session {
	cp := *s
	cp.PosUUIDs = append([]string(nil), s.PosUUIDs...)
	cp.NegUUIDs = append([]string(nil), s.NegUUIDs...)
	return &cp
}
