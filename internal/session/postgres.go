package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/amirunpri2018/image-space/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureFolder returns the owner's session folder, creating it if absent.
// The upsert makes concurrent first requests for the same owner converge
// on a single row.
func (r *PostgresRepository) EnsureFolder(ctx context.Context, ownerID string) (*Folder, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "session_folders", tracing.DBOperationInsert)
	query := `
		INSERT INTO session_folders (id, owner_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		RETURNING id, owner_id, name, created_at
	`
	var f Folder
	err := r.db.QueryRowContext(ctx, query, uuid.New().String(), ownerID, DefaultFolderName).
		Scan(&f.ID, &f.OwnerID, &f.Name, &f.CreatedAt)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure session folder: %w", err)
	}
	return &f, nil
}

// Insert stores a new session record.
func (r *PostgresRepository) Insert(ctx context.Context, s *Session) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationInsert)
	query := `
		INSERT INTO sessions (sid, owner_id, folder_id, name, description, pos_uuids, neg_uuids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.SID, s.OwnerID, s.FolderID, s.Name, s.Description,
		pq.Array(s.PosUUIDs), pq.Array(s.NegUUIDs),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	endSpan(err)
	if err != nil {
		r.logger.Error("failed to insert session",
			slog.String("sid", s.SID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetBySID retrieves a session record by its sid.
func (r *PostgresRepository) GetBySID(ctx context.Context, sid string) (*Session, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationQuery)
	query := `
		SELECT sid, owner_id, folder_id, name, description, pos_uuids, neg_uuids, created_at, updated_at
		FROM sessions
		WHERE sid = $1
	`
	var s Session
	err := r.db.QueryRowContext(ctx, query, sid).Scan(
		&s.SID, &s.OwnerID, &s.FolderID, &s.Name, &s.Description,
		pq.Array(&s.PosUUIDs), pq.Array(&s.NegUUIDs),
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		endSpan(nil)
		return nil, ErrSessionNotFound
	}
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// ListByOwner returns all session records belonging to the owner, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*Session, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationQuery)
	query := `
		SELECT sid, owner_id, folder_id, name, description, pos_uuids, neg_uuids, created_at, updated_at
		FROM sessions
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.SID, &s.OwnerID, &s.FolderID, &s.Name, &s.Description,
			pq.Array(&s.PosUUIDs), pq.Array(&s.NegUUIDs),
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	endSpan(nil)
	return out, nil
}

// UpdateMetadata updates display name and/or description. Nil fields are
// left unchanged.
func (r *PostgresRepository) UpdateMetadata(ctx context.Context, sid string, name, description *string) (*Session, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationUpdate)
	query := `
		UPDATE sessions
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    updated_at  = now()
		WHERE sid = $1
		RETURNING sid, owner_id, folder_id, name, description, pos_uuids, neg_uuids, created_at, updated_at
	`
	var s Session
	err := r.db.QueryRowContext(ctx, query, sid, name, description).Scan(
		&s.SID, &s.OwnerID, &s.FolderID, &s.Name, &s.Description,
		pq.Array(&s.PosUUIDs), pq.Array(&s.NegUUIDs),
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		endSpan(nil)
		return nil, ErrSessionNotFound
	}
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return &s, nil
}

// SetLabels replaces the stored positive/negative label sets.
func (r *PostgresRepository) SetLabels(ctx context.Context, sid string, pos, neg []string) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationUpdate)
	query := `
		UPDATE sessions
		SET pos_uuids = $2, neg_uuids = $3, updated_at = now()
		WHERE sid = $1
	`
	res, err := r.db.ExecContext(ctx, query, sid, pq.Array(pos), pq.Array(neg))
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to set session labels: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
