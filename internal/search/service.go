// Package search implements the session reconciliation and result
// orchestration core: it keeps the volatile engine session in sync with
// the durable session record, pushes labeled examples to the engine, and
// assembles merged result pages.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/ranking"
	"github.com/amirunpri2018/image-space/internal/session"
	"github.com/amirunpri2018/image-space/internal/solr"
)

// ErrNotOwner is returned when a caller operates on a session record
// belonging to someone else.
var ErrNotOwner = errors.New("session not owned by caller")

// Engine is the subset of the ranking engine client used by the service.
type Engine interface {
	CreateOrAttach(ctx context.Context, sid string) (string, bool, error)
	Refine(ctx context.Context, sid string, posUUIDs, negUUIDs []string) (json.RawMessage, error)
	FetchResults(ctx context.Context, sid string, offset, limit int) (int, []iqr.RankedEntry, error)
}

// Index is the subset of the document index client used by the service.
type Index interface {
	ResolveByChecksum(ctx context.Context, checksums []string) ([]solr.Document, error)
	ChecksumField() string
}

// Service coordinates the durable session store, the ranking engine, and
// the document index. It holds no mutable state of its own; concurrent
// refine calls for the same sid race with last-write-wins semantics,
// matching the engine's replace-not-merge refine contract.
type Service struct {
	repo    session.Repository
	engine  Engine
	index   Index
	logger  *slog.Logger
	metrics *Metrics
}

// NewService creates a new search service.
func NewService(repo session.Repository, engine Engine, index Index, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Service{
		repo:    repo,
		engine:  engine,
		index:   index,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateSession starts a new interactive search session: the engine
// assigns a sid, and a durable record named after it is stored in the
// owner's session folder.
func (s *Service) CreateSession(ctx context.Context, ownerID string) (*session.Session, error) {
	folder, err := s.repo.EnsureFolder(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	sid, _, err := s.engine.CreateOrAttach(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create engine session: %w", err)
	}

	rec := &session.Session{
		SID:      sid,
		OwnerID:  ownerID,
		FolderID: folder.ID,
		Name:     sid,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListSessions returns the owner's durable session records.
func (s *Service) ListSessions(ctx context.Context, ownerID string) ([]*session.Session, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// SessionFolder ensures and returns the owner's session folder.
func (s *Service) SessionFolder(ctx context.Context, ownerID string) (*session.Folder, error) {
	return s.repo.EnsureFolder(ctx, ownerID)
}

// UpdateSession updates a session's display metadata. Only the owner may
// update a record.
func (s *Service) UpdateSession(ctx context.Context, ownerID, sid string, name, description *string) (*session.Session, error) {
	rec, err := s.repo.GetBySID(ctx, sid)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return s.repo.UpdateMetadata(ctx, sid, name, description)
}

// Refine pushes full replacement label sets for the session into the
// engine and mirrors them into the durable record on success. The engine
// response body is passed through verbatim.
//
// Engine failures propagate as hard errors: silently dropping feedback
// would desync the session's learned state from what the user marked.
func (s *Service) Refine(ctx context.Context, sid string, posUUIDs, negUUIDs []string) (json.RawMessage, error) {
	// Engine sessions expire independently of the durable record; force
	// creation with this sid so the refine lands on a live session.
	if _, _, err := s.engine.CreateOrAttach(ctx, sid); err != nil {
		return nil, err
	}

	body, err := s.engine.Refine(ctx, sid, posUUIDs, negUUIDs)
	if err != nil {
		return nil, err
	}

	// Write-through: the durable record must mirror the exact sets the
	// engine now holds.
	if err := s.repo.SetLabels(ctx, sid, posUUIDs, negUUIDs); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.logger.Warn("refine for session with no durable record",
				slog.String("sid", sid))
			return body, nil
		}
		return nil, err
	}
	return body, nil
}

// EnsureEngineSession guarantees a live engine session for the sid before
// any ranking operation is trusted. Returns true if the engine session
// was already live.
//
// When the engine session had expired (or never existed), the durable
// record's stored label sets are replayed with exactly one refine call so
// the recreated session ranks from the user's last submitted feedback.
func (s *Service) EnsureEngineSession(ctx context.Context, sid string) (bool, error) {
	_, created, err := s.engine.CreateOrAttach(ctx, sid)
	if err != nil {
		s.metrics.reconciliations.WithLabelValues(OutcomeFailed).Inc()
		return false, err
	}
	if !created {
		s.metrics.reconciliations.WithLabelValues(OutcomeLive).Inc()
		return true, nil
	}

	rec, err := s.repo.GetBySID(ctx, sid)
	if errors.Is(err, session.ErrSessionNotFound) {
		// No durable record: treat as a freshly created session with
		// empty labels.
		s.logger.Debug("engine session recreated without durable record",
			slog.String("sid", sid))
		s.metrics.reconciliations.WithLabelValues(OutcomeRecreated).Inc()
		return false, nil
	}
	if err != nil {
		s.metrics.reconciliations.WithLabelValues(OutcomeFailed).Inc()
		return false, err
	}

	if !rec.HasLabels() {
		s.metrics.reconciliations.WithLabelValues(OutcomeRecreated).Inc()
		return false, nil
	}

	if _, err := s.engine.Refine(ctx, sid, rec.PosUUIDs, rec.NegUUIDs); err != nil {
		s.metrics.reconciliations.WithLabelValues(OutcomeFailed).Inc()
		return false, fmt.Errorf("failed to replay session labels: %w", err)
	}
	s.logger.Info("replayed session labels into recreated engine session",
		slog.String("sid", sid),
		slog.Int("pos", len(rec.PosUUIDs)),
		slog.Int("neg", len(rec.NegUUIDs)))
	s.metrics.reconciliations.WithLabelValues(OutcomeReplayed).Inc()
	return false, nil
}

// Results returns one merged, ordered result page for the session.
//
// Backend unavailability degrades to an empty page rather than an error:
// reconciliation happens once, the fetch is not retried, and consistency
// faults drop individual documents while the rest of the page survives.
func (s *Service) Results(ctx context.Context, sid string, offset, limit int) (*ranking.ResultPage, error) {
	if _, err := s.EnsureEngineSession(ctx, sid); err != nil {
		s.logger.Error("engine session reconciliation failed",
			slog.String("sid", sid),
			slog.String("error", err.Error()))
		s.metrics.degradedPages.WithLabelValues("engine").Inc()
		return ranking.EmptyPage(), nil
	}

	total, entries, err := s.engine.FetchResults(ctx, sid, offset, limit)
	if err != nil {
		s.logger.Error("engine results fetch failed",
			slog.String("sid", sid),
			slog.String("error", err.Error()))
		s.metrics.degradedPages.WithLabelValues("engine").Inc()
		return ranking.EmptyPage(), nil
	}
	if len(entries) == 0 {
		return ranking.EmptyPage(), nil
	}

	docs, err := s.index.ResolveByChecksum(ctx, ranking.Checksums(entries))
	if err != nil {
		s.logger.Error("document index resolve failed",
			slog.String("sid", sid),
			slog.String("error", err.Error()))
		s.metrics.degradedPages.WithLabelValues("index").Inc()
		return ranking.EmptyPage(), nil
	}

	page, faults := ranking.Merge(sid, total, entries, docs, s.index.ChecksumField())
	for _, f := range faults {
		s.logger.Error("consistency fault between ranked results and index documents",
			slog.String("sid", f.SID),
			slog.String("checksum", f.Checksum))
		s.metrics.consistencyFaults.Inc()
	}
	return page, nil
}
