package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

// Store persists generation logs
type Store interface {
	Insert(ctx context.Context, log models.GenerationLog) error
	Recent(ctx context.Context, filter Filter) ([]models.GenerationLog, error)
}

// Filter narrows a log listing
type Filter struct {
	Kind   models.CandidateKind
	Status string
	Limit  int
}

// Service records every settled generation run
type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Observer returns a controller observer that logs runs of userID.
// Writes happen off the request path with their own deadline.
func (s *Service) Observer(userID uuid.UUID) func(generation.Report) {
	return func(r generation.Report) {
		entry := models.GenerationLog{
			ID:              uuid.New(),
			UserID:          userID,
			Kind:            r.Request.Kind,
			FieldOfInterest: r.Request.FieldOfInterest,
			Count:           r.Count,
			Attempt:         r.Attempt,
			Status:          string(r.Status),
			ErrorKind:       generation.Kind(r.Err),
			LatencyMs:       r.Latency.Milliseconds(),
			CreatedAt:       time.Now().UTC(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Record(ctx, entry); err != nil {
				s.logger.Error("failed to record generation usage", zap.Error(err))
			}
		}()
	}
}

// Record stores one log entry
func (s *Service) Record(ctx context.Context, entry models.GenerationLog) error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Insert(ctx, entry)
}

// Recent lists the newest log entries
func (s *Service) Recent(ctx context.Context, filter Filter) ([]models.GenerationLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if s == nil || s.store == nil {
		return []models.GenerationLog{}, nil
	}
	return s.store.Recent(ctx, filter)
}

// PostgresStore keeps logs in the generation_logs table
type PostgresStore struct {
	db *database.Postgres
}

func NewPostgresStore(db *database.Postgres) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Insert(ctx context.Context, l models.GenerationLog) error {
	query := `
		INSERT INTO generation_logs (id, user_id, kind, field_of_interest, count, attempt, status, error_kind, latency_ms, created_at)
		VALUES ($1, NULLIF($2, '00000000-0000-0000-0000-000000000000'::uuid), $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.db.Pool().Exec(ctx, query,
		l.ID, l.UserID, string(l.Kind), l.FieldOfInterest, l.Count, l.Attempt, l.Status, l.ErrorKind, l.LatencyMs, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation log: %w", err)
	}
	return nil
}

func (p *PostgresStore) Recent(ctx context.Context, f Filter) ([]models.GenerationLog, error) {
	query := `
		SELECT id, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'::uuid), kind, field_of_interest,
		       count, attempt, status, error_kind, latency_ms, created_at
		FROM generation_logs
		WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := p.db.Pool().Query(ctx, query, string(f.Kind), f.Status, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.GenerationLog, 0, f.Limit)
	for rows.Next() {
		var l models.GenerationLog
		var kind string
		if err := rows.Scan(&l.ID, &l.UserID, &kind, &l.FieldOfInterest, &l.Count, &l.Attempt,
			&l.Status, &l.ErrorKind, &l.LatencyMs, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Kind = models.CandidateKind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}
