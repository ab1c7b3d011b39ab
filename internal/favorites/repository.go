package favorites

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/models"
)

// PostgresRepository persists favorites. Inserts are idempotent on the
// natural key of each candidate.
type PostgresRepository struct {
	db *database.Postgres
}

func NewPostgresRepository(db *database.Postgres) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) AddUniversity(ctx context.Context, userID uuid.UUID, u models.University) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO favorite_universities (id, user_id, name, country, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, name, country) DO NOTHING
	`
	if _, err := r.db.Pool().Exec(ctx, query, uuid.New(), userID, u.Name, u.Country, data); err != nil {
		return fmt.Errorf("failed to save university %q: %w", u.Name, err)
	}
	return nil
}

func (r *PostgresRepository) AddProfessor(ctx context.Context, userID uuid.UUID, p models.Professor) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO favorite_professors (id, user_id, name, university, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, name, university) DO NOTHING
	`
	if _, err := r.db.Pool().Exec(ctx, query, uuid.New(), userID, p.Name, p.University, data); err != nil {
		return fmt.Errorf("failed to save professor %q: %w", p.Name, err)
	}
	return nil
}

func (r *PostgresRepository) ListUniversities(ctx context.Context, userID uuid.UUID) ([]models.FavoriteUniversity, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, user_id, data, created_at
		FROM favorite_universities WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite universities: %w", err)
	}
	defer rows.Close()

	out := make([]models.FavoriteUniversity, 0)
	for rows.Next() {
		var f models.FavoriteUniversity
		var data []byte
		if err := rows.Scan(&f.ID, &f.UserID, &data, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &f.University); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListProfessors(ctx context.Context, userID uuid.UUID) ([]models.FavoriteProfessor, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, user_id, data, created_at
		FROM favorite_professors WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite professors: %w", err)
	}
	defer rows.Close()

	out := make([]models.FavoriteProfessor, 0)
	for rows.Next() {
		var f models.FavoriteProfessor
		var data []byte
		if err := rows.Scan(&f.ID, &f.UserID, &data, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &f.Professor); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Remove deletes one favorite; it reports whether a row existed
func (r *PostgresRepository) Remove(ctx context.Context, userID uuid.UUID, kind models.CandidateKind, id uuid.UUID) (bool, error) {
	table := "favorite_universities"
	if kind == models.KindProfessors {
		table = "favorite_professors"
	}
	tag, err := r.db.Pool().Exec(ctx, "DELETE FROM "+table+" WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
