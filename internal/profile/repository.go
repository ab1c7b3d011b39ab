package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/models"
)

// ErrNotFound is returned when a user has no remote profile yet
var ErrNotFound = errors.New("profile not found")

// PostgresRepository stores remote profiles in the profiles table
type PostgresRepository struct {
	db *database.Postgres
}

func NewPostgresRepository(db *database.Postgres) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	query := `
		SELECT user_id, full_name, field_of_interest, education_level,
		       research_experience, academic_goals, updated_at
		FROM profiles WHERE user_id = $1
	`

	var p models.Profile
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.FullName, &p.FieldOfInterest, &p.EducationLevel,
		&p.ResearchExperience, &p.AcademicGoals, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p models.Profile) (models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, full_name, field_of_interest, education_level,
		                      research_experience, academic_goals, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			field_of_interest = EXCLUDED.field_of_interest,
			education_level = EXCLUDED.education_level,
			research_experience = EXCLUDED.research_experience,
			academic_goals = EXCLUDED.academic_goals,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		p.UserID, p.FullName, p.FieldOfInterest, p.EducationLevel,
		p.ResearchExperience, p.AcademicGoals,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}
