package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already exists")
)

// UserStore persists accounts
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (models.User, error)
	ByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// PostgresUserStore is the users table
type PostgresUserStore struct {
	db *database.Postgres
}

func NewPostgresUserStore(db *database.Postgres) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := s.db.Pool().QueryRow(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.Role).
		Scan(&u.CreatedAt, &u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresUserStore) ByEmail(ctx context.Context, email string) (models.User, error) {
	return s.one(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (s *PostgresUserStore) ByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.one(ctx, `WHERE id = $1`, id)
}

func (s *PostgresUserStore) one(ctx context.Context, where string, arg any) (models.User, error) {
	query := `
		SELECT id, email, name, password_hash, role, email_verified, created_at, updated_at
		FROM users ` + where

	var u models.User
	err := s.db.Pool().QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}
