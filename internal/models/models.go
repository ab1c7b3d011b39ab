package models

import (
	"time"

	"github.com/google/uuid"
)

// CandidateKind identifies which collection a generation request produces
type CandidateKind string

const (
	KindUniversities CandidateKind = "universities"
	KindProfessors   CandidateKind = "professors"
)

// Valid reports whether k is a known candidate kind
func (k CandidateKind) Valid() bool {
	return k == KindUniversities || k == KindProfessors
}

// Funding levels accepted for a university
const (
	FundingLow    = "low"
	FundingMedium = "medium"
	FundingHigh   = "high"
)

// ScoreComponent is one named part of a match score
type ScoreComponent struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Match is the score attached to a candidate. Placeholder values until a real
// matching algorithm exists; do not rank on it.
type Match struct {
	Score     int              `json:"match_score"`
	Breakdown []ScoreComponent `json:"score_breakdown,omitempty"`
}

// University is a suggested institution
type University struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Country       string   `json:"country"`
	Location      string   `json:"location,omitempty"`
	Departments   []string `json:"departments"`
	ResearchAreas []string `json:"research_areas"`
	FundingLevel  string   `json:"funding_level"`
	Ranking       *int     `json:"ranking,omitempty"`
	Website       string   `json:"website,omitempty"`
	Description   string   `json:"description,omitempty"`
	Match
}

// Professor is a suggested faculty member
type Professor struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Title              string   `json:"title,omitempty"`
	University         string   `json:"university,omitempty"`
	Department         string   `json:"department,omitempty"`
	ResearchAreas      []string `json:"research_areas"`
	Email              string   `json:"email,omitempty"`
	Website            string   `json:"website,omitempty"`
	RecentPublications []string `json:"recent_publications,omitempty"`
	AcceptingStudents  *bool    `json:"accepting_students,omitempty"`
	Match
}

// User represents an account
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"` // Never serialize
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Profile is the remote copy of a user's preferences
type Profile struct {
	UserID             uuid.UUID `json:"user_id"`
	FullName           string    `json:"full_name"`
	FieldOfInterest    string    `json:"field_of_interest"`
	EducationLevel     string    `json:"education_level"`
	ResearchExperience string    `json:"research_experience"`
	AcademicGoals      string    `json:"academic_goals"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FavoriteUniversity is a persisted university selection
type FavoriteUniversity struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	University University `json:"university"`
	CreatedAt  time.Time  `json:"created_at"`
}

// FavoriteProfessor is a persisted professor selection
type FavoriteProfessor struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Professor Professor `json:"professor"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationCode is a stored email verification code. Only the hash is kept.
type VerificationCode struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	CodeHash  string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}

// GenerationLog tracks generation runs
type GenerationLog struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	Kind            CandidateKind `json:"kind"`
	FieldOfInterest string        `json:"field_of_interest"`
	Count           int           `json:"count"`
	Attempt         int           `json:"attempt"`
	Status          string        `json:"status"`
	ErrorKind       string        `json:"error_kind,omitempty"`
	LatencyMs       int64         `json:"latency_ms"`
	CreatedAt       time.Time     `json:"created_at"`
}
