package verification

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/eventbus"
	"github.com/proflinker/api/internal/mailer"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a code stays valid
	DefaultTTL = 15 * time.Minute
	// MaxAttempts is the number of wrong guesses that burn a code
	MaxAttempts = 5
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidCode  = errors.New("invalid or expired verification code")
)

// Repository stores verification codes
type Repository interface {
	Create(ctx context.Context, code models.VerificationCode) error
	// Consume checks codeHash against the newest unused, unexpired code of
	// email. A match marks the code used. A miss counts an attempt and marks
	// the code used once maxAttempts misses are reached. It reports whether
	// the hash matched.
	Consume(ctx context.Context, email, codeHash string, now time.Time, maxAttempts int) (bool, error)
	MarkEmailVerified(ctx context.Context, email string) error
}

// CodeService issues and checks single-use email verification codes.
// Only an HMAC of each code is stored.
type CodeService struct {
	repo       Repository
	mail       mailer.Sender
	events     eventbus.EventStore
	signingKey []byte
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
	generate   func() (string, error)
}

func NewCodeService(repo Repository, mail mailer.Sender, events eventbus.EventStore, signingKey string, ttl time.Duration, logger *zap.Logger) *CodeService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CodeService{
		repo:       repo,
		mail:       mail,
		events:     events,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
		generate:   generateCode,
	}
}

// Send issues a fresh code for email and delivers it
func (s *CodeService) Send(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now().UTC()
	record := models.VerificationCode{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  s.hash(email, code),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return err
	}

	if err := s.mail.Send(ctx, mailer.VerificationMessage(email, code, s.ttl)); err != nil {
		return err
	}

	if s.events != nil {
		if err := s.events.Append(eventbus.SubjectVerificationSent, map[string]any{"email": email}); err != nil {
			s.logger.Warn("failed to publish verification event", zap.Error(err))
		}
	}
	return nil
}

// Verify consumes a code. A code verifies at most once.
func (s *CodeService) Verify(ctx context.Context, email, code string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return ErrInvalidCode
	}

	ok, err := s.repo.Consume(ctx, email, s.hash(email, code), s.now().UTC(), MaxAttempts)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	if err := s.repo.MarkEmailVerified(ctx, email); err != nil {
		s.logger.Warn("failed to mark email verified", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// hash binds the code to the address so a code cannot be replayed for another email
func (s *CodeService) hash(email, code string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(email + ":" + code))
	return hex.EncodeToString(h.Sum(nil))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
