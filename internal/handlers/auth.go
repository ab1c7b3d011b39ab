package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/proflinker/api/internal/middleware"
	"github.com/proflinker/api/internal/models"
	"github.com/proflinker/api/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users     UserStore
	jwtSecret string
	hub       *session.Hub
	logger    *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, jwtSecret string, hub *session.Hub, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, hub: hub, logger: logger}
}

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=2"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is the response for auth endpoints
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates a new user account
// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "account"
// @Success 201 {object} AuthResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		middleware.InternalError(c, "internal server error")
		return
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hashedPassword),
		Role:         models.RoleStudent,
	}

	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			middleware.Conflict(c, "email already exists")
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.ErrCodeDatabaseError, "failed to create account")
		return
	}

	h.respondWithToken(c, http.StatusCreated, &user)
}

// Login authenticates a user
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "credentials"
// @Success 200 {object} AuthResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err.Error())
		return
	}

	user, err := h.users.ByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("failed to load user", zap.Error(err))
		}
		middleware.Unauthorized(c, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		middleware.Unauthorized(c, "invalid credentials")
		return
	}

	h.respondWithToken(c, http.StatusOK, &user)
}

// Logout ends the session: pending generations are cancelled and the
// session draft is dropped.
// @Summary Log out
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}
	h.hub.Publish(session.LoggedOut, userID)
	c.Status(http.StatusNoContent)
}

// GetCurrentUser returns the current authenticated user
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Router /api/v1/user/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.Unauthorized(c, "unauthorized")
		return
	}

	user, err := h.users.ByID(c.Request.Context(), userID)
	if err != nil {
		middleware.NotFound(c, "user not found")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.generateToken(user)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		middleware.InternalError(c, "internal server error")
		return
	}
	c.JSON(status, AuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *AuthHandler) generateToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tokenTTL)

	claims := middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}
