package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/models"
	"go.uber.org/zap"
)

// Permission constants
const (
	PermManageProfile   = "profile:manage"
	PermGenerate        = "generation:run"
	PermManageFavorites = "favorites:manage"
	PermSendEmail       = "email:send"
	PermViewUsage       = "usage:view"
	PermViewEvents      = "events:view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[string]map[string]bool{
	models.RoleStudent: {
		PermManageProfile:   true,
		PermGenerate:        true,
		PermManageFavorites: true,
		PermSendEmail:       true,
	},
	models.RoleAdmin: {
		PermManageProfile:   true,
		PermGenerate:        true,
		PermManageFavorites: true,
		PermSendEmail:       true,
		PermViewUsage:       true,
		PermViewEvents:      true,
	},
}

// RoleLookup resolves the current role of a user
type RoleLookup interface {
	Role(ctx context.Context, userID uuid.UUID) (string, error)
}

// PostgresRoleLookup reads roles from the users table
type PostgresRoleLookup struct {
	db *database.Postgres
}

func NewPostgresRoleLookup(db *database.Postgres) *PostgresRoleLookup {
	return &PostgresRoleLookup{db: db}
}

func (l *PostgresRoleLookup) Role(ctx context.Context, userID uuid.UUID) (string, error) {
	var role string
	err := l.db.Pool().QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	return role, err
}

// RBACMiddleware handles role-based access control. When a lookup is
// configured the stored role wins over the token claim.
type RBACMiddleware struct {
	roles  RoleLookup
	logger *zap.Logger
}

func NewRBACMiddleware(roles RoleLookup, logger *zap.Logger) *RBACMiddleware {
	return &RBACMiddleware{roles: roles, logger: logger}
}

// RequireRole checks that the caller holds exactly the given role
func (m *RBACMiddleware) RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.checkAccess(c, func(userRole string) bool {
			return userRole == requiredRole
		})
	}
}

// RequirePermission checks if the user has the specific permission
func (m *RBACMiddleware) RequirePermission(requiredPermission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.checkAccess(c, func(userRole string) bool {
			return hasPermission(userRole, requiredPermission)
		})
	}
}

func (m *RBACMiddleware) checkAccess(c *gin.Context, checkFunc func(userRole string) bool) {
	id, exists := GetIdentity(c)
	if !exists {
		Unauthorized(c, "authentication required")
		c.Abort()
		return
	}

	userRole := id.Role
	if m.roles != nil {
		role, err := m.roles.Role(c.Request.Context(), id.UserID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			Forbidden(c, "access denied")
			c.Abort()
			return
		case err != nil:
			m.logger.Error("failed to check role", zap.Error(err))
			InternalError(c, "internal server error")
			c.Abort()
			return
		}
		userRole = role
	}

	if !checkFunc(userRole) {
		Forbidden(c, "insufficient permissions")
		c.Abort()
		return
	}

	c.Next()
}

func hasPermission(userRole, requiredPermission string) bool {
	permissions, ok := RolePermissions[userRole]
	if !ok {
		return false
	}
	return permissions[requiredPermission]
}
