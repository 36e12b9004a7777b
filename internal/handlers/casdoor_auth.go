package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/config"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
	config   config.CasdoorConfig
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)

	return &CasdoorAuthMiddleware{
		client:   client,
		userRepo: userRepo,
		config:   cfg,
	}
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authorization header missing",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := cam.client.ParseJwtToken(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("invalid token: %v", err),
			})
			c.Abort()
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("failed to extract user info: %v", err),
			})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

// RequireRoleMiddleware checks if user has any of the required roles
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "user role not found in context",
			})
			c.Abort()
			return
		}

		role, ok := userRole.(models.UserRole)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "invalid user role format",
			})
			c.Abort()
			return
		}

		hasRequiredRole := false
		for _, requiredRole := range requiredRoles {
			if role == requiredRole || role == models.RoleAdmin {
				hasRequiredRole = true
				break
			}
		}

		if !hasRequiredRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractUserFromClaims resolves the caller from token claims, falling
// back to claim contents when the user repository cannot serve them.
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	user, err := cam.userRepo.GetByID(ctx, userID)
	if err != nil {
		user = cam.createUserFromClaims(claims)
		if user == nil {
			return nil, fmt.Errorf("failed to create user from claims")
		}
	}

	return user, nil
}

// createUserFromClaims creates a user model from JWT claims
func (cam *CasdoorAuthMiddleware) createUserFromClaims(claims *casdoorsdk.Claims) *models.User {
	userID := claims.Id
	if userID == "" {
		return nil
	}

	avatarURL := claims.User.Avatar

	return &models.User{
		ID:        userID,
		FullName:  claims.User.DisplayName,
		Email:     claims.User.Email,
		Role:      mapCasdoorRoleToUserRole(claims.User.Type, claims.User.IsAdmin),
		AvatarURL: &avatarURL,
	}
}

func mapCasdoorRoleToUserRole(casdoorType string, isAdmin bool) models.UserRole {
	if isAdmin {
		return models.RoleAdmin
	}
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}
