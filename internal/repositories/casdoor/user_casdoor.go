package casdoor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/cache"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

// CasdoorConfig holds the configuration for the Casdoor connection.
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

type UserCasdoor struct {
	client *casdoorsdk.Client
	cache  *cache.CacheHelper
	config CasdoorConfig
}

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &UserCasdoor{
		client: client,
		cache:  cache.NewCacheHelper(redisClient, cache.UserCacheConfig.Prefix),
		config: config,
	}
}

// GetByID retrieves a user by ID, serving from cache when possible.
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	cacheKey := fmt.Sprintf("id:%s", id)

	var cached models.User
	if err := u.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if casdoorUser == nil {
		return nil, fmt.Errorf("user not found with ID %s", id)
	}

	user := u.convertCasdoorUserToModel(casdoorUser)

	// Best effort; Casdoor remains the source of truth.
	_ = u.cache.Set(ctx, cacheKey, user, cache.UserCacheConfig.TTL)

	return user, nil
}

// GetRole resolves just the role of a user.
func (u *UserCasdoor) GetRole(ctx context.Context, id string) (models.UserRole, error) {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// ===== CONVERSION =====

func (u *UserCasdoor) convertCasdoorUserToModel(casdoorUser *casdoorsdk.User) *models.User {
	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	return &models.User{
		ID:        casdoorUser.Id,
		FullName:  casdoorUser.DisplayName,
		Email:     casdoorUser.Email,
		Role:      u.convertCasdoorRolesToModel(casdoorUser),
		AvatarURL: &casdoorUser.Avatar,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// convertCasdoorRolesToModel maps Casdoor roles onto the two roles this
// service recognizes. Anything administrative becomes admin; everything
// else is a student.
func (u *UserCasdoor) convertCasdoorRolesToModel(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleAdmin
	}

	for _, role := range casdoorUser.Roles {
		switch strings.ToLower(role.Name) {
		case "admin", "administrator":
			return models.RoleAdmin
		}
	}

	return models.RoleStudent
}
