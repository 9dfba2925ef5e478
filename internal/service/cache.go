package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// CacheService defines the interface for caching operations
type CacheService interface {
	// User cache operations
	CacheUser(ctx context.Context, user *domain.User) error
	GetCachedUser(ctx context.Context, userID uuid.UUID) (*domain.UserResponse, error)
	InvalidateUserCache(ctx context.Context, userID uuid.UUID) error

	// Project cache operations
	CacheProject(ctx context.Context, project *domain.Project) error
	GetCachedProject(ctx context.Context, projectID uuid.UUID) (*domain.ProjectResponse, error)
	InvalidateProjectCache(ctx context.Context, projectID uuid.UUID) error

	// Delegation cache operations
	InvalidateDelegationCache(ctx context.Context, delegatorID, delegateID uuid.UUID) error

	// Session operations
	CacheSession(ctx context.Context, sessionID string, userID uuid.UUID, expiration time.Duration) error
	GetCachedSession(ctx context.Context, sessionID string) (uuid.UUID, error)
	InvalidateSession(ctx context.Context, sessionID string) error

	// Rate limiting
	CheckRateLimit(ctx context.Context, clientIP string, maxRequests int, window time.Duration) (bool, error)
	GetRateLimitCount(ctx context.Context, clientIP string) (int64, error)

	// Bulk operations
	InvalidateUserRelatedCache(ctx context.Context, userID uuid.UUID) error
	CacheMultipleUsers(ctx context.Context, users []*domain.User) error

	// Health and stats
	Health(ctx context.Context) error
	GetCacheStats(ctx context.Context) (map[string]int64, error)
}

// cacheServiceImpl provides caching functionality backed by Redis
type cacheServiceImpl struct {
	redisClient *repository.RedisClient
	breaker     *utils.CircuitBreaker
}

// NewCacheService creates a new cache service. Entity cache reads and writes
// go through a circuit breaker so a degraded Redis does not slow every request.
func NewCacheService(redisClient *repository.RedisClient) CacheService {
	return &cacheServiceImpl{
		redisClient: redisClient,
		breaker: utils.GetCircuitBreaker("redis-cache", utils.CircuitBreakerConfig{
			Name:             "redis-cache",
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			CallTimeout:      2 * time.Second,
		}),
	}
}

// User cache operations
const (
	userCachePrefix    = "user:"
	userCacheTTL       = 30 * time.Minute
	projectCachePrefix = "project:"
	projectCacheTTL    = 10 * time.Minute
)

// CacheUser caches user information
func (c *cacheServiceImpl) CacheUser(ctx context.Context, user *domain.User) error {
	key := userCachePrefix + user.ID.String()
	return c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.redisClient.Set(ctx, key, user.ToResponse(), userCacheTTL)
	})
}

// GetCachedUser retrieves a cached user
func (c *cacheServiceImpl) GetCachedUser(ctx context.Context, userID uuid.UUID) (*domain.UserResponse, error) {
	key := userCachePrefix + userID.String()
	var user domain.UserResponse
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.redisClient.Get(ctx, key, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// InvalidateUserCache removes user from cache
func (c *cacheServiceImpl) InvalidateUserCache(ctx context.Context, userID uuid.UUID) error {
	key := userCachePrefix + userID.String()
	return c.redisClient.Del(ctx, key)
}

// CacheProject caches a project with its members and tags
func (c *cacheServiceImpl) CacheProject(ctx context.Context, project *domain.Project) error {
	key := projectCachePrefix + project.ID.String()
	return c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.redisClient.Set(ctx, key, project.ToResponse(), projectCacheTTL)
	})
}

// GetCachedProject retrieves a cached project
func (c *cacheServiceImpl) GetCachedProject(ctx context.Context, projectID uuid.UUID) (*domain.ProjectResponse, error) {
	key := projectCachePrefix + projectID.String()
	var project domain.ProjectResponse
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.redisClient.Get(ctx, key, &project)
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// InvalidateProjectCache removes project from cache
func (c *cacheServiceImpl) InvalidateProjectCache(ctx context.Context, projectID uuid.UUID) error {
	key := projectCachePrefix + projectID.String()
	return c.redisClient.Del(ctx, key)
}

// Delegation cache operations
const (
	delegationListPrefix = "delegations:"
)

// InvalidateDelegationCache removes cached delegation lists for both parties
func (c *cacheServiceImpl) InvalidateDelegationCache(ctx context.Context, delegatorID, delegateID uuid.UUID) error {
	keysToDelete := []string{
		delegationListPrefix + "issued:" + delegatorID.String(),
		delegationListPrefix + "received:" + delegateID.String(),
	}
	return c.redisClient.Del(ctx, keysToDelete...)
}

// InvalidateUserRelatedCache removes all cache entries related to a user
func (c *cacheServiceImpl) InvalidateUserRelatedCache(ctx context.Context, userID uuid.UUID) error {
	userIDStr := userID.String()

	keysToDelete := []string{
		userCachePrefix + userIDStr,
		delegationListPrefix + "issued:" + userIDStr,
		delegationListPrefix + "received:" + userIDStr,
	}

	return c.redisClient.Del(ctx, keysToDelete...)
}

// Session cache operations
const (
	sessionCachePrefix = "session:"
)

// CacheSession caches session information
func (c *cacheServiceImpl) CacheSession(ctx context.Context, sessionID string, userID uuid.UUID, expiration time.Duration) error {
	key := sessionCachePrefix + sessionID
	sessionData := map[string]interface{}{
		"user_id":    userID,
		"created_at": time.Now(),
	}
	return c.redisClient.Set(ctx, key, sessionData, expiration)
}

// GetCachedSession retrieves session information
func (c *cacheServiceImpl) GetCachedSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	key := sessionCachePrefix + sessionID
	var sessionData map[string]interface{}
	err := c.redisClient.Get(ctx, key, &sessionData)
	if err != nil {
		return uuid.Nil, err
	}

	userIDStr, ok := sessionData["user_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid session data")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in session")
	}

	return userID, nil
}

// InvalidateSession removes session from cache
func (c *cacheServiceImpl) InvalidateSession(ctx context.Context, sessionID string) error {
	key := sessionCachePrefix + sessionID
	return c.redisClient.Del(ctx, key)
}

// Rate limiting operations
const (
	rateLimitPrefix = "ratelimit:"
)

// CheckRateLimit checks if a client has exceeded rate limits
func (c *cacheServiceImpl) CheckRateLimit(ctx context.Context, clientIP string, maxRequests int, window time.Duration) (bool, error) {
	key := rateLimitPrefix + clientIP

	// Get current request count
	count, err := c.redisClient.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	// Set expiration on first request
	if count == 1 {
		if err := c.redisClient.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	// Check if limit exceeded
	return count <= int64(maxRequests), nil
}

// GetRateLimitCount gets current request count for a client
func (c *cacheServiceImpl) GetRateLimitCount(ctx context.Context, clientIP string) (int64, error) {
	key := rateLimitPrefix + clientIP
	count, err := c.redisClient.GetClient().Get(ctx, key).Int64()
	if err != nil {
		if err.Error() == "redis: nil" {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Bulk operations
// CacheMultipleUsers caches multiple users
func (c *cacheServiceImpl) CacheMultipleUsers(ctx context.Context, users []*domain.User) error {
	for _, user := range users {
		if err := c.CacheUser(ctx, user); err != nil {
			utils.Error("failed to cache user", "user_id", user.ID.String(), "error", err.Error())
		}
	}
	return nil
}

// Health check
// Health checks Redis connectivity
func (c *cacheServiceImpl) Health(ctx context.Context) error {
	return c.redisClient.Ping(ctx)
}

// Statistics
// GetCacheStats returns basic cache statistics
func (c *cacheServiceImpl) GetCacheStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	// Count users in cache
	userKeys, err := c.redisClient.Keys(ctx, userCachePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to get user keys: %w", err)
	}
	stats["cached_users"] = int64(len(userKeys))

	// Count projects in cache
	projectKeys, err := c.redisClient.Keys(ctx, projectCachePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to get project keys: %w", err)
	}
	stats["cached_projects"] = int64(len(projectKeys))

	return stats, nil
}
