// Package cache puts a Redis read-through cache in front of course lookups.
// Courses are not edited by this service, so a cached row stays valid until
// its TTL runs out.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PrefixCourse namespaces course keys.
const PrefixCourse = "course:"

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// Config holds Redis connection configuration.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CourseKey returns the cache key for a course id.
func CourseKey(id int64) string {
	return PrefixCourse + strconv.FormatInt(id, 10)
}

// CourseCache wraps a Store and serves FindCourseByID from Redis when it can.
// All other calls pass through to the wrapped Store. Redis failures are
// logged and fall back to the Store.
type CourseCache struct {
	service.Store
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCourseCache wraps store with a course cache.
func NewCourseCache(store service.Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CourseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseCache{Store: store, client: client, ttl: ttl, logger: logger}
}

// FindCourseByID returns the cached course, loading and caching it on a miss.
// Missing courses are not cached.
func (c *CourseCache) FindCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	key := CourseKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var course model.Course
		if jsonErr := json.Unmarshal(data, &course); jsonErr == nil {
			return &course, nil
		}
		c.logger.Warn("Discarding unreadable cached course", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Course cache read failed", zap.String("key", key), zap.Error(err))
	}

	course, err := c.Store.FindCourseByID(ctx, id)
	if err != nil || course == nil {
		return course, err
	}

	if data, err := json.Marshal(course); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Course cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return course, nil
}

// Atomic runs fn in the wrapped Store's transaction with the cache still in front.
func (c *CourseCache) Atomic(ctx context.Context, fn func(service.Store) error) error {
	return c.Store.Atomic(ctx, func(tx service.Store) error {
		return fn(&CourseCache{Store: tx, client: c.client, ttl: c.ttl, logger: c.logger})
	})
}
