package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veriqr/veriqr/internal/entity"
)

// TemplateCache caches each company's active template. Embedded exports
// read the active template on every request; activations are rare admin
// actions, so a short TTL plus explicit invalidation keeps reads cheap.
type TemplateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTemplateCache(client *redis.Client, ttl time.Duration) *TemplateCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TemplateCache{client: client, ttl: ttl}
}

func templateKey(companyID string) string {
	return "active_template:" + companyID
}

// Get returns the cached active template, or (nil, nil) on a miss. Cache
// errors degrade to a miss; the database remains the source of truth.
func (c *TemplateCache) Get(ctx context.Context, companyID string) (*entity.DesignTemplate, error) {
	data, err := c.client.Get(ctx, templateKey(companyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("template cache get: %w", err)
	}

	var t entity.DesignTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("template cache decode: %w", err)
	}
	return &t, nil
}

func (c *TemplateCache) Set(ctx context.Context, t *entity.DesignTemplate) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("template cache encode: %w", err)
	}
	return c.client.Set(ctx, templateKey(t.CompanyID), data, c.ttl).Err()
}

// Invalidate drops the cached entry after an activation commits.
func (c *TemplateCache) Invalidate(ctx context.Context, companyID string) error {
	return c.client.Del(ctx, templateKey(companyID)).Err()
}
