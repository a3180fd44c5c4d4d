package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

// ViewCache keeps the most recent view-model per patient in Redis.
type ViewCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewViewCache(client *redis.Client, prefix string, ttl time.Duration) *ViewCache {
	return &ViewCache{client: client, prefix: prefix, ttl: ttl}
}

// CacheKey names the entry for a patient selection; "" is the default view.
func CacheKey(prefix, patientID string) string {
	if patientID == "" {
		patientID = "_default"
	}
	return prefix + "view:" + patientID
}

func (c *ViewCache) Get(ctx context.Context, patientID string) (*models.ViewModel, bool, error) {
	raw, err := c.client.Get(ctx, CacheKey(c.prefix, patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vm models.ViewModel
	if err := json.Unmarshal(raw, &vm); err != nil {
		return nil, false, fmt.Errorf("decoding cached view: %w", err)
	}
	return &vm, true, nil
}

func (c *ViewCache) Set(ctx context.Context, patientID string, vm *models.ViewModel) error {
	payload, err := json.Marshal(vm)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKey(c.prefix, patientID), payload, c.ttl).Err()
}

// Invalidate drops every cached view under the prefix.
func (c *ViewCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"view:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
