package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/pkg/cache"
)

// CacheProfileStore scopes profile entries under one run ID in a shared cache.
// Purge drops every entry of the run.
type CacheProfileStore struct {
	c     cache.Service
	runID string
	ttl   time.Duration
}

func NewCacheProfileStore(c cache.Service, runID string, ttl time.Duration) domrepo.ProfileStore {
	return &CacheProfileStore{c: c, runID: runID, ttl: ttl}
}

func (s *CacheProfileStore) prefix() string {
	return cache.Key("profile", s.runID) + ":"
}

func (s *CacheProfileStore) GetProfile(ctx context.Context, key string) (*models.VolumeProfile, bool, error) {
	var p models.VolumeProfile
	err := s.c.Get(ctx, s.prefix()+key, &p)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get profile: %w", err)
	}
	return &p, true, nil
}

func (s *CacheProfileStore) PutProfile(ctx context.Context, key string, p *models.VolumeProfile) error {
	if err := s.c.Set(ctx, s.prefix()+key, p, s.ttl); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

func (s *CacheProfileStore) Purge(ctx context.Context) error {
	return s.c.DeleteByPrefix(ctx, s.prefix())
}
