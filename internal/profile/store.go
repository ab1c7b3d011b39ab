package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DraftTTL bounds how long an untouched session draft survives
const DraftTTL = 30 * 24 * time.Hour

// DraftStore holds session drafts keyed by user
type DraftStore interface {
	Load(ctx context.Context, userID uuid.UUID) (Draft, bool, error)
	Save(ctx context.Context, userID uuid.UUID, d Draft) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

// RedisDraftStore keeps each draft in a Redis hash
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: DraftTTL}
}

func draftKey(userID uuid.UUID) string {
	return "proflinker:draft:" + userID.String()
}

func (s *RedisDraftStore) Load(ctx context.Context, userID uuid.UUID) (Draft, bool, error) {
	fields, err := s.client.HGetAll(ctx, draftKey(userID)).Result()
	if err != nil {
		return DefaultDraft(), false, fmt.Errorf("failed to load draft: %w", err)
	}
	if len(fields) == 0 {
		return DefaultDraft(), false, nil
	}
	return DraftFromFields(fields), true, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, userID uuid.UUID, d Draft) error {
	key := draftKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, d.Fields())
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, draftKey(userID)).Err()
}

// MemoryDraftStore keeps drafts in process, for deployments without Redis
type MemoryDraftStore struct {
	cache *cache.Cache
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{cache: cache.New(DraftTTL, time.Hour)}
}

func (s *MemoryDraftStore) Load(_ context.Context, userID uuid.UUID) (Draft, bool, error) {
	v, ok := s.cache.Get(userID.String())
	if !ok {
		return DefaultDraft(), false, nil
	}
	return v.(Draft), true, nil
}

func (s *MemoryDraftStore) Save(_ context.Context, userID uuid.UUID, d Draft) error {
	s.cache.Set(userID.String(), d, cache.DefaultExpiration)
	return nil
}

func (s *MemoryDraftStore) Clear(_ context.Context, userID uuid.UUID) error {
	s.cache.Delete(userID.String())
	return nil
}
