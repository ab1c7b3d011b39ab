package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/proflinker/api/internal/models"
	"github.com/redis/go-redis/v9"
)

const selectionTTL = 24 * time.Hour

// ErrInvalidItem is returned for an item without a candidate of its kind
var ErrInvalidItem = errors.New("selection item has no candidate")

// Item is one selected candidate, keyed by its generation-time id
type Item struct {
	Kind       models.CandidateKind `json:"kind"`
	University *models.University   `json:"university,omitempty"`
	Professor  *models.Professor    `json:"professor,omitempty"`
	SelectedAt time.Time            `json:"selected_at"`
}

// ID returns the candidate id
func (i Item) ID() string {
	switch {
	case i.Kind == models.KindUniversities && i.University != nil:
		return i.University.ID
	case i.Kind == models.KindProfessors && i.Professor != nil:
		return i.Professor.ID
	default:
		return ""
	}
}

// Name returns the candidate display name
func (i Item) Name() string {
	switch {
	case i.University != nil:
		return i.University.Name
	case i.Professor != nil:
		return i.Professor.Name
	default:
		return ""
	}
}

// Validate checks the item carries a candidate matching its kind
func (i Item) Validate() error {
	if !i.Kind.Valid() || i.ID() == "" || i.Name() == "" {
		return ErrInvalidItem
	}
	return nil
}

// SelectionStore holds the pending, not yet persisted, selection of each user
type SelectionStore interface {
	Toggle(ctx context.Context, userID uuid.UUID, item Item) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]Item, error)
	Remove(ctx context.Context, userID uuid.UUID, ids ...string) error
}

// RedisSelectionStore keeps each selection in a Redis hash of id to item JSON
type RedisSelectionStore struct {
	client *redis.Client
}

func NewRedisSelectionStore(client *redis.Client) *RedisSelectionStore {
	return &RedisSelectionStore{client: client}
}

func selectionKey(userID uuid.UUID) string {
	return "proflinker:selection:" + userID.String()
}

func (s *RedisSelectionStore) Toggle(ctx context.Context, userID uuid.UUID, item Item) (bool, error) {
	key := selectionKey(userID)

	removed, err := s.client.HDel(ctx, key, item.ID()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to toggle selection: %w", err)
	}
	if removed > 0 {
		return false, nil
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return false, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, item.ID(), payload)
		pipe.Expire(ctx, key, selectionTTL)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle selection: %w", err)
	}
	return true, nil
}

func (s *RedisSelectionStore) List(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	values, err := s.client.HGetAll(ctx, selectionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}

	items := make([]Item, 0, len(values))
	for _, v := range values {
		var item Item
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	sortItems(items)
	return items, nil
}

func (s *RedisSelectionStore) Remove(ctx context.Context, userID uuid.UUID, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.HDel(ctx, selectionKey(userID), ids...).Err()
}

// MemorySelectionStore keeps selections in process
type MemorySelectionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewMemorySelectionStore() *MemorySelectionStore {
	return &MemorySelectionStore{cache: cache.New(selectionTTL, time.Hour)}
}

func (s *MemorySelectionStore) load(userID uuid.UUID) map[string]Item {
	if v, ok := s.cache.Get(userID.String()); ok {
		return v.(map[string]Item)
	}
	return map[string]Item{}
}

func (s *MemorySelectionStore) Toggle(_ context.Context, userID uuid.UUID, item Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(userID)
	id := item.ID()
	_, exists := items[id]
	if exists {
		delete(items, id)
	} else {
		items[id] = item
	}
	s.cache.Set(userID.String(), items, cache.DefaultExpiration)
	return !exists, nil
}

func (s *MemorySelectionStore) List(_ context.Context, userID uuid.UUID) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0)
	for _, item := range s.load(userID) {
		items = append(items, item)
	}
	sortItems(items)
	return items, nil
}

func (s *MemorySelectionStore) Remove(_ context.Context, userID uuid.UUID, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(userID)
	for _, id := range ids {
		delete(items, id)
	}
	s.cache.Set(userID.String(), items, cache.DefaultExpiration)
	return nil
}

func sortItems(items []Item) {
	sort.Slice(items, func(a, b int) bool {
		if !items[a].SelectedAt.Equal(items[b].SelectedAt) {
			return items[a].SelectedAt.Before(items[b].SelectedAt)
		}
		return items[a].ID() < items[b].ID()
	})
}
