// Package drafts keeps autosaved, not yet committed minutes content in Redis.
// One hash per minutes document, one field per editing user.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("draft not found")

// Draft is an autosaved copy of minutes content. BaseRevision is the
// minutes revision the editor started from.
type Draft struct {
	MinutesID    string    `json:"minutes_id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	Content      string    `json:"content"`
	BaseRevision int       `json:"base_revision"`
	SavedAt      time.Time `json:"saved_at"`
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: "draft:", ttl: ttl}
}

func (s *RedisStore) key(minutesID string) string {
	return s.prefix + minutesID
}

// Save overwrites the user's draft and refreshes the document's TTL.
func (s *RedisStore) Save(ctx context.Context, draft Draft) error {
	if draft.SavedAt.IsZero() {
		draft.SavedAt = time.Now().UTC()
	}
	encoded, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	key := s.key(draft.MinutesID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, draft.UserID, encoded)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, minutesID, userID string) (Draft, error) {
	raw, err := s.client.HGet(ctx, s.key(minutesID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

// List returns every user's draft for the document, newest first.
func (s *RedisStore) List(ctx context.Context, minutesID string) ([]Draft, error) {
	values, err := s.client.HGetAll(ctx, s.key(minutesID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	out := make([]Draft, 0, len(values))
	for _, raw := range values {
		var draft Draft
		if err := json.Unmarshal([]byte(raw), &draft); err != nil {
			continue
		}
		out = append(out, draft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

func (s *RedisStore) Discard(ctx context.Context, minutesID, userID string) error {
	if err := s.client.HDel(ctx, s.key(minutesID), userID).Err(); err != nil {
		return fmt.Errorf("discard draft: %w", err)
	}
	return nil
}

// DiscardAll drops every draft of the document.
func (s *RedisStore) DiscardAll(ctx context.Context, minutesID string) error {
	if err := s.client.Del(ctx, s.key(minutesID)).Err(); err != nil {
		return fmt.Errorf("discard drafts: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
