package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresmejia3/depthbrush/internal/artifact"
)

const imageIndexKey = "image-index"

// RedisStore archives artifacts in Redis. Every key expires after ttl,
// so it behaves as a cache of recent sessions; a zero ttl keeps keys forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ artifact.Archive = (*RedisStore)(nil)

// NewRedisStore connects using a redis:// URL and checks the server answers.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func artifactsKey(imageKey string, category artifact.Category) string {
	return "artifacts:" + imageKey + ":" + string(category)
}

func imageKey(key string) string { return "images:" + key }

// Close releases the connection pool.
func (s *RedisStore) Close(ctx context.Context) {
	s.client.Close()
}

// RememberImage records the image metadata. An empty serverName keeps the stored one.
func (s *RedisStore) RememberImage(ctx context.Context, key, displayName, serverName string) error {
	fields := map[string]any{
		"display_name": displayName,
		"updated_at":   time.Now().Unix(),
	}
	if serverName != "" {
		fields["server_name"] = serverName
	}
	return s.touch(ctx, key, fields)
}

func (s *RedisStore) touch(ctx context.Context, key string, fields map[string]any) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, imageKey(key), fields)
	if s.ttl > 0 {
		pipe.Expire(ctx, imageKey(key), s.ttl)
	}
	pipe.SAdd(ctx, imageIndexKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

// SaveCategory overwrites the category list for the image.
func (s *RedisStore) SaveCategory(ctx context.Context, key string, category artifact.Category, arts []artifact.Artifact) error {
	data, err := json.Marshal(arts)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, artifactsKey(key, category), data, s.ttl).Err(); err != nil {
		return err
	}
	return s.touch(ctx, key, map[string]any{"updated_at": time.Now().Unix()})
}

// LoadCategory returns the archived list, or nothing when the key is missing or expired.
func (s *RedisStore) LoadCategory(ctx context.Context, key string, category artifact.Category) ([]artifact.Artifact, error) {
	data, err := s.client.Get(ctx, artifactsKey(key, category)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var arts []artifact.Artifact
	if err := json.Unmarshal(data, &arts); err != nil {
		return nil, fmt.Errorf("corrupt archive entry %s: %w", artifactsKey(key, category), err)
	}
	for i := range arts {
		arts[i].Category = category
	}
	return arts, nil
}

// ListImages returns the images still present, most recently updated first.
// Index entries whose metadata expired are pruned.
func (s *RedisStore) ListImages(ctx context.Context) ([]artifact.ImageSummary, error) {
	keys, err := s.client.SMembers(ctx, imageIndexKey).Result()
	if err != nil {
		return nil, err
	}

	var out []artifact.ImageSummary
	for _, key := range keys {
		fields, err := s.client.HGetAll(ctx, imageKey(key)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			s.client.SRem(ctx, imageIndexKey, key)
			continue
		}

		sum := artifact.ImageSummary{
			Key:         key,
			DisplayName: fields["display_name"],
			ServerName:  fields["server_name"],
		}
		if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
			sum.UpdatedAt = time.Unix(ts, 0)
		}
		for _, cat := range artifact.Categories {
			n, err := s.client.Exists(ctx, artifactsKey(key, cat)).Result()
			if err != nil {
				return nil, err
			}
			if n > 0 {
				sum.Categories = append(sum.Categories, cat)
			}
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Reset deletes every key this archive owns.
func (s *RedisStore) Reset(ctx context.Context) error {
	for _, pattern := range []string{"artifacts:*", "images:*"} {
		iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
		}
	}
	return s.client.Del(ctx, imageIndexKey).Err()
}
