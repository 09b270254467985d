package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// TestRedisStoreIntegration runs the archive against a real Redis container.
func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	requireDocker(t, ctx)

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine",
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	url, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := NewRedisStore(ctx, url, time.Hour)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	defer s.Close(ctx)

	exerciseArchive(t, ctx, s)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "http://not-redis", time.Minute); err == nil {
		t.Fatal("Expected an error for a non-redis URL")
	}
}
