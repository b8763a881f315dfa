package grading

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domain-trust-grader/lookup"
)

func sampleReport(domain string, at time.Time, grade int) GradeReport {
	checks := okChecks(daysAgo(100), false, 3)
	return GradeReport{
		Domain:     domain,
		ComputedAt: at,
		Grade:      grade,
		Label:      Label(grade),
		Checks:     checks,
		Breakdown:  Score(checks, at),
		Reason:     "No issues found",
	}
}

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	_, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	first := sampleReport("example.com", fixedNow, 100)
	require.NoError(t, c.Put(ctx, "example.com", first))

	entry, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, entry.Report)
	assert.Equal(t, fixedNow.Add(time.Minute), entry.ExpiresHint)

	// Put replaces, even with an older report.
	older := sampleReport("example.com", fixedNow.Add(-time.Hour), 40)
	require.NoError(t, c.Put(ctx, "example.com", older))

	entry, ok, err = c.Get(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40, entry.Report.Grade)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheConcurrentWriters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(0)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Put(ctx, "example.com", sampleReport("example.com", fixedNow.Add(time.Duration(i)*time.Second), 100))
			_, _, _ = c.Get(ctx, "example.com")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
}

func TestCacheEntryFresh(t *testing.T) {
	t.Parallel()

	entry := CacheEntry{Report: GradeReport{ComputedAt: fixedNow}}

	assert.True(t, entry.Fresh(fixedNow, DefaultFreshness))
	assert.True(t, entry.Fresh(fixedNow.Add(DefaultFreshness), DefaultFreshness))
	assert.False(t, entry.Fresh(fixedNow.Add(DefaultFreshness+time.Nanosecond), DefaultFreshness))
}

func TestRedisCacheUnreachable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "", 0)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "example.com")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "redis get")

	err = c.Put(ctx, "example.com", sampleReport("example.com", fixedNow, 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set")
}

func TestOpenRedisInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := OpenRedis(context.Background(), "http://not-redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

// TestRedisCache runs against a real server when REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := OpenRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	prefix := "test_" + uuid.NewString() + "_"
	c := NewRedisCache(client, prefix, time.Minute)
	t.Cleanup(func() { client.Del(ctx, prefix+"example.com") })

	_, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	report := sampleReport("example.com", fixedNow, 100)
	report.Location = &CheckResult[lookup.Geo]{Status: StatusFailed, Kind: "network", Reason: "down"}
	require.NoError(t, c.Put(ctx, "example.com", report))

	entry, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.Grade, entry.Report.Grade)
	assert.True(t, report.ComputedAt.Equal(entry.Report.ComputedAt))
	assert.Equal(t, report.Checks.ExternalOrigins, entry.Report.Checks.ExternalOrigins)
	assert.True(t, fixedNow.Add(time.Minute).Equal(entry.ExpiresHint))

	ttl, err := client.TTL(ctx, prefix+"example.com").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	require.NoError(t, c.Put(ctx, "example.com", sampleReport("example.com", fixedNow.Add(time.Minute), 55)))
	entry, _, err = c.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 55, entry.Report.Grade)
}
