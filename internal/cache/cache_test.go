package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestKey(t *testing.T) {
	base := Key("fp", "location=berlin", "m1")
	if base != Key("fp", "location=berlin", "m1") {
		t.Fatalf("key must be stable")
	}

	for _, other := range []string{
		Key("fp2", "location=berlin", "m1"),
		Key("fp", "location=paris", "m1"),
		Key("fp", "location=berlin", "m2"),
		Key("fplocation=berlin", "", "m1"),
	} {
		if other == base {
			t.Fatalf("expected distinct keys")
		}
	}
}

func TestMemoryTTL(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(time.Hour, 10, nil)
	m.now = c.Now
	ctx := context.Background()

	m.Set(ctx, "k", []byte(`{"a":1}`))

	c.now = c.now.Add(59 * time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok || string(got) != `{"a":1}` {
		t.Fatalf("expected fresh hit, got %q %v", got, ok)
	}

	c.now = c.now.Add(time.Minute)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatalf("entry exactly TTL old must not be returned")
	}
}

func TestMemoryStoresCopy(t *testing.T) {
	m := NewMemory(time.Hour, 10, nil)
	payload := []byte("abc")
	m.Set(context.Background(), "k", payload)
	payload[0] = 'x'

	got, _ := m.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Fatalf("expected stored payload to be isolated, got %q", got)
	}

	got[0] = 'y'
	again, _ := m.Get(context.Background(), "k")
	if string(again) != "abc" {
		t.Fatalf("expected returned payload to be a copy, got %q", again)
	}
}

func TestMemorySweepOnThreshold(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(time.Hour, 3, nil)
	m.now = c.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.Set(ctx, fmt.Sprintf("old-%d", i), []byte("x"))
	}

	c.now = c.now.Add(2 * time.Hour)
	m.Set(ctx, "new", []byte("y"))

	if m.Len() != 1 {
		t.Fatalf("expected expired entries to be swept, got %d entries", m.Len())
	}
	if _, ok := m.Get(ctx, "new"); !ok {
		t.Fatalf("expected fresh entry to survive the sweep")
	}
}

func TestMemoryNoSweepBelowThreshold(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(time.Hour, 5, nil)
	m.now = c.Now
	ctx := context.Background()

	m.Set(ctx, "old", []byte("x"))
	c.now = c.now.Add(2 * time.Hour)
	m.Set(ctx, "new", []byte("y"))

	if m.Len() != 2 {
		t.Fatalf("expected no sweep below threshold, got %d entries", m.Len())
	}
	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected explicit sweep to remove 1 entry, got %d", removed)
	}
}

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisRoundTrip(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	fake := &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
	r := NewRedis(fake, time.Hour, nil)
	r.now = c.Now
	ctx := context.Background()

	payload := []byte(`{"code":"OK","candidates":[]}`)
	r.Set(ctx, "k", payload)

	if fake.ttls[redisKeyPrefix+"k"] != time.Hour {
		t.Fatalf("expected server-side expiry, got %s", fake.ttls[redisKeyPrefix+"k"])
	}

	got, ok := r.Get(ctx, "k")
	if !ok || string(got) != string(payload) {
		t.Fatalf("expected byte-identical payload, got %q %v", got, ok)
	}

	c.now = c.now.Add(time.Hour)
	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatalf("expected stale entry to be ignored")
	}

	if _, ok := r.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestRedisErrorsAreMisses(t *testing.T) {
	fake := &fakeRedis{values: map[string]string{redisKeyPrefix + "bad": "not json"}, ttls: map[string]time.Duration{}}
	r := NewRedis(fake, time.Hour, nil)

	if _, ok := r.Get(context.Background(), "bad"); ok {
		t.Fatalf("expected corrupted entry to be a miss")
	}

	fake.getErr = errors.New("connection refused")
	if _, ok := r.Get(context.Background(), "bad"); ok {
		t.Fatalf("expected error to be a miss")
	}
}
