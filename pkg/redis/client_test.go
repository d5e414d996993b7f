package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	values    map[string]string
	setCalls  int
	published map[string][]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}, published: map[string][]string{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.setCalls++
	m.values[key] = toString(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	value, ok := m.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := m.values[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	m.values[key] = toString(value)
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	deleted := int64(0)
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			deleted++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(deleted)
	return cmd
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, payload any) *redis.IntCmd {
	m.published[channel] = append(m.published[channel], toString(payload))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func TestKeyHelpersAreNamespaced(t *testing.T) {
	client := &Client{store: newMockCmdable()}

	if got := client.ProgressChannel("batch-1"); got != "vs:progress:batch-1" {
		t.Fatalf("unexpected progress channel %q", got)
	}
	if got := client.SnapshotKey("batch-1"); got != "vs:snapshot:batch-1" {
		t.Fatalf("unexpected snapshot key %q", got)
	}
	if got := client.LockKey("cron-worker"); got != "vs:lock:cron-worker" {
		t.Fatalf("unexpected lock key %q", got)
	}
}

func TestSetGetDelRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Set(ctx, "vs:snapshot:b", `{"currentVials":3}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := client.Get(ctx, "vs:snapshot:b")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != `{"currentVials":3}` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := client.Del(ctx, "vs:snapshot:b"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "vs:snapshot:b"); err == nil {
		t.Fatalf("expected miss after delete")
	}
}

func TestSetNXGrantsOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := client.SetNX(ctx, "vs:lock:cron", "holder-a", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if !first {
		t.Fatalf("expected first acquire to succeed")
	}

	second, err := client.SetNX(ctx, "vs:lock:cron", "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	if second {
		t.Fatalf("expected second acquire to be refused")
	}
}

func TestPublishUsesChannelVerbatim(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	channel := client.ProgressChannel("batch-2")
	if err := client.Publish(ctx, channel, []byte(`{"type":"progress.updated"}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	frames := mock.published[channel]
	if len(frames) != 1 || frames[0] != `{"type":"progress.updated"}` {
		t.Fatalf("unexpected frames %v", frames)
	}
}
