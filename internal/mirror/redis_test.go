package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"vidrelay/internal/models"
)

func newTestMirror(t *testing.T) (*Redis, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWithClient(client, 30*time.Minute), mr, client
}

func TestRecordStoresSnapshotWithTTL(t *testing.T) {
	ctx := context.Background()
	m, mr, _ := newTestMirror(t)

	job := models.Job{ID: "job-1", Status: models.StatusProcessing, Message: "working", TraceID: "tr"}
	if err := m.Record(ctx, "sess-1", job); err != nil {
		t.Fatalf("record: %v", err)
	}

	if ttl := mr.TTL(m.TaskKey("job-1")); ttl != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %s", ttl)
	}
	got, err := m.Snapshot(ctx, "job-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Status != models.StatusProcessing || got.TraceID != "tr" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := m.Snapshot(ctx, "job-1"); err != redis.Nil {
		t.Fatalf("expected snapshot to expire, got %v", err)
	}
}

func TestRecordPublishesSessionUpdate(t *testing.T) {
	ctx := context.Background()
	m, _, client := newTestMirror(t)

	sub := client.Subscribe(ctx, m.Channel("sess-1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := m.Record(ctx, "sess-1", models.Job{ID: "job-2", Status: models.StatusQueued}); err != nil {
		t.Fatalf("record: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var update models.TaskUpdate
		if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if update.Type != "task_update" || update.TaskID != "job-2" || update.Data.Status != models.StatusQueued {
			t.Fatalf("unexpected update: %+v", update)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no update published")
	}
}
