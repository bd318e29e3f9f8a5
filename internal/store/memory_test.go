package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"vidrelay/internal/models"
)

func TestJobStoreLifecycle(t *testing.T) {
	s := NewJobStore()
	created := s.Create("job-1", "preparing")
	if created.Status != models.StatusPreparing || created.Progress != 0 {
		t.Fatalf("unexpected initial job: %+v", created)
	}

	if _, err := s.Transition("job-1", models.Transition{Status: models.StatusQueued, Message: "queued"}); err != nil {
		t.Fatalf("queued: %v", err)
	}
	if err := s.SetTraceID("job-1", "trace-9"); err != nil {
		t.Fatalf("trace: %v", err)
	}
	done, err := s.Transition("job-1", models.Transition{Status: models.StatusSuccess, Message: "ok", VideoURL: "https://x/v.mp4"})
	if err != nil {
		t.Fatalf("success: %v", err)
	}
	if done.TraceID != "trace-9" || done.VideoURL == nil || *done.VideoURL != "https://x/v.mp4" {
		t.Fatalf("unexpected final job: %+v", done)
	}

	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != done.Status || got.Message != done.Message || !got.UpdatedAt.Equal(done.UpdatedAt) {
		t.Fatalf("get returned %+v, want %+v", got, done)
	}
}

func TestJobStoreRejectsRegression(t *testing.T) {
	s := NewJobStore()
	s.Create("job-1", "")
	if _, err := s.Transition("job-1", models.Transition{Status: models.StatusProcessing}); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if _, err := s.Transition("job-1", models.Transition{Status: models.StatusQueued}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := s.Transition("job-1", models.Transition{Status: models.StatusFail}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := s.Transition("job-1", models.Transition{Status: models.StatusSuccess}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected terminal state to be sticky, got %v", err)
	}
	got, _ := s.Get("job-1")
	if got.Status != models.StatusFail {
		t.Fatalf("expected fail to stick, got %s", got.Status)
	}
}

func TestJobStoreNotFound(t *testing.T) {
	s := NewJobStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Transition("nope", models.Transition{Status: models.StatusQueued}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetTraceID("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEvictCreatedBefore(t *testing.T) {
	now := time.Now()
	s := NewJobStore()
	s.now = func() time.Time { return now.Add(-2 * time.Hour) }
	s.Create("old", "")
	s.now = func() time.Time { return now }
	s.Create("new", "")

	if n := s.EvictCreatedBefore(now.Add(-time.Hour)); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := s.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old job should be evicted")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 job left, got %d", s.Len())
	}
}

func TestJobStoreConcurrentReaders(t *testing.T) {
	s := NewJobStore()
	s.Create("job-1", "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Get("job-1")
			}
		}()
	}
	for j := 0; j < 50; j++ {
		_, _ = s.Transition("job-1", models.Transition{Status: models.StatusQueued})
	}
	wg.Wait()
}
