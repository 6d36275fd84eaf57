package redis

import (
	"context"
	"testing"
	"time"

	"moral-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestProgressStoreRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewProgressStore(newClient(mr), time.Hour)

	if _, err := store.GetProgress(ctx, "u1"); err != domain.ErrProgressNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	saved := domain.Progress{UserID: "u1", CurrentIndex: 2, Answers: map[string]int{"q1": 4, "q2": 1}}
	if err := store.SaveProgress(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentIndex != 2 || got.Answers["q1"] != 4 || got.Answers["q2"] != 1 {
		t.Fatalf("unexpected progress %+v", got)
	}
	if ttl := mr.TTL("quiz:progress:u1"); ttl != time.Hour {
		t.Fatalf("expected one hour ttl, got %s", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.GetProgress(ctx, "u1"); err != domain.ErrProgressNotFound {
		t.Fatalf("expected expired progress, got %v", err)
	}
}

func TestProgressStoreDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewProgressStore(newClient(mr), time.Hour)
	if err := store.SaveProgress(ctx, domain.Progress{UserID: "u2", Answers: map[string]int{"q1": 3}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteProgress(ctx, "u2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:progress:u2") {
		t.Fatalf("expected key removed")
	}
	if err := store.DeleteProgress(ctx, "u2"); err != nil {
		t.Fatalf("deleting missing progress should succeed: %v", err)
	}
}
