package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/bosstimeline/internal/domain/model"
)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func timeline(boss string, actions ...string) Timeline {
	tl := Timeline{Boss: boss, RunID: "run-" + boss}
	for _, name := range actions {
		tl.Actions = append(tl.Actions, model.AggregatedAction{AbilityOccurrence: model.AbilityOccurrence{Name: name}})
	}
	return tl
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithClock(stepClock()))
	defer store.Close()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}
	if _, err := store.Get(ctx, "ifrit"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, timeline("ifrit", "Eruption", "Hellfire")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(ctx, "ifrit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Actions) != 2 || got.RunID != "run-ifrit" || got.StoredAt.IsZero() {
		t.Errorf("unexpected timeline %+v", got)
	}

	got.Actions[0].Name = "mutated"
	again, _ := store.Get(ctx, "ifrit")
	if again.Actions[0].Name != "Eruption" {
		t.Error("stored actions must not alias the returned copy")
	}

	if err := store.Put(ctx, Timeline{}); !errors.Is(err, ErrInvalidBoss) {
		t.Errorf("expected ErrInvalidBoss, got %v", err)
	}
}

func TestTreapStore_RecentOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithClock(stepClock()))
	defer store.Close()

	for _, boss := range []string{"garuda", "titan", "ifrit"} {
		if err := store.Put(ctx, timeline(boss)); err != nil {
			t.Fatalf("put %s: %v", boss, err)
		}
	}
	// Re-storing moves a boss to the front without duplicating it.
	if err := store.Put(ctx, timeline("garuda", "Slipstream")); err != nil {
		t.Fatalf("put: %v", err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"garuda", "ifrit", "titan"}
	if len(recent) != len(want) {
		t.Fatalf("expected %d summaries, got %d", len(want), len(recent))
	}
	for i, boss := range want {
		if recent[i].Boss != boss || recent[i].Rank != i+1 {
			t.Errorf("position %d: expected %s rank %d, got %s rank %d", i, boss, i+1, recent[i].Boss, recent[i].Rank)
		}
	}
	if recent[0].Actions != 1 {
		t.Errorf("expected the replacement timeline, got %d actions", recent[0].Actions)
	}

	if bosses := store.Bosses(ctx); fmt.Sprint(bosses) != "[garuda ifrit titan]" {
		t.Errorf("unexpected bosses %v", bosses)
	}
	if count := store.Count(ctx); count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}

	if _, err := store.Recent(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestTreapStore_RecentBeyondCache(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithClock(stepClock()), WithRecentCacheSize(2))
	defer store.Close()

	for i := 0; i < 5; i++ {
		if err := store.Put(ctx, timeline(fmt.Sprintf("boss-%d", i))); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	cached, _ := store.Recent(ctx, 2)
	full, _ := store.Recent(ctx, 4)
	if len(cached) != 2 || len(full) != 4 {
		t.Fatalf("expected 2 and 4 summaries, got %d and %d", len(cached), len(full))
	}
	if full[0].Boss != "boss-4" || full[3].Boss != "boss-1" {
		t.Errorf("unexpected order %v", full)
	}
	if cached[1] != full[1] {
		t.Errorf("cache and tree disagree: %+v vs %+v", cached[1], full[1])
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				boss := fmt.Sprintf("boss-%d", (g*50+i)%20)
				if err := store.Put(ctx, timeline(boss, "Jab")); err != nil {
					t.Errorf("put: %v", err)
					return
				}
				_, _ = store.Get(ctx, boss)
				_, _ = store.Recent(ctx, 5)
				_ = store.Bosses(ctx)
			}
		}(g)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 20 {
		t.Errorf("expected 20 bosses, got %d", count)
	}
	recent, _ := store.Recent(ctx, 100)
	if len(recent) != 20 {
		t.Errorf("expected 20 summaries, got %d", len(recent))
	}
}
