package library

import (
	"context"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"breakupguide/internal/database"
	"breakupguide/internal/models"
	"breakupguide/internal/store"
)

func entry(id, title, chapter, order string, at time.Time) models.LibraryEntry {
	return models.LibraryEntry{ID: id, BookTitle: title, ChapterID: chapter, OrderID: order, PurchasedAt: at, VideoURL: "https://youtu.be/abcdef123"}
}

func sampleEntries() []models.LibraryEntry {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return []models.LibraryEntry{
		entry("1", "Letting Go", "chapter1", "o1", base),
		entry("2", "Starting Over", "chapter2", "o2", base.Add(2*time.Hour)),
		entry("3", "Healing Heart", "chapter1", "o3", base.Add(time.Hour)),
		entry("4", "The Single Life", models.ChapterRefSingle, "o4", base.Add(3*time.Hour)),
	}
}

func ids(entries []models.LibraryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		filter string
		want   []string
	}{
		{"all", "", FilterAll, []string{"1", "2", "3", "4"}},
		{"empty filter", "", "", []string{"1", "2", "3", "4"}},
		{"recent", "", FilterRecent, []string{"4", "2", "3", "1"}},
		{"chapter", "", "chapter1", []string{"1", "3"}},
		{"single", "", models.ChapterRefSingle, []string{"4"}},
		{"query case insensitive", "HEAL", FilterAll, []string{"3"}},
		{"query and chapter", "over", "chapter1", []string{}},
		{"query trimmed", "  go  ", FilterAll, []string{"1"}},
		{"unknown chapter", "", "chapter9", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := sampleEntries()
			original := sampleEntries()

			got := Filter(entries, tt.query, tt.filter)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Filter(%q, %q) = %v, want %v", tt.query, tt.filter, ids(got), tt.want)
			}
			if !reflect.DeepEqual(entries, original) {
				t.Error("Filter modified its input")
			}
		})
	}
}

func TestCategories(t *testing.T) {
	got := Categories(sampleEntries())
	want := []string{"chapter1", "chapter2", models.ChapterRefSingle}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"sql":   func(t *testing.T) Store { return NewSQLStore(setupDB(t)) },
		"local": func(t *testing.T) Store { return NewLocalStore(store.NewMemoryBackend(), nil) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			entries := sampleEntries()

			if err := s.Append(ctx, "user:1", entries[:2]); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			// same order again is ignored
			if err := s.Append(ctx, "user:1", entries[:1]); err != nil {
				t.Fatalf("Append() repeat error = %v", err)
			}
			if err := s.Append(ctx, "user:2", entries[2:3]); err != nil {
				t.Fatalf("Append() other owner error = %v", err)
			}

			got, err := s.List(ctx, "user:1")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("List() returned %d entries, want 2", len(got))
			}
			if got[0].BookTitle != "Letting Go" || !got[0].PurchasedAt.Equal(entries[0].PurchasedAt) {
				t.Errorf("first entry = %+v", got[0])
			}

			has, err := s.HasOrder(ctx, "user:1", "o2")
			if err != nil || !has {
				t.Errorf("HasOrder(o2) = %v, %v; want true", has, err)
			}
			has, _ = s.HasOrder(ctx, "user:1", "o3")
			if has {
				t.Error("HasOrder(o3) = true for another owner's order")
			}
		})
	}
}

func TestServiceRecordPublishes(t *testing.T) {
	bus := NewMemoryBus(nil)
	svc := NewService(NewLocalStore(store.NewMemoryBackend(), nil), bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop, err := svc.Subscribe(ctx, "user:1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer stop()

	if err := svc.Record(ctx, "user:1", sampleEntries()[:1]); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	select {
	case ev := <-events:
		if ev.Owner != "user:1" || len(ev.Entries) != 1 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	e, err := svc.Entry(ctx, "user:1", "1")
	if err != nil || e.BookTitle != "Letting Go" {
		t.Errorf("Entry() = %+v, %v", e, err)
	}
	if _, err := svc.Entry(ctx, "user:1", "missing"); err != ErrEntryNotFound {
		t.Errorf("Entry(missing) error = %v, want ErrEntryNotFound", err)
	}
}

func TestMemoryBusIsolatesOwners(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx := context.Background()

	mine, stopMine, _ := bus.Subscribe(ctx, "user:1")
	theirs, stopTheirs, _ := bus.Subscribe(ctx, "user:2")
	defer stopTheirs()

	bus.Publish(ctx, Event{Owner: "user:1"})

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("subscriber missed its own event")
	}
	select {
	case ev := <-theirs:
		t.Fatalf("other owner received %+v", ev)
	default:
	}

	stopMine()
	stopMine()
	if _, ok := <-mine; ok {
		t.Error("channel still open after cancel")
	}
	if n := bus.Subscribers("user:1"); n != 0 {
		t.Errorf("Subscribers() = %d after cancel, want 0", n)
	}
}

func TestMemoryBusContextCancel(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, _ := bus.Subscribe(ctx, "user:1")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestMemoryBusCancelReleasesWatcher(t *testing.T) {
	bus := NewMemoryBus(nil)
	before := runtime.NumGoroutine()

	// The context never ends, so only cancel can stop each watcher
	for i := 0; i < 50; i++ {
		_, stop, err := bus.Subscribe(context.Background(), "user:1")
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		stop()
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before+5 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines = %d, started with %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRedisBusFansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() goredis.UniversalClient {
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return rdb
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewRedisBus(newClient(), "library-events", nil)
	listener := NewRedisBus(newClient(), "library-events", nil)
	if err := listener.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mine, stopMine, _ := listener.Subscribe(ctx, "user:1")
	defer stopMine()
	theirs, stopTheirs, _ := listener.Subscribe(ctx, "user:2")
	defer stopTheirs()

	// Garbage on the channel is skipped
	if err := newClient().Publish(ctx, "library-events", "not json").Err(); err != nil {
		t.Fatalf("raw publish error = %v", err)
	}
	want := sampleEntries()[:2]
	if err := publisher.Publish(ctx, Event{Owner: "user:1", Entries: want}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case ev := <-mine:
		if ev.Owner != "user:1" || !reflect.DeepEqual(ids(ev.Entries), ids(want)) {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered through redis")
	}
	select {
	case ev := <-theirs:
		t.Fatalf("other owner received %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
