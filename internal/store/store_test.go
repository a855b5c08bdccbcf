package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"

	"breakupguide/internal/database"
	"breakupguide/internal/models"
	"breakupguide/internal/repository"
)

type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Get(context.Context, string, string) ([]byte, error) {
	return nil, errBackendDown
}
func (failingBackend) Set(context.Context, string, string, []byte) error { return errBackendDown }
func (failingBackend) Delete(context.Context, string, string) error      { return errBackendDown }

func newSQLBackend(t *testing.T) Backend {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewSQLBackend(repository.NewStateRepository(db))
}

func newRedisBackend(t *testing.T, ttl time.Duration) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisBackend(rdb, ttl), mr
}

func backends(t *testing.T) map[string]Backend {
	redis, _ := newRedisBackend(t, 0)
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sql":    newSQLBackend(t),
		"redis":  redis,
	}
}

var sampleItems = []models.Item{
	{ID: "b", Title: "B", Price: 999, VideoURL: "https://youtu.be/bbbbbbbbbbb"},
	{ID: "a", Title: "A", Price: 1299, VideoURL: "https://youtu.be/aaaaaaaaaaa"},
	{ID: "b", Title: "B", Price: 999, VideoURL: "https://youtu.be/bbbbbbbbbbb"},
}

func TestBundleRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(backend, "visitor-1", nil)

			if err := s.SaveBundle(ctx, sampleItems); err != nil {
				t.Fatalf("SaveBundle() error = %v", err)
			}
			got, err := s.LoadBundle(ctx)
			if err != nil {
				t.Fatalf("LoadBundle() error = %v", err)
			}
			if !reflect.DeepEqual(got, sampleItems) {
				t.Errorf("LoadBundle() = %+v, want %+v", got, sampleItems)
			}
		})
	}
}

func TestClearBundleIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(backend, "visitor-1", nil)
			if err := s.SaveBundle(ctx, sampleItems); err != nil {
				t.Fatalf("SaveBundle() error = %v", err)
			}
			if err := s.SaveBundleOrigin(ctx, "chapter1"); err != nil {
				t.Fatalf("SaveBundleOrigin() error = %v", err)
			}

			for i := 0; i < 2; i++ {
				if err := s.ClearBundle(ctx); err != nil {
					t.Fatalf("ClearBundle() call %d error = %v", i+1, err)
				}
				got, err := s.LoadBundle(ctx)
				if err != nil {
					t.Fatalf("LoadBundle() error = %v", err)
				}
				if len(got) != 0 {
					t.Errorf("LoadBundle() after clear = %+v, want empty", got)
				}
			}
			if origin, _ := s.LoadBundleOrigin(ctx); origin != "" {
				t.Errorf("bundle origin survived clear: %q", origin)
			}
		})
	}
}

func TestProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(backend, "visitor-1", nil)

			empty, err := s.LoadProgress(ctx)
			if err != nil || empty == nil || len(empty) != 0 {
				t.Fatalf("LoadProgress() on fresh state = %v, %v; want empty map", empty, err)
			}

			want := models.ProgressMap{"chapter1": 2, "chapter2": 3}
			if err := s.SaveProgress(ctx, want); err != nil {
				t.Fatalf("SaveProgress() error = %v", err)
			}
			if err := s.SaveProgress(ctx, models.ProgressMap{"chapter1": 1}); err != nil {
				t.Fatalf("SaveProgress() error = %v", err)
			}
			got, _ := s.LoadProgress(ctx)
			if !reflect.DeepEqual(got, models.ProgressMap{"chapter1": 1}) {
				t.Errorf("SaveProgress() should overwrite, got %v", got)
			}
		})
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := New(backend, "a", nil)
			b := New(backend, "b", nil)

			if err := a.SaveBundle(ctx, sampleItems); err != nil {
				t.Fatalf("SaveBundle() error = %v", err)
			}
			got, _ := b.LoadBundle(ctx)
			if len(got) != 0 {
				t.Errorf("namespace b sees namespace a's bundle: %+v", got)
			}
		})
	}
}

func TestCorruptValuesFailSoft(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	for _, key := range []string{KeyProgress, KeyBundle, KeySettings, KeyLibrary} {
		backend.Set(ctx, "v", key, []byte("{not json"))
	}

	var buf bytes.Buffer
	s := New(backend, "v", log.New(&buf))

	progress, err := s.LoadProgress(ctx)
	if err != nil || len(progress) != 0 {
		t.Errorf("LoadProgress() = %v, %v; want empty, nil", progress, err)
	}
	bundle, err := s.LoadBundle(ctx)
	if err != nil || len(bundle) != 0 {
		t.Errorf("LoadBundle() = %v, %v; want empty, nil", bundle, err)
	}
	settings, err := s.LoadSettings(ctx)
	if err != nil || settings != models.DefaultSettings() {
		t.Errorf("LoadSettings() = %+v, %v; want defaults", settings, err)
	}
	library, err := s.LoadLibrary(ctx)
	if err != nil || len(library) != 0 {
		t.Errorf("LoadLibrary() = %v, %v; want empty, nil", library, err)
	}

	if !strings.Contains(buf.String(), "corrupt") {
		t.Errorf("expected a warning about corrupt state, got %q", buf.String())
	}
}

func TestBackendFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	s := New(failingBackend{}, "v", nil)

	if _, err := s.LoadProgress(ctx); !errors.Is(err, errBackendDown) {
		t.Errorf("LoadProgress() error = %v", err)
	}
	if err := s.SaveProgress(ctx, models.ProgressMap{"c": 1}); !errors.Is(err, errBackendDown) {
		t.Errorf("SaveProgress() error = %v", err)
	}
	if err := s.ClearBundle(ctx); !errors.Is(err, errBackendDown) {
		t.Errorf("ClearBundle() error = %v", err)
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := New(backend, "v", nil)

	got, err := s.LoadSettings(ctx)
	if err != nil || got != models.DefaultSettings() {
		t.Fatalf("LoadSettings() on fresh state = %+v, %v", got, err)
	}

	backend.Set(ctx, "v", KeySettings, []byte(`{"primaryColor":"green","extra":true}`))
	got, _ = s.LoadSettings(ctx)
	want := models.Settings{SoundEnabled: true, PrimaryColor: models.ColorGreen}
	if got != want {
		t.Errorf("LoadSettings() = %+v, want %+v", got, want)
	}

	if err := s.SaveSettings(ctx, models.Settings{SoundEnabled: false, PrimaryColor: "pink"}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	got, _ = s.LoadSettings(ctx)
	if got.SoundEnabled || got.PrimaryColor != models.ColorBlue {
		t.Errorf("SaveSettings() with invalid color stored %+v", got)
	}
}

func TestLocalLibrary(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), "v", nil)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	first := models.NewLibraryEntry("1", sampleItems[0], "chapter1", "o1", at)
	second := models.NewLibraryEntry("2", sampleItems[1], models.ChapterRefSingle, "o2", at.Add(time.Hour))
	if err := s.AppendLibrary(ctx, first); err != nil {
		t.Fatalf("AppendLibrary() error = %v", err)
	}
	if err := s.AppendLibrary(ctx, second); err != nil {
		t.Fatalf("AppendLibrary() error = %v", err)
	}

	got, err := s.LoadLibrary(ctx)
	if err != nil {
		t.Fatalf("LoadLibrary() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" || !got[1].PurchasedAt.Equal(second.PurchasedAt) {
		t.Errorf("LoadLibrary() = %+v", got)
	}
}

func TestRedisKey(t *testing.T) {
	if got := RedisKey("abc", KeyBundle); got != "bg:abc:bundle" {
		t.Errorf("RedisKey() = %q", got)
	}
}

func TestRedisBackendExpiry(t *testing.T) {
	ctx := context.Background()
	backend, mr := newRedisBackend(t, time.Hour)

	if err := backend.Set(ctx, "v", KeyBundle, []byte("[]")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL(RedisKey("v", KeyBundle)); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := backend.Get(ctx, "v", KeyBundle); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
	}
	if err := backend.Delete(ctx, "v", KeyBundle); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}

	mr.Close()
	if _, err := backend.Get(ctx, "v", KeyBundle); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get() with server down error = %v, want a connection error", err)
	}
}
