package notification

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/cache"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/kv"
)

var (
	patient1    = &auth.Actor{ID: "p1", DisplayName: "Pat One", Role: auth.RolePatient}
	patient2    = &auth.Actor{ID: "p2", DisplayName: "Pat Two", Role: auth.RolePatient}
	researcher1 = &auth.Actor{ID: "r1", DisplayName: "Dr. One", Role: auth.RoleResearcher}
	researcher2 = &auth.Actor{ID: "r2", DisplayName: "Dr. Two", Role: auth.RoleResearcher}
)

func newTestStore(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.OpenInMemory(zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestRouter(t *testing.T, opts Options) (*Router, *kv.Store) {
	t.Helper()
	store := newTestStore(t)
	return NewRouter(NewRepoPebble(store), store, zerolog.Nop(), opts), store
}

func mustList(t *testing.T, r *Router, actor *auth.Actor) []*Notification {
	t.Helper()
	items, _, err := r.List(context.Background(), actor)
	if err != nil {
		t.Fatalf("List(%s): %v", actor.ID, err)
	}
	return items
}

func mustUnread(t *testing.T, r *Router, actor *auth.Actor) int {
	t.Helper()
	n, err := r.UnreadCount(context.Background(), actor)
	if err != nil {
		t.Fatalf("UnreadCount(%s): %v", actor.ID, err)
	}
	return n
}

// mapCache is an in-memory cache.Cache that ignores TTLs.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	gets int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]string)} }

func (m *mapCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *mapCache) Close() error { return nil }
