package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"socialgraph/db"
	"socialgraph/models"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Emit(_ context.Context, ev models.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// flakyStore fails selected updates before delegating to the wrapped store.
type flakyStore struct {
	db.Store

	mu sync.Mutex
	// failUpdates makes the next n Update calls on kind fail with err.
	failKind    models.Kind
	failUpdates int
	failErr     error

	gets map[string]int
}

func (f *flakyStore) Update(ctx context.Context, kind models.Kind, id string, fn db.MutateFunc) (models.Entity, error) {
	f.mu.Lock()
	if kind == f.failKind && f.failUpdates > 0 {
		f.failUpdates--
		err := f.failErr
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.Store.Update(ctx, kind, id, fn)
}

func (f *flakyStore) Get(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	f.mu.Lock()
	if f.gets == nil {
		f.gets = map[string]int{}
	}
	f.gets[string(kind)+"/"+id]++
	f.mu.Unlock()
	return f.Store.Get(ctx, kind, id)
}

func (f *flakyStore) getCount(kind models.Kind, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[string(kind)+"/"+id]
}

func (f *flakyStore) resetCounts() {
	f.mu.Lock()
	f.gets = nil
	f.mu.Unlock()
}

func (f *flakyStore) failNext(kind models.Kind, n int, err error) {
	f.mu.Lock()
	f.failKind, f.failUpdates, f.failErr = kind, n, err
	f.mu.Unlock()
}

var errBroken = errors.New("disk on fire")

type fixture struct {
	store  *flakyStore
	svc    *Service
	events *recorder
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{Store: db.NewMemoryStore()}
	events := &recorder{}
	svc := NewService(store, events, Options{Timeout: time.Second, Retries: 3, Backoff: time.Millisecond})

	// strictly increasing creation times keep ordering deterministic
	var mu sync.Mutex
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{store: store, svc: svc, events: events, ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.svc.AddUser(f.ctx, name, name+"@x.com")
	require.NoError(t, err)
	return u
}

func (f *fixture) post(t *testing.T, title, authorID string) *models.Post {
	t.Helper()
	p, err := f.svc.AddPost(f.ctx, NewPost{Title: title, Content: "body of " + title, AuthorID: authorID})
	require.NoError(t, err)
	return p
}

func (f *fixture) getUser(t *testing.T, id string) *models.User {
	t.Helper()
	e, err := f.store.Store.Get(f.ctx, models.KindUser, id)
	require.NoError(t, err)
	return e.(*models.User)
}

func (f *fixture) getPost(t *testing.T, id string) *models.Post {
	t.Helper()
	e, err := f.store.Store.Get(f.ctx, models.KindPost, id)
	require.NoError(t, err)
	return e.(*models.Post)
}
