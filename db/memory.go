package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"socialgraph/models"
)

// MemoryStore keeps entities in process memory. Every read and write works on
// copies, so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[models.Kind]map[string]models.Entity
	locks sync.Map // kind/id -> *sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	data := make(map[models.Kind]map[string]models.Entity, len(models.Kinds))
	for _, k := range models.Kinds {
		data[k] = make(map[string]models.Entity)
	}
	return &MemoryStore{data: data}
}

func (s *MemoryStore) entityLock(kind models.Kind, id string) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(string(kind)+"/"+id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (s *MemoryStore) Get(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.data[kind]
	if !ok {
		return nil, errors.Errorf("db: unknown kind %q", kind)
	}
	e, ok := coll[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, e models.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.data[e.EntityKind()]
	if !ok {
		return errors.Errorf("db: unknown kind %q", e.EntityKind())
	}
	if _, exists := coll[e.EntityID()]; exists {
		return nil
	}
	coll[e.EntityID()] = e.Clone()
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, kind models.Kind, f Filter) ([]models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	coll, ok := s.data[kind]
	if !ok {
		s.mu.RUnlock()
		return nil, errors.Errorf("db: unknown kind %q", kind)
	}
	var out []models.Entity
	for _, e := range coll {
		if matches(e, f) {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := createdAt(out[i]), createdAt(out[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].EntityID() < out[j].EntityID()
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, kind models.Kind, id string, fn MutateFunc) (models.Entity, error) {
	lock := s.entityLock(kind, id)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(e)
	if err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}
	e.SetRevision(e.Revision() + 1)

	s.mu.Lock()
	s.data[kind][id] = e.Clone()
	s.mu.Unlock()
	return e, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

func matches(e models.Entity, f Filter) bool {
	for field, want := range f {
		got, ok := e.Attr(field)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func createdAt(e models.Entity) time.Time {
	switch v := e.(type) {
	case *models.User:
		return v.CreatedAt
	case *models.Post:
		return v.CreatedAt
	case *models.Comment:
		return v.CreatedAt
	}
	return time.Time{}
}
