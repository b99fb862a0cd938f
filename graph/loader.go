package graph

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"socialgraph/db"
	"socialgraph/models"
)

// loadParallelism caps concurrent store reads issued by LoadMany.
const loadParallelism = 8

type entityKey struct {
	kind models.Kind
	id   string
}

// Loader memoizes entity reads for the lifetime of one resolution pass, so
// each (kind, id) is fetched from the store at most once no matter how many
// times it is referenced. It is safe for concurrent use.
//
// Entities handed out by a Loader are shared and must not be modified.
type Loader struct {
	store db.Store
	group singleflight.Group

	mu       sync.Mutex
	entities map[entityKey]models.Entity // nil value: id does not resolve
	postsBy  map[string][]*models.Post
}

func NewLoader(store db.Store) *Loader {
	return &Loader{
		store:    store,
		entities: make(map[entityKey]models.Entity),
		postsBy:  make(map[string][]*models.Post),
	}
}

func (l *Loader) cached(k entityKey) (models.Entity, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entities[k]
	return e, ok
}

// Prime records an entity the caller already holds, such as the result of a
// mutation, so it is not fetched again.
func (l *Loader) Prime(e models.Entity) {
	l.mu.Lock()
	l.entities[entityKey{e.EntityKind(), e.EntityID()}] = e
	l.mu.Unlock()
}

// Load returns the entity, or nil with a nil error when the id does not
// resolve.
func (l *Loader) Load(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	k := entityKey{kind, id}
	if e, ok := l.cached(k); ok {
		return e, nil
	}
	v, err, _ := l.group.Do(string(kind)+"/"+id, func() (interface{}, error) {
		if e, ok := l.cached(k); ok {
			return e, nil
		}
		e, err := l.store.Get(ctx, kind, id)
		if errors.Is(err, db.ErrNotFound) {
			e, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.entities[k] = e
		l.mu.Unlock()
		return e, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(models.Entity), nil
}

// LoadMany loads ids concurrently, keeping their order. Unresolved ids yield
// nil entries.
func (l *Loader) LoadMany(ctx context.Context, kind models.Kind, ids []string) ([]models.Entity, error) {
	out := make([]models.Entity, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadParallelism)
	for i, id := range ids {
		g.Go(func() error {
			e, err := l.Load(gctx, kind, id)
			out[i] = e
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PostsBy scans the posts authored by userID, oldest first.
func (l *Loader) PostsBy(ctx context.Context, userID string) ([]*models.Post, error) {
	l.mu.Lock()
	posts, ok := l.postsBy[userID]
	l.mu.Unlock()
	if ok {
		return posts, nil
	}

	v, err, _ := l.group.Do("posts-by/"+userID, func() (interface{}, error) {
		found, err := l.store.Find(ctx, models.KindPost, db.Eq("author", userID))
		if err != nil {
			return nil, err
		}
		posts := make([]*models.Post, 0, len(found))
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, e := range found {
			k := entityKey{models.KindPost, e.EntityID()}
			// keep an already loaded copy so every reference sees one value
			if prev, ok := l.entities[k]; ok && prev != nil {
				e = prev
			} else {
				l.entities[k] = e
			}
			posts = append(posts, e.(*models.Post))
		}
		l.postsBy[userID] = posts
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Post), nil
}

type loaderKey struct{}

// WithLoader attaches l to ctx so every resolver in one request shares it.
func WithLoader(ctx context.Context, l *Loader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

// LoaderFrom returns the Loader attached to ctx, or nil.
func LoaderFrom(ctx context.Context) *Loader {
	l, _ := ctx.Value(loaderKey{}).(*Loader)
	return l
}
