package graph

import (
	"context"

	"socialgraph/db"
	"socialgraph/models"
)

// DefaultMaxDepth bounds how many relations a single path may traverse.
const DefaultMaxDepth = 8

// Node is one resolved entity: its scalar fields plus every selected relation,
// expanded into nested Nodes. An unresolved reference is a nil Node.
type Node map[string]any

// Resolver expands entity references into nested Nodes.
type Resolver struct {
	store    db.Store
	maxDepth int
}

func NewResolver(store db.Store, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{store: store, maxDepth: maxDepth}
}

func (r *Resolver) MaxDepth() int { return r.maxDepth }

// Selection parses paths for kind, falling back to DefaultSelection when no
// path is given.
func (r *Resolver) Selection(kind models.Kind, paths []string) (Selection, error) {
	sel, err := ParseSelection(kind, paths, r.maxDepth)
	if err != nil {
		return nil, err
	}
	if len(sel) == 0 {
		return DefaultSelection(kind), nil
	}
	return sel, nil
}

// loader reuses the request's Loader when one is attached to ctx, otherwise
// the pass gets its own.
func (r *Resolver) loader(ctx context.Context) *Loader {
	if l := LoaderFrom(ctx); l != nil {
		return l
	}
	return NewLoader(r.store)
}

// Resolve expands the entity kind/id. A root id that does not resolve fails
// the whole pass with NotFound.
func (r *Resolver) Resolve(ctx context.Context, kind models.Kind, id string, sel Selection) (Node, error) {
	l := r.loader(ctx)
	e, err := l.Load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NotFound(kind, id)
	}
	return r.node(ctx, l, e, sel, 0)
}

// ResolveEntity expands an entity the caller already holds.
func (r *Resolver) ResolveEntity(ctx context.Context, e models.Entity, sel Selection) (Node, error) {
	l := r.loader(ctx)
	l.Prime(e)
	return r.node(ctx, l, e, sel, 0)
}

// ResolveAll expands every entity of kind, oldest first.
func (r *Resolver) ResolveAll(ctx context.Context, kind models.Kind, sel Selection) ([]Node, error) {
	all, err := r.store.Find(ctx, kind, nil)
	if err != nil {
		return nil, err
	}
	l := r.loader(ctx)
	out := make([]Node, 0, len(all))
	for _, e := range all {
		l.Prime(e)
		n, err := r.node(ctx, l, e, sel, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *Resolver) node(ctx context.Context, l *Loader, e models.Entity, sel Selection, depth int) (Node, error) {
	if depth > r.maxDepth {
		return nil, Validation("selection deeper than %d", r.maxDepth)
	}
	n := scalars(e)
	kind := e.EntityKind()
	for name, sub := range sel {
		rel, ok := relations[kind][name]
		if !ok {
			return nil, Validation("%s has no relation %q", kind, name)
		}

		switch {
		case rel.Derived:
			posts, err := l.PostsBy(ctx, e.EntityID())
			if err != nil {
				return nil, err
			}
			list := make([]Node, 0, len(posts))
			for _, p := range posts {
				child, err := r.node(ctx, l, p, sub, depth+1)
				if err != nil {
					return nil, err
				}
				list = append(list, child)
			}
			n[name] = list

		case rel.Many:
			targets, err := l.LoadMany(ctx, rel.Target, refIDs(e, name))
			if err != nil {
				return nil, err
			}
			list := make([]Node, len(targets))
			for i, t := range targets {
				if t == nil {
					continue
				}
				if list[i], err = r.node(ctx, l, t, sub, depth+1); err != nil {
					return nil, err
				}
			}
			n[name] = list

		default:
			var child Node
			t, err := l.Load(ctx, rel.Target, refID(e, name))
			if err != nil {
				return nil, err
			}
			if t != nil {
				if child, err = r.node(ctx, l, t, sub, depth+1); err != nil {
					return nil, err
				}
			}
			n[name] = child
		}
	}
	return n, nil
}

func scalars(e models.Entity) Node {
	switch v := e.(type) {
	case *models.User:
		return Node{"id": v.ID, "name": v.Name, "email": v.Email}
	case *models.Post:
		var image any
		if v.ImageURL != nil {
			image = *v.ImageURL
		}
		return Node{"id": v.ID, "title": v.Title, "content": v.Content, "imageUrl": image}
	case *models.Comment:
		return Node{"id": v.ID, "content": v.Content}
	}
	return Node{"id": e.EntityID()}
}

func refIDs(e models.Entity, relation string) []string {
	switch v := e.(type) {
	case *models.User:
		switch relation {
		case "followers":
			return v.Followers
		case "following":
			return v.Following
		}
	case *models.Post:
		switch relation {
		case "likes":
			return v.Likes
		case "comments":
			return v.Comments
		}
	}
	return nil
}

func refID(e models.Entity, relation string) string {
	switch v := e.(type) {
	case *models.Post:
		if relation == "author" {
			return v.Author
		}
	case *models.Comment:
		switch relation {
		case "author":
			return v.Author
		case "post":
			return v.Post
		}
	}
	return ""
}
