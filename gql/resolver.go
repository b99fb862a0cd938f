package gql

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"socialgraph/db"
	"socialgraph/graph"
	"socialgraph/middleware"
	"socialgraph/models"
)

// Resolver is the root resolver for the GraphQL schema.
type Resolver struct {
	svc   *graph.Service
	store db.Store
}

// loader returns the request's Loader, shared by every query field.
func (r *Resolver) loader(ctx context.Context) *graph.Loader {
	if l := graph.LoaderFrom(ctx); l != nil {
		return l
	}
	return graph.NewLoader(r.store)
}

// resultLoader starts a Loader for one mutation result. Mutations in a single
// operation run one after another, so each result must not see entities
// cached before it was applied.
func (r *Resolver) resultLoader(e models.Entity) *graph.Loader {
	l := graph.NewLoader(r.store)
	l.Prime(e)
	return l
}

func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*userResolver, error) {
	l := r.loader(ctx)
	e, err := l.Load(ctx, models.KindUser, string(args.ID))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, graph.NotFound(models.KindUser, string(args.ID))
	}
	return &userResolver{l: l, u: e.(*models.User)}, nil
}

func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	all, err := r.store.Find(ctx, models.KindUser, nil)
	if err != nil {
		return nil, err
	}
	l := r.loader(ctx)
	out := make([]*userResolver, len(all))
	for i, e := range all {
		l.Prime(e)
		out[i] = &userResolver{l: l, u: e.(*models.User)}
	}
	return out, nil
}

func (r *Resolver) Post(ctx context.Context, args struct{ ID graphql.ID }) (*postResolver, error) {
	l := r.loader(ctx)
	e, err := l.Load(ctx, models.KindPost, string(args.ID))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, graph.NotFound(models.KindPost, string(args.ID))
	}
	return &postResolver{l: l, p: e.(*models.Post)}, nil
}

func (r *Resolver) Posts(ctx context.Context) ([]*postResolver, error) {
	all, err := r.store.Find(ctx, models.KindPost, nil)
	if err != nil {
		return nil, err
	}
	l := r.loader(ctx)
	out := make([]*postResolver, len(all))
	for i, e := range all {
		l.Prime(e)
		out[i] = &postResolver{l: l, p: e.(*models.Post)}
	}
	return out, nil
}

func (r *Resolver) AddUser(ctx context.Context, args struct{ Name, Email string }) (*userResolver, error) {
	u, err := r.svc.AddUser(ctx, args.Name, args.Email)
	if err != nil {
		return nil, err
	}
	return &userResolver{l: r.resultLoader(u), u: u}, nil
}

func (r *Resolver) AddPost(ctx context.Context, args struct {
	Title    string
	Content  string
	ImageURL *string
	AuthorID graphql.ID
}) (*postResolver, error) {
	if err := middleware.CheckActor(ctx, string(args.AuthorID)); err != nil {
		return nil, err
	}
	p, err := r.svc.AddPost(ctx, graph.NewPost{
		Title: args.Title, Content: args.Content, ImageURL: args.ImageURL, AuthorID: string(args.AuthorID),
	})
	if err != nil {
		return nil, err
	}
	return &postResolver{l: r.resultLoader(p), p: p}, nil
}

func (r *Resolver) LikePost(ctx context.Context, args struct{ PostID, UserID graphql.ID }) (*postResolver, error) {
	if err := middleware.CheckActor(ctx, string(args.UserID)); err != nil {
		return nil, err
	}
	p, err := r.svc.LikePost(ctx, string(args.PostID), string(args.UserID))
	if err != nil {
		return nil, err
	}
	return &postResolver{l: r.resultLoader(p), p: p}, nil
}

func (r *Resolver) AddComment(ctx context.Context, args struct {
	PostID   graphql.ID
	Content  string
	AuthorID graphql.ID
}) (*commentResolver, error) {
	if err := middleware.CheckActor(ctx, string(args.AuthorID)); err != nil {
		return nil, err
	}
	c, err := r.svc.AddComment(ctx, string(args.PostID), args.Content, string(args.AuthorID))
	if err != nil {
		return nil, err
	}
	return &commentResolver{l: r.resultLoader(c), c: c}, nil
}

func (r *Resolver) FollowUser(ctx context.Context, args struct{ FollowerID, FollowingID graphql.ID }) (*userResolver, error) {
	if err := middleware.CheckActor(ctx, string(args.FollowerID)); err != nil {
		return nil, err
	}
	u, err := r.svc.FollowUser(ctx, string(args.FollowerID), string(args.FollowingID))
	if err != nil {
		return nil, err
	}
	return &userResolver{l: r.resultLoader(u), u: u}, nil
}
