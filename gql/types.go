package gql

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"socialgraph/graph"
	"socialgraph/models"
)

// Field resolvers carry the Loader their parent was resolved with, so one
// result tree reads one consistent set of entities.

type userResolver struct {
	l *graph.Loader
	u *models.User
}

func (r *userResolver) ID() graphql.ID { return graphql.ID(r.u.ID) }
func (r *userResolver) Name() string   { return r.u.Name }
func (r *userResolver) Email() string  { return r.u.Email }

func (r *userResolver) Posts(ctx context.Context) ([]*postResolver, error) {
	posts, err := r.l.PostsBy(ctx, r.u.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*postResolver, len(posts))
	for i, p := range posts {
		out[i] = &postResolver{l: r.l, p: p}
	}
	return out, nil
}

func (r *userResolver) Followers(ctx context.Context) ([]*userResolver, error) {
	return usersByID(ctx, r.l, r.u.Followers)
}

func (r *userResolver) Following(ctx context.Context) ([]*userResolver, error) {
	return usersByID(ctx, r.l, r.u.Following)
}

type postResolver struct {
	l *graph.Loader
	p *models.Post
}

func (r *postResolver) ID() graphql.ID    { return graphql.ID(r.p.ID) }
func (r *postResolver) Title() string     { return r.p.Title }
func (r *postResolver) Content() string   { return r.p.Content }
func (r *postResolver) ImageURL() *string { return r.p.ImageURL }

func (r *postResolver) Author(ctx context.Context) (*userResolver, error) {
	return userByID(ctx, r.l, r.p.Author)
}

func (r *postResolver) Likes(ctx context.Context) ([]*userResolver, error) {
	return usersByID(ctx, r.l, r.p.Likes)
}

func (r *postResolver) Comments(ctx context.Context) ([]*commentResolver, error) {
	ents, err := r.l.LoadMany(ctx, models.KindComment, r.p.Comments)
	if err != nil {
		return nil, err
	}
	out := make([]*commentResolver, len(ents))
	for i, e := range ents {
		if e != nil {
			out[i] = &commentResolver{l: r.l, c: e.(*models.Comment)}
		}
	}
	return out, nil
}

type commentResolver struct {
	l *graph.Loader
	c *models.Comment
}

func (r *commentResolver) ID() graphql.ID  { return graphql.ID(r.c.ID) }
func (r *commentResolver) Content() string { return r.c.Content }

func (r *commentResolver) Author(ctx context.Context) (*userResolver, error) {
	return userByID(ctx, r.l, r.c.Author)
}

func (r *commentResolver) Post(ctx context.Context) (*postResolver, error) {
	e, err := r.l.Load(ctx, models.KindPost, r.c.Post)
	if err != nil || e == nil {
		return nil, err
	}
	return &postResolver{l: r.l, p: e.(*models.Post)}, nil
}

// userByID resolves a nested reference; a dangling id resolves to null.
func userByID(ctx context.Context, l *graph.Loader, id string) (*userResolver, error) {
	e, err := l.Load(ctx, models.KindUser, id)
	if err != nil || e == nil {
		return nil, err
	}
	return &userResolver{l: l, u: e.(*models.User)}, nil
}

func usersByID(ctx context.Context, l *graph.Loader, ids []string) ([]*userResolver, error) {
	ents, err := l.LoadMany(ctx, models.KindUser, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*userResolver, len(ents))
	for i, e := range ents {
		if e != nil {
			out[i] = &userResolver{l: l, u: e.(*models.User)}
		}
	}
	return out, nil
}
