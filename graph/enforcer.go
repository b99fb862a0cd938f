package graph

import (
	"context"
	"errors"
	"slices"

	"socialgraph/db"
	"socialgraph/models"
)

// AddToSet appends id to set unless it is already a member. The second result
// reports whether the set grew.
func AddToSet(set []string, id string) ([]string, bool) {
	if slices.Contains(set, id) {
		return set, false
	}
	return append(set, id), true
}

// fetch loads an entity and maps a missing id to NotFound.
func fetch(ctx context.Context, store db.Store, kind models.Kind, id string) (models.Entity, error) {
	e, err := store.Get(ctx, kind, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NotFound(kind, id)
	}
	return e, err
}

func requireUser(ctx context.Context, store db.Store, id string) (*models.User, error) {
	e, err := fetch(ctx, store, models.KindUser, id)
	if err != nil {
		return nil, err
	}
	return e.(*models.User), nil
}

func requirePost(ctx context.Context, store db.Store, id string) (*models.Post, error) {
	e, err := fetch(ctx, store, models.KindPost, id)
	if err != nil {
		return nil, err
	}
	return e.(*models.Post), nil
}

// requireUsers checks every id resolves to a user before anything is linked.
func requireUsers(ctx context.Context, store db.Store, ids ...string) error {
	for _, id := range ids {
		if _, err := requireUser(ctx, store, id); err != nil {
			return err
		}
	}
	return nil
}

// CheckFollowSymmetry holds when follower lists followee in following and
// followee lists follower in followers.
func CheckFollowSymmetry(follower, followee *models.User) error {
	out := slices.Contains(follower.Following, followee.ID)
	in := slices.Contains(followee.Followers, follower.ID)
	if out != in {
		return Consistency("follow %s -> %s is one-sided (following=%t, followers=%t)",
			follower.ID, followee.ID, out, in)
	}
	return nil
}

// CheckCommentOwnership holds when c points at p and p lists c exactly once.
func CheckCommentOwnership(c *models.Comment, p *models.Post) error {
	if c.Post != p.ID {
		return Consistency("comment %s belongs to post %s, not %s", c.ID, c.Post, p.ID)
	}
	n := 0
	for _, id := range p.Comments {
		if id == c.ID {
			n++
		}
	}
	if n != 1 {
		return Consistency("post %s lists comment %s %d times", p.ID, c.ID, n)
	}
	return nil
}
