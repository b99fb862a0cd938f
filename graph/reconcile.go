package graph

import (
	"cmp"
	"context"
	"log"
	"slices"
	"time"

	"socialgraph/db"
	"socialgraph/models"
)

// Report counts the repairs made by one reconciliation pass.
type Report struct {
	OrphanComments   int `json:"orphan_comments"`
	MissingFollowers int `json:"missing_followers"`
	MissingFollowing int `json:"missing_following"`
	Dangling         int `json:"dangling"`
}

func (r Report) Repaired() int {
	return r.OrphanComments + r.MissingFollowers + r.MissingFollowing
}

// Reconciler finishes multi-entity mutations that were interrupted halfway.
// Links are never removed, so the repair is always to add the missing side.
type Reconciler struct {
	store db.Store
}

func NewReconciler(store db.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Run performs one full pass over comments and follow sets.
func (rc *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report
	if err := rc.attachOrphans(ctx, &rep); err != nil {
		return rep, err
	}
	if err := rc.mirrorFollows(ctx, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// attachOrphans adds every comment its post does not list yet. The post's
// comments are then put back in creation order, so a late repair lands where
// the original write would have.
func (rc *Reconciler) attachOrphans(ctx context.Context, rep *Report) error {
	comments, err := rc.store.Find(ctx, models.KindComment, nil)
	if err != nil {
		return err
	}
	// Find returns comments oldest first
	rank := make(map[string]int, len(comments))
	for i, e := range comments {
		rank[e.EntityID()] = i
	}
	posts := map[string]*models.Post{}
	for _, e := range comments {
		c := e.(*models.Comment)
		p, ok := posts[c.Post]
		if !ok {
			p, err = requirePost(ctx, rc.store, c.Post)
			if IsNotFound(err) {
				log.Printf("[Reconcile] comment %s points at missing post %s", c.ID, c.Post)
				rep.Dangling++
				continue
			}
			if err != nil {
				return err
			}
			posts[c.Post] = p
		}
		if slices.Contains(p.Comments, c.ID) {
			continue
		}
		updated, err := rc.store.Update(ctx, models.KindPost, p.ID, func(e models.Entity) (bool, error) {
			post := e.(*models.Post)
			var added bool
			post.Comments, added = AddToSet(post.Comments, c.ID)
			if added {
				sortByRank(post.Comments, rank)
			}
			return added, nil
		})
		if err != nil {
			return err
		}
		posts[c.Post] = updated.(*models.Post)
		rep.OrphanComments++
		log.Printf("[Reconcile] attached comment %s to post %s", c.ID, p.ID)
	}
	return nil
}

// sortByRank orders ids by rank. Ids without a rank keep their relative order
// after the ranked ones.
func sortByRank(ids []string, rank map[string]int) {
	pos := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(rank)
	}
	slices.SortStableFunc(ids, func(a, b string) int { return cmp.Compare(pos(a), pos(b)) })
}

// mirrorFollows restores the symmetry invariant for every follow pair.
func (rc *Reconciler) mirrorFollows(ctx context.Context, rep *Report) error {
	all, err := rc.store.Find(ctx, models.KindUser, nil)
	if err != nil {
		return err
	}
	users := make(map[string]*models.User, len(all))
	for _, e := range all {
		users[e.EntityID()] = e.(*models.User)
	}

	add := func(userID string, field func(*models.User) *[]string, id string) error {
		updated, err := rc.store.Update(ctx, models.KindUser, userID, func(e models.Entity) (bool, error) {
			set := field(e.(*models.User))
			var added bool
			*set, added = AddToSet(*set, id)
			return added, nil
		})
		if err != nil {
			return err
		}
		users[userID] = updated.(*models.User)
		return nil
	}
	followers := func(u *models.User) *[]string { return &u.Followers }
	following := func(u *models.User) *[]string { return &u.Following }

	for _, e := range all {
		id := e.EntityID()
		u := users[id]
		for _, target := range u.Following {
			t, ok := users[target]
			if !ok {
				rep.Dangling++
				continue
			}
			if !slices.Contains(t.Followers, id) {
				if err := add(target, followers, id); err != nil {
					return err
				}
				rep.MissingFollowers++
				log.Printf("[Reconcile] added follower %s to %s", id, target)
			}
		}
		u = users[id]
		for _, source := range u.Followers {
			s, ok := users[source]
			if !ok {
				rep.Dangling++
				continue
			}
			if !slices.Contains(s.Following, id) {
				if err := add(source, following, id); err != nil {
					return err
				}
				rep.MissingFollowing++
				log.Printf("[Reconcile] added following %s to %s", id, source)
			}
		}
	}
	return nil
}

// Start runs a pass immediately and then every interval until ctx is done.
func (rc *Reconciler) Start(ctx context.Context, interval time.Duration) {
	rc.runLogged(ctx)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.runLogged(ctx)
		}
	}
}

func (rc *Reconciler) runLogged(ctx context.Context) {
	rep, err := rc.Run(ctx)
	if err != nil {
		log.Printf("[Reconcile] pass failed: %v", err)
		return
	}
	if rep.Repaired() > 0 || rep.Dangling > 0 {
		log.Printf("[Reconcile] repaired=%d dangling=%d", rep.Repaired(), rep.Dangling)
	}
}
