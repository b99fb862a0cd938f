package graph

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"socialgraph/db"
	"socialgraph/models"
)

// Emitter receives an event for every mutation that changed state.
type Emitter interface {
	Emit(ctx context.Context, ev models.Event)
}

// Options bound how long and how often a mutation is attempted.
type Options struct {
	// Timeout applies to each attempt, not to the whole operation.
	Timeout time.Duration
	// Retries is the number of extra attempts after a retryable failure.
	Retries uint64
	// Backoff is the first delay between attempts; it grows exponentially.
	Backoff time.Duration
}

func DefaultOptions() Options {
	return Options{Timeout: 5 * time.Second, Retries: 4, Backoff: 50 * time.Millisecond}
}

// Service applies mutations to the store.
//
// Single-entity writes go through Store.Update, so each one is atomic. The
// two-entity operations (AddComment, FollowUser) are sequences of idempotent
// writes; a failed attempt is retried as a whole until it converges.
type Service struct {
	store  db.Store
	events Emitter
	opts   Options

	now   func() time.Time
	newID func() string
}

func NewService(store db.Store, events Emitter, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	return &Service{
		store:  store,
		events: events,
		opts:   opts,
		// stores keep milliseconds; ties fall back to the id, and version 7
		// ids increase with creation time
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// NewPost carries the arguments of AddPost.
type NewPost struct {
	Title    string
	Content  string
	ImageURL *string
	AuthorID string
}

func (s *Service) AddUser(ctx context.Context, name, email string) (*models.User, error) {
	name, err := required("name", name)
	if err != nil {
		return nil, err
	}
	email, err = required("email", email)
	if err != nil {
		return nil, err
	}
	if err := validEmail(email); err != nil {
		return nil, err
	}

	u := &models.User{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Followers: []string{},
		Following: []string{},
		CreatedAt: s.now(),
	}
	err = s.attempt(ctx, "addUser", func(ctx context.Context) error {
		return s.store.Put(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.Event{Type: models.EventUserAdded, Actor: u.ID, TargetKind: models.KindUser, Target: u.ID})
	return u, nil
}

func (s *Service) AddPost(ctx context.Context, in NewPost) (*models.Post, error) {
	title, err := required("title", in.Title)
	if err != nil {
		return nil, err
	}
	content, err := required("content", in.Content)
	if err != nil {
		return nil, err
	}
	authorID, err := required("authorId", in.AuthorID)
	if err != nil {
		return nil, err
	}
	image, err := normalizeImageURL(in.ImageURL)
	if err != nil {
		return nil, err
	}

	p := &models.Post{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		ImageURL:  image,
		Author:    authorID,
		Likes:     []string{},
		Comments:  []string{},
		CreatedAt: s.now(),
	}
	err = s.attempt(ctx, "addPost", func(ctx context.Context) error {
		if _, err := requireUser(ctx, s.store, authorID); err != nil {
			return err
		}
		return s.store.Put(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.Event{Type: models.EventPostAdded, Actor: authorID, TargetKind: models.KindPost, Target: p.ID})
	return p, nil
}

// LikePost adds userID to the post's likes. Liking twice is a no-op.
func (s *Service) LikePost(ctx context.Context, postID, userID string) (*models.Post, error) {
	postID, err := required("postId", postID)
	if err != nil {
		return nil, err
	}
	userID, err = required("userId", userID)
	if err != nil {
		return nil, err
	}

	var (
		post  *models.Post
		liked bool
	)
	err = s.attempt(ctx, "likePost", func(ctx context.Context) error {
		if _, err := requireUser(ctx, s.store, userID); err != nil {
			return err
		}
		e, err := s.update(ctx, models.KindPost, postID, func(e models.Entity) (bool, error) {
			p := e.(*models.Post)
			p.Likes, liked = AddToSet(p.Likes, userID)
			return liked, nil
		})
		if err != nil {
			return err
		}
		post = e.(*models.Post)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if liked {
		s.emit(ctx, models.Event{Type: models.EventPostLiked, Actor: userID, TargetKind: models.KindPost, Target: postID})
	}
	return post, nil
}

// AddComment creates a comment and appends it to the post's comments. The
// comment id is fixed before the first attempt, so a retry after a partial
// failure re-uses it and never leaves a second, orphaned comment behind.
func (s *Service) AddComment(ctx context.Context, postID, content, authorID string) (*models.Comment, error) {
	postID, err := required("postId", postID)
	if err != nil {
		return nil, err
	}
	content, err = required("content", content)
	if err != nil {
		return nil, err
	}
	authorID, err = required("authorId", authorID)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{
		ID:        s.newID(),
		Content:   content,
		Author:    authorID,
		Post:      postID,
		CreatedAt: s.now(),
	}
	err = s.attempt(ctx, "addComment", func(ctx context.Context) error {
		if _, err := requireUser(ctx, s.store, authorID); err != nil {
			return err
		}
		if _, err := requirePost(ctx, s.store, postID); err != nil {
			return err
		}
		if err := s.store.Put(ctx, c); err != nil {
			return err
		}
		e, err := s.update(ctx, models.KindPost, postID, func(e models.Entity) (bool, error) {
			p := e.(*models.Post)
			var added bool
			p.Comments, added = AddToSet(p.Comments, c.ID)
			return added, nil
		})
		if err != nil {
			return err
		}
		return CheckCommentOwnership(c, e.(*models.Post))
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.Event{Type: models.EventCommentAdded, Actor: authorID, TargetKind: models.KindPost, Target: postID, ItemID: c.ID})
	return c, nil
}

// FollowUser links followerID -> followingID on both users and returns the
// follower. Repeating it converges to the same state.
func (s *Service) FollowUser(ctx context.Context, followerID, followingID string) (*models.User, error) {
	followerID, err := required("followerId", followerID)
	if err != nil {
		return nil, err
	}
	followingID, err = required("followingId", followingID)
	if err != nil {
		return nil, err
	}
	if followerID == followingID {
		return nil, Validation("user %s cannot follow themselves", followerID)
	}

	var (
		follower *models.User
		out, in  bool
		linked   bool
	)
	err = s.attempt(ctx, "followUser", func(ctx context.Context) error {
		if err := requireUsers(ctx, s.store, followerID, followingID); err != nil {
			return err
		}
		e, err := s.update(ctx, models.KindUser, followerID, func(e models.Entity) (bool, error) {
			u := e.(*models.User)
			u.Following, out = AddToSet(u.Following, followingID)
			return out, nil
		})
		if err != nil {
			return err
		}
		linked = linked || out
		follower = e.(*models.User)

		e, err = s.update(ctx, models.KindUser, followingID, func(e models.Entity) (bool, error) {
			u := e.(*models.User)
			u.Followers, in = AddToSet(u.Followers, followerID)
			return in, nil
		})
		if err != nil {
			return err
		}
		linked = linked || in
		return CheckFollowSymmetry(follower, e.(*models.User))
	})
	if err != nil {
		return nil, err
	}
	if linked {
		s.emit(ctx, models.Event{Type: models.EventUserFollowed, Actor: followerID, TargetKind: models.KindUser, Target: followingID})
	}
	return follower, nil
}

func (s *Service) update(ctx context.Context, kind models.Kind, id string, fn db.MutateFunc) (models.Entity, error) {
	e, err := s.store.Update(ctx, kind, id, fn)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NotFound(kind, id)
	}
	return e, err
}

// attempt runs op under a per-attempt timeout, retrying retryable failures
// with exponential backoff. Graph errors are never retried.
func (s *Service) attempt(ctx context.Context, name string, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.Backoff
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.opts.Retries), ctx)

	return backoff.Retry(func() error {
		actx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		err := op(actx)
		if err == nil {
			return nil
		}
		if CodeOf(err) != "" || !db.IsRetryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		log.Printf("[Mutation] %s attempt failed, retrying: %v", name, err)
		return err
	}, b)
}

func (s *Service) emit(ctx context.Context, ev models.Event) {
	if s.events == nil {
		return
	}
	ev.At = s.now()
	s.events.Emit(ctx, ev)
}
