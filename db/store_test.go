package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/models"
)

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "socialgraph_test_" + uuid.NewString()[:8]
	s, err := Connect(ctx, uri, dbName)
	require.NoError(t, err)
	defer func() {
		_ = s.Client.Database(dbName).Drop(context.Background())
		_ = s.Close(context.Background())
	}()
	exerciseStore(t, s)
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	alice := &models.User{ID: uuid.NewString(), Name: "Alice", Email: "a@x.com", CreatedAt: base}
	require.NoError(t, s.Put(ctx, alice))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := s.Get(ctx, models.KindUser, alice.ID)
		require.NoError(t, err)
		u := got.(*models.User)
		assert.Equal(t, "Alice", u.Name)
		u.Name = "changed"

		again, err := s.Get(ctx, models.KindUser, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", again.(*models.User).Name)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := s.Get(ctx, models.KindUser, "nope")
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = s.Update(ctx, models.KindPost, "nope", func(models.Entity) (bool, error) { return true, nil })
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("put is a create-once", func(t *testing.T) {
		dup := &models.User{ID: alice.ID, Name: "Mallory", CreatedAt: base}
		require.NoError(t, s.Put(ctx, dup))
		got, err := s.Get(ctx, models.KindUser, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.(*models.User).Name)
	})

	t.Run("find filters and orders by creation", func(t *testing.T) {
		other := uuid.NewString()
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = uuid.NewString()
		}
		// inserted out of order on purpose
		for _, i := range []int{2, 0, 1} {
			require.NoError(t, s.Put(ctx, &models.Post{
				ID: ids[i], Title: fmt.Sprint(i), Author: alice.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, s.Put(ctx, &models.Post{ID: uuid.NewString(), Author: other, CreatedAt: base}))

		found, err := s.Find(ctx, models.KindPost, Eq("author", alice.ID))
		require.NoError(t, err)
		require.Len(t, found, 3)
		for i, e := range found {
			assert.Equal(t, ids[i], e.EntityID())
		}

		all, err := s.Find(ctx, models.KindPost, nil)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("same instant orders by id", func(t *testing.T) {
		author := uuid.NewString()
		at := base.Add(time.Hour)
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = uuid.Must(uuid.NewV7()).String()
		}
		for _, i := range []int{1, 2, 0} {
			require.NoError(t, s.Put(ctx, &models.Post{ID: ids[i], Author: author, CreatedAt: at}))
		}

		found, err := s.Find(ctx, models.KindPost, Eq("author", author))
		require.NoError(t, err)
		require.Len(t, found, 3)
		for i, e := range found {
			assert.Equal(t, ids[i], e.EntityID())
		}
	})

	t.Run("unchanged update skips the write", func(t *testing.T) {
		before, err := s.Get(ctx, models.KindUser, alice.ID)
		require.NoError(t, err)
		after, err := s.Update(ctx, models.KindUser, alice.ID, func(models.Entity) (bool, error) { return false, nil })
		require.NoError(t, err)
		assert.Equal(t, before.Revision(), after.Revision())
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		post := &models.Post{ID: uuid.NewString(), Author: alice.ID, CreatedAt: base}
		require.NoError(t, s.Put(ctx, post))

		const writers = 20
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				liker := fmt.Sprintf("user-%d", i)
				for {
					_, err := s.Update(ctx, models.KindPost, post.ID, func(e models.Entity) (bool, error) {
						p := e.(*models.Post)
						p.Likes = append(p.Likes, liker)
						return true, nil
					})
					if errors.Is(err, ErrConflict) {
						continue
					}
					errs <- err
					return
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.Get(ctx, models.KindPost, post.ID)
		require.NoError(t, err)
		assert.Len(t, got.(*models.Post).Likes, writers)
		assert.Equal(t, int64(writers), got.Revision())
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrConflict)))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(nil))
}
