package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/db"
	"socialgraph/graph"
	"socialgraph/middleware"
)

type env struct {
	store  *db.MemoryStore
	schema *graphql.Schema
}

func newEnv(t *testing.T, maxDepth int) *env {
	t.Helper()
	store := db.NewMemoryStore()
	svc := graph.NewService(store, nil, graph.Options{Timeout: time.Second, Backoff: time.Millisecond})
	schema, err := NewSchema(svc, store, maxDepth)
	require.NoError(t, err)
	return &env{store: store, schema: schema}
}

// exec runs one operation with a fresh request Loader and decodes data into out.
func (e *env) exec(t *testing.T, query string, vars map[string]interface{}, out interface{}) *graphql.Response {
	t.Helper()
	ctx := graph.WithLoader(context.Background(), graph.NewLoader(e.store))
	resp := e.schema.Exec(ctx, query, "", vars)
	if out != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return resp
}

func (e *env) mustExec(t *testing.T, query string, vars map[string]interface{}, out interface{}) {
	t.Helper()
	resp := e.exec(t, query, vars, out)
	require.Empty(t, resp.Errors)
}

type idOnly struct {
	ID string `json:"id"`
}

func (e *env) addUser(t *testing.T, name, email string) string {
	var out struct {
		AddUser idOnly `json:"addUser"`
	}
	e.mustExec(t, `mutation($n: String!, $e: String!) { addUser(name: $n, email: $e) { id } }`,
		map[string]interface{}{"n": name, "e": email}, &out)
	return out.AddUser.ID
}

func TestScenario(t *testing.T) {
	e := newEnv(t, 8)
	a := e.addUser(t, "Alice", "a@x.com")
	b := e.addUser(t, "Bob", "b@x.com")

	var followed struct {
		FollowUser struct {
			Following []idOnly `json:"following"`
		} `json:"followUser"`
	}
	e.mustExec(t, `mutation($a: ID!, $b: ID!) { followUser(followerId: $a, followingId: $b) { following { id } } }`,
		map[string]interface{}{"a": a, "b": b}, &followed)
	assert.Equal(t, []idOnly{{b}}, followed.FollowUser.Following)

	var users struct {
		A struct {
			Following []idOnly `json:"following"`
		} `json:"a"`
		B struct {
			Followers []idOnly `json:"followers"`
		} `json:"b"`
	}
	e.mustExec(t, `query($a: ID!, $b: ID!) { a: user(id: $a) { following { id } } b: user(id: $b) { followers { id } } }`,
		map[string]interface{}{"a": a, "b": b}, &users)
	assert.Equal(t, []idOnly{{b}}, users.A.Following)
	assert.Equal(t, []idOnly{{a}}, users.B.Followers)

	var added struct {
		AddPost struct {
			ID       string  `json:"id"`
			ImageURL *string `json:"imageUrl"`
			Author   idOnly  `json:"author"`
		} `json:"addPost"`
	}
	e.mustExec(t, `mutation($a: ID!) { addPost(title: "T", content: "C", authorId: $a) { id imageUrl author { id } } }`,
		map[string]interface{}{"a": a}, &added)
	assert.Nil(t, added.AddPost.ImageURL)
	assert.Equal(t, a, added.AddPost.Author.ID)
	p := added.AddPost.ID

	for range 2 {
		var liked struct {
			LikePost struct {
				Likes []idOnly `json:"likes"`
			} `json:"likePost"`
		}
		e.mustExec(t, `mutation($p: ID!, $b: ID!) { likePost(postId: $p, userId: $b) { likes { id } } }`,
			map[string]interface{}{"p": p, "b": b}, &liked)
		assert.Equal(t, []idOnly{{b}}, liked.LikePost.Likes)
	}
}

func TestCommentsAndDerivedPosts(t *testing.T) {
	e := newEnv(t, 8)
	a := e.addUser(t, "Alice", "a@x.com")

	var added struct {
		AddPost idOnly `json:"addPost"`
	}
	e.mustExec(t, `mutation($a: ID!) { addPost(title: "T", content: "C", imageUrl: "https://x.io/i.png", authorId: $a) { id } }`,
		map[string]interface{}{"a": a}, &added)
	p := added.AddPost.ID

	var commented struct {
		AddComment struct {
			Author idOnly `json:"author"`
			Post   struct {
				ID       string   `json:"id"`
				Comments []idOnly `json:"comments"`
			} `json:"post"`
		} `json:"addComment"`
	}
	e.mustExec(t, `mutation($p: ID!, $a: ID!) { addComment(postId: $p, content: "hi", authorId: $a) { author { id } post { id comments { id } } } }`,
		map[string]interface{}{"p": p, "a": a}, &commented)
	assert.Equal(t, a, commented.AddComment.Author.ID)
	assert.Equal(t, p, commented.AddComment.Post.ID)
	assert.Len(t, commented.AddComment.Post.Comments, 1)

	var user struct {
		User struct {
			Posts []struct {
				Title    string `json:"title"`
				ImageURL string `json:"imageUrl"`
			} `json:"posts"`
		} `json:"user"`
	}
	e.mustExec(t, `query($a: ID!) { user(id: $a) { posts { title imageUrl } } }`, map[string]interface{}{"a": a}, &user)
	require.Len(t, user.User.Posts, 1)
	assert.Equal(t, "https://x.io/i.png", user.User.Posts[0].ImageURL)

	var lists struct {
		Users []idOnly `json:"users"`
		Posts []idOnly `json:"posts"`
	}
	e.mustExec(t, `{ users { id } posts { id } }`, nil, &lists)
	assert.Equal(t, []idOnly{{a}}, lists.Users)
	assert.Equal(t, []idOnly{{p}}, lists.Posts)
}

func TestErrorsCarryCodes(t *testing.T) {
	e := newEnv(t, 8)

	var out struct {
		User *idOnly `json:"user"`
	}
	resp := e.exec(t, `{ user(id: "ghost") { id } }`, nil, &out)
	require.Len(t, resp.Errors, 1)
	assert.Nil(t, out.User)
	assert.Equal(t, string(graph.CodeNotFound), resp.Errors[0].Extensions["code"])

	resp = e.exec(t, `mutation { addUser(name: "x", email: "broken") { id } }`, nil, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(graph.CodeValidation), resp.Errors[0].Extensions["code"])
}

func TestMaxDepth(t *testing.T) {
	e := newEnv(t, 1)
	a := e.addUser(t, "Alice", "a@x.com")

	resp := e.exec(t, `query($a: ID!) { user(id: $a) { following { id } } }`, map[string]interface{}{"a": a}, nil)
	assert.Empty(t, resp.Errors)

	resp = e.exec(t, `query($a: ID!) { user(id: $a) { following { following { id } } } }`, map[string]interface{}{"a": a}, nil)
	assert.NotEmpty(t, resp.Errors)
}

func TestHandlerChecksActor(t *testing.T) {
	e := newEnv(t, 8)
	a := e.addUser(t, "Alice", "a@x.com")
	b := e.addUser(t, "Bob", "b@x.com")

	auth := middleware.Auth{Secret: []byte("secret")}
	srv := httptest.NewServer(auth.OptionalAuth(Handler(e.schema, e.store)))
	defer srv.Close()

	post := func(token string) map[string]interface{} {
		body, _ := json.Marshal(map[string]interface{}{
			"query":     `mutation($a: ID!, $b: ID!) { followUser(followerId: $a, followingId: $b) { id } }`,
			"variables": map[string]interface{}{"a": a, "b": b},
		})
		req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return out
	}

	bobToken, err := auth.Issue(b, time.Minute)
	require.NoError(t, err)
	out := post(bobToken)
	assert.NotEmpty(t, out["errors"], "bob cannot follow on alice's behalf")

	aliceToken, err := auth.Issue(a, time.Minute)
	require.NoError(t, err)
	out = post(aliceToken)
	assert.Empty(t, out["errors"])
}

func TestSerialMutationsSeeEarlierWrites(t *testing.T) {
	e := newEnv(t, 8)
	a := e.addUser(t, "Alice", "a@x.com")
	b := e.addUser(t, "Bob", "b@x.com")
	c := e.addUser(t, "Carol", "c@x.com")

	type followed struct {
		Following []struct {
			Followers []idOnly `json:"followers"`
		} `json:"following"`
	}
	var out struct {
		X followed `json:"x"`
		Y followed `json:"y"`
	}
	e.mustExec(t, `mutation($a: ID!, $b: ID!, $c: ID!) {
		x: followUser(followerId: $a, followingId: $b) { following { followers { id } } }
		y: followUser(followerId: $c, followingId: $b) { following { followers { id } } }
	}`, map[string]interface{}{"a": a, "b": b, "c": c}, &out)

	require.Len(t, out.X.Following, 1)
	assert.Equal(t, []idOnly{{a}}, out.X.Following[0].Followers)
	require.Len(t, out.Y.Following, 1)
	assert.Equal(t, []idOnly{{a}, {c}}, out.Y.Following[0].Followers)
}
