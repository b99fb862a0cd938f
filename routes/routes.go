package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"socialgraph/api"
	"socialgraph/live"
	"socialgraph/middleware"
	"socialgraph/ratelim"
)

// AddGraphRoutes registers the REST surface. Reads are open; writes are rate
// limited and authenticated, and reconciliation needs the admin role.
func AddGraphRoutes(router *httprouter.Router, h *api.Handler, auth middleware.Auth, rl *ratelim.RateLimiter) {
	write := func(next httprouter.Handle) httprouter.Handle {
		return rl.Limit(auth.Authenticate(next))
	}

	router.GET("/api/users", h.GetUsers())
	router.GET("/api/users/:id", h.GetUser())
	router.GET("/api/posts", h.GetPosts())
	router.GET("/api/posts/:id", h.GetPost())
	router.GET("/api/comments/:id", h.GetComment())

	router.POST("/api/users", rl.Limit(h.AddUser))
	router.POST("/api/posts", write(h.AddPost))
	router.POST("/api/posts/:id/likes", write(h.LikePost))
	router.POST("/api/posts/:id/comments", write(h.AddComment))
	router.POST("/api/users/:id/follow", write(h.FollowUser))
	router.POST("/api/admin/reconcile", rl.Limit(auth.RequireRole(middleware.RoleAdmin, h.Reconcile)))
}

func AddLiveRoutes(router *httprouter.Router, hub *live.Hub) {
	router.GET("/api/live/:topic", live.WebSocketHandler(hub))
}

// AddGraphQLRoutes mounts the GraphQL endpoint. Tokens are optional here;
// mutations check the acting user themselves.
func AddGraphQLRoutes(router *httprouter.Router, gqlHandler http.Handler, auth middleware.Auth, rl *ratelim.RateLimiter) {
	h := auth.OptionalAuth(gqlHandler)
	router.POST("/graphql", rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}))
}
