package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/api"
	"socialgraph/db"
	"socialgraph/graph"
	"socialgraph/middleware"
	"socialgraph/ratelim"
)

func TestReconcileNeedsAdmin(t *testing.T) {
	store := db.NewMemoryStore()
	svc := graph.NewService(store, nil, graph.DefaultOptions())
	h := api.NewHandler(svc, graph.NewResolver(store, graph.DefaultMaxDepth), graph.NewReconciler(store))
	auth := middleware.Auth{Secret: []byte("secret")}

	router := httprouter.New()
	AddGraphRoutes(router, h, auth, ratelim.NewRateLimiter(1000, 1000))

	user, err := auth.Issue("alice", time.Minute)
	require.NoError(t, err)
	admin, err := auth.Issue("ops", time.Minute, middleware.RoleAdmin)
	require.NoError(t, err)

	for token, want := range map[string]int{
		"":    http.StatusUnauthorized,
		user:  http.StatusForbidden,
		admin: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/reconcile", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}
