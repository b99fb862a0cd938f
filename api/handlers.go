package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"socialgraph/db"
	"socialgraph/graph"
	"socialgraph/middleware"
	"socialgraph/models"
	"socialgraph/utils"
)

// Handler serves the graph over JSON. Every response entity is expanded by
// the Resolver according to the ?expand= paths, or the kind's default
// selection when none are given.
type Handler struct {
	svc        *graph.Service
	resolver   *graph.Resolver
	reconciler *graph.Reconciler
}

func NewHandler(svc *graph.Service, resolver *graph.Resolver, reconciler *graph.Reconciler) *Handler {
	return &Handler{svc: svc, resolver: resolver, reconciler: reconciler}
}

func (h *Handler) selection(r *http.Request, kind models.Kind) (graph.Selection, error) {
	return h.resolver.Selection(kind, utils.SplitList(r.URL.Query().Get("expand")))
}

func (h *Handler) getOne(kind models.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sel, err := h.selection(r, kind)
		if err != nil {
			respondErr(w, err)
			return
		}
		node, err := h.resolver.Resolve(r.Context(), kind, ps.ByName("id"), sel)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, node)
	}
}

func (h *Handler) getAll(kind models.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sel, err := h.selection(r, kind)
		if err != nil {
			respondErr(w, err)
			return
		}
		nodes, err := h.resolver.ResolveAll(r.Context(), kind, sel)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, nodes)
	}
}

func (h *Handler) GetUser() httprouter.Handle    { return h.getOne(models.KindUser) }
func (h *Handler) GetUsers() httprouter.Handle   { return h.getAll(models.KindUser) }
func (h *Handler) GetPost() httprouter.Handle    { return h.getOne(models.KindPost) }
func (h *Handler) GetPosts() httprouter.Handle   { return h.getAll(models.KindPost) }
func (h *Handler) GetComment() httprouter.Handle { return h.getOne(models.KindComment) }

// respondEntity expands a freshly mutated entity for the response.
func (h *Handler) respondEntity(w http.ResponseWriter, r *http.Request, status int, e models.Entity) {
	sel, err := h.selection(r, e.EntityKind())
	if err != nil {
		respondErr(w, err)
		return
	}
	node, err := h.resolver.ResolveEntity(r.Context(), e, sel)
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, status, node)
}

func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	u, err := h.svc.AddUser(r.Context(), body.Name, body.Email)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.respondEntity(w, r, http.StatusCreated, u)
}

func (h *Handler) AddPost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Title    string  `json:"title"`
		Content  string  `json:"content"`
		ImageURL *string `json:"imageUrl"`
		AuthorID string  `json:"authorId"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := middleware.CheckActor(r.Context(), body.AuthorID); err != nil {
		respondErr(w, err)
		return
	}
	p, err := h.svc.AddPost(r.Context(), graph.NewPost{
		Title: body.Title, Content: body.Content, ImageURL: body.ImageURL, AuthorID: body.AuthorID,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	h.respondEntity(w, r, http.StatusCreated, p)
}

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := middleware.CheckActor(r.Context(), body.UserID); err != nil {
		respondErr(w, err)
		return
	}
	p, err := h.svc.LikePost(r.Context(), ps.ByName("id"), body.UserID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.respondEntity(w, r, http.StatusOK, p)
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Content  string `json:"content"`
		AuthorID string `json:"authorId"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := middleware.CheckActor(r.Context(), body.AuthorID); err != nil {
		respondErr(w, err)
		return
	}
	c, err := h.svc.AddComment(r.Context(), ps.ByName("id"), body.Content, body.AuthorID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.respondEntity(w, r, http.StatusCreated, c)
}

// FollowUser makes the :id user follow followingId.
func (h *Handler) FollowUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		FollowingID string `json:"followingId"`
	}
	if !decode(w, r, &body) {
		return
	}
	followerID := ps.ByName("id")
	if err := middleware.CheckActor(r.Context(), followerID); err != nil {
		respondErr(w, err)
		return
	}
	u, err := h.svc.FollowUser(r.Context(), followerID, body.FollowingID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.respondEntity(w, r, http.StatusOK, u)
}

// Reconcile runs one repair pass and reports what it fixed.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rep, err := h.reconciler.Run(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rep)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func respondErr(w http.ResponseWriter, err error) {
	switch graph.CodeOf(err) {
	case graph.CodeNotFound:
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	case graph.CodeValidation:
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case graph.CodeConsistency:
		utils.RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	switch {
	case errors.Is(err, middleware.ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case db.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Temporarily unavailable, retry")
	default:
		log.Printf("[API] internal error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
