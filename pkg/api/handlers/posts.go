package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"thoughtpost/pkg/auth"
	"thoughtpost/pkg/enrich"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/thoughts"
	"thoughtpost/pkg/utils"

	"github.com/gorilla/mux"
)

type postHandlers struct {
	svc *thoughts.Service
}

// RegisterPosts registers the post lifecycle routes on the router.
func RegisterPosts(r *mux.Router, svc *thoughts.Service) {
	h := &postHandlers{svc: svc}

	r.HandleFunc("/posts", h.create).Methods(http.MethodPost)
	r.HandleFunc("/posts", h.list).Methods(http.MethodGet)

	r.HandleFunc("/posts/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/posts/{id}/history", h.history).Methods(http.MethodGet)

	r.HandleFunc("/posts/{id}/approve", h.approve).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/reject", h.reject).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/content", h.updateContent).Methods(http.MethodPut)
	r.HandleFunc("/posts/{id}/reenrich", h.reenrich).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/repost", h.repost).Methods(http.MethodPost)
}

// caller resolves the authenticated user or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		utils.JSONError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return "", false
	}
	return userID, true
}

// writeErr maps service errors to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, thoughts.ErrNotApprovable),
		errors.Is(err, thoughts.ErrNotPostable),
		errors.Is(err, thoughts.ErrAlreadyPosted),
		errors.Is(err, store.ErrVersionConflict):
		utils.JSONError(w, http.StatusConflict, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *postHandlers) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req thoughts.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	post, err := h.svc.Create(r.Context(), req, userID)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, post)
}

func (h *postHandlers) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var (
		posts []*models.ThoughtPost
		err   error
	)
	switch {
	case q.Get("status") != "":
		var st models.Status
		st, err = models.ParseStatus(q.Get("status"))
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		posts, err = h.svc.ListByUserAndStatus(userID, st)
	case q.Get("status_not") != "":
		var st models.Status
		st, err = models.ParseStatus(q.Get("status_not"))
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		posts, err = h.svc.ListByUserAndStatusNot(userID, st)
	case q.Get("platform") != "":
		var pl models.Platform
		pl, err = models.ParsePlatform(q.Get("platform"))
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		posts, err = h.svc.ListByUserAndPlatform(userID, pl)
	default:
		posts, err = h.svc.ListByUser(userID)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Posts []*models.ThoughtPost `json:"posts"`
	}{Posts: posts})
}

func (h *postHandlers) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	post, err := h.svc.Get(mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

func (h *postHandlers) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(mux.Vars(r)["id"], userID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *postHandlers) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	entries, err := h.svc.History(id, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		PostID  string                `json:"post_id"`
		History []models.HistoryEntry `json:"history"`
	}{PostID: id, History: entries})
}

func (h *postHandlers) approve(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	// Defaults keep both channels enabled when the body omits them.
	req := thoughts.ApproveRequest{PostText: true, PostImage: true}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	post, err := h.svc.Approve(r.Context(), mux.Vars(r)["id"], userID, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

func (h *postHandlers) reject(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	post, err := h.svc.Reject(mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

func (h *postHandlers) updateContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Contents []models.EnrichedContent `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if len(body.Contents) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "contents is required")
		return
	}
	post, err := h.svc.UpdateContent(mux.Vars(r)["id"], userID, body.Contents)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

func (h *postHandlers) reenrich(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var opts enrich.Options
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	post, err := h.svc.Reenrich(r.Context(), mux.Vars(r)["id"], userID, opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

func (h *postHandlers) repost(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	post, err := h.svc.Repost(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}
