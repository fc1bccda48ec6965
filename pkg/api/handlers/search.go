package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"thoughtpost/pkg/search"
	"thoughtpost/pkg/utils"

	"github.com/gorilla/mux"
)

type searchHandlers struct {
	svc *search.Service
}

// RegisterSearch registers the ad-hoc agent search routes.
func RegisterSearch(r *mux.Router, svc *search.Service) {
	h := &searchHandlers{svc: svc}
	r.HandleFunc("/search/criteria", h.generateCriteria).Methods(http.MethodPost)
	r.HandleFunc("/search/execute", h.execute).Methods(http.MethodPost)
}

func (h *searchHandlers) generateCriteria(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	var body struct {
		Category    string `json:"category"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if body.Category == "" && body.Description == "" {
		utils.JSONError(w, http.StatusBadRequest, "category or description is required")
		return
	}
	result, err := h.svc.GenerateCriteria(r.Context(), body.Category, body.Description)
	if err != nil {
		writeSearchErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		SearchString string `json:"search_string"`
	}{SearchString: result})
}

func (h *searchHandlers) execute(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	var body struct {
		SearchString string `json:"search_string"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if body.SearchString == "" {
		utils.JSONError(w, http.StatusBadRequest, "search_string is required")
		return
	}
	result, err := h.svc.ExecuteSearch(r.Context(), body.SearchString)
	if err != nil {
		writeSearchErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Result string `json:"result"`
	}{Result: result})
}

func writeSearchErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrTimeout):
		utils.JSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, search.ErrTooManyPending):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusBadGateway, err.Error())
	}
}
