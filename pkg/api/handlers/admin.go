package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"thoughtpost/pkg/models"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterAdmin registers the category and prompt preset routes. These
// manage the reference data the enrichment requests are built from.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/categories", createCategory).Methods(http.MethodPost)
	r.HandleFunc("/categories", listCategories).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id}", getCategory).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id}", deleteCategory).Methods(http.MethodDelete)

	r.HandleFunc("/prompts", createPrompt).Methods(http.MethodPost)
	r.HandleFunc("/prompts", listPrompts).Methods(http.MethodGet)
	r.HandleFunc("/prompts/{id}", getPrompt).Methods(http.MethodGet)
	r.HandleFunc("/prompts/{id}", deletePrompt).Methods(http.MethodDelete)
}

func createCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if c.Name == "" {
		utils.JSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	saved, err := store.SaveCategory(&c)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, saved)
}

func listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := store.ListCategories()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Categories []*models.Category `json:"categories"`
	}{Categories: cats})
}

func getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := store.GetCategory(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

func deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteCategory(mux.Vars(r)["id"]); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func createPrompt(w http.ResponseWriter, r *http.Request) {
	var p models.Prompt
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if p.Text == "" {
		utils.JSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if p.Type == "" {
		p.Type = models.PromptText
	}
	saved, err := store.SavePrompt(&p)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, saved)
}

func listPrompts(w http.ResponseWriter, r *http.Request) {
	// Optional platform filter.
	if pl := r.URL.Query().Get("platform"); pl != "" {
		platform, err := models.ParsePlatform(pl)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		prompts, err := store.FindPromptsByPlatform(platform)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, struct {
			Prompts []*models.Prompt `json:"prompts"`
		}{Prompts: prompts})
		return
	}
	prompts, err := store.ListPrompts()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Prompts []*models.Prompt `json:"prompts"`
	}{Prompts: prompts})
}

func getPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := store.GetPrompt(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func deletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := store.DeletePrompt(mux.Vars(r)["id"]); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
