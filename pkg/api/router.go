// Package api assembles the HTTP surface: lifecycle routes, ad-hoc search,
// reference-data admin, health probes and metrics.
package api

import (
	"net/http"

	"thoughtpost/pkg/api/handlers"
	"thoughtpost/pkg/search"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/thoughts"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries the services the handlers need.
type Deps struct {
	Thoughts *thoughts.Service
	Search   *search.Service
}

// NewRouter builds the full route table. Auth middleware is layered on by
// the app, not here.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterPosts(v1, d.Thoughts)
	if d.Search != nil {
		handlers.RegisterSearch(v1, d.Search)
	}
	handlers.RegisterAdmin(v1)

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
