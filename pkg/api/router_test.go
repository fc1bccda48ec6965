package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"thoughtpost/pkg/auth"
	"thoughtpost/pkg/config"
	"thoughtpost/pkg/enrich"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/social"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/thoughts"
)

type stubSender struct{ sent int }

func (s *stubSender) Send(ctx context.Context, p *models.ThoughtPost, opts enrich.Options) (bool, error) {
	s.sent++
	return true, nil
}

type stubAdapter struct{}

func (stubAdapter) IsConfigured() bool { return true }

func (stubAdapter) Publish(ctx context.Context, post *models.ThoughtPost, content *models.EnrichedContent) (string, error) {
	return "ext-1", nil
}

func newTestServer(t *testing.T) (*httptest.Server, *thoughts.Service) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pub := social.NewService(store.UpdatePost)
	pub.Register(models.PlatformLinkedIn, stubAdapter{})
	svc := thoughts.NewService(&stubSender{}, pub)

	handler := auth.Middleware(config.SecurityConfig{})(NewRouter(Deps{Thoughts: svc}))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request build failed: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodePost(t *testing.T, resp *http.Response) models.ThoughtPost {
	t.Helper()
	var p models.ThoughtPost
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return p
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp := doJSON(t, http.MethodGet, srv.URL+path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
	resp := doJSON(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
}

func TestIdentityHeaderRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/posts", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	srv, svc := newTestServer(t)

	create := thoughts.CreateRequest{
		Thought: "announce the beta",
		PlatformConfigs: []thoughts.PlatformConfig{
			{Platform: models.PlatformLinkedIn},
		},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/posts", "u1", create)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodePost(t, resp)
	if created.ID == "" || created.Status != models.StatusProcessing {
		t.Fatalf("created = %+v", created)
	}

	// Approving before enrichment lands is a conflict.
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/posts/"+created.ID+"/approve", "u1", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("premature approve status = %d, want 409", resp.StatusCode)
	}

	// Agent response arrives over the bus.
	err := svc.HandleAgentResponse(context.Background(), &enrich.Response{
		RequestID: created.ID,
		Status:    enrich.ResponseCompleted,
		EnrichedContents: []enrich.ContentMessage{
			{Platform: models.PlatformLinkedIn, Body: "beta is live"},
		},
	})
	if err != nil {
		t.Fatalf("agent response failed: %v", err)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/posts/"+created.ID+"/approve", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	approved := decodePost(t, resp)
	if approved.Status != models.StatusPosted {
		t.Fatalf("status after approve = %s", approved.Status)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/posts/"+created.ID+"/history", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	var hist struct {
		History []models.HistoryEntry `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history failed: %v", err)
	}
	if len(hist.History) == 0 || hist.History[0].ActionType != models.ActionPost {
		t.Fatalf("history = %+v", hist.History)
	}

	// A different user must not see the post.
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/posts/"+created.ID, "u2", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign get status = %d, want 404", resp.StatusCode)
	}
}

func TestListFiltersValidateInput(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/posts?status=BOGUS", "u1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/posts?platform=myspace", "u1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/posts", "u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateValidatesBody(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/posts", "u1", thoughts.CreateRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteReturnsNoContent(t *testing.T) {
	srv, _ := newTestServer(t)
	create := thoughts.CreateRequest{
		Thought: "short lived",
		PlatformConfigs: []thoughts.PlatformConfig{
			{Platform: models.PlatformLinkedIn},
		},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/posts", "u1", create)
	created := decodePost(t, resp)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/v1/posts/"+created.ID, "u1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/posts/"+created.ID, "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
}
