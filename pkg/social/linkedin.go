package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"thoughtpost/pkg/config"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
)

const defaultLinkedInAPI = "https://api.linkedin.com/v2"

// LinkedIn publishes UGC posts through the LinkedIn REST API. Calls are
// rate limited so scheduler-driven retry bursts stay inside the API quota.
type LinkedIn struct {
	cfg     config.LinkedInConfig
	hc      *http.Client
	limiter *rate.Limiter
}

// NewLinkedIn returns an adapter for the given credentials.
func NewLinkedIn(cfg config.LinkedInConfig) *LinkedIn {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 2
	}
	return &LinkedIn{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// IsConfigured reports whether credentials are present.
func (l *LinkedIn) IsConfigured() bool {
	return l.cfg.AccessToken != "" && l.cfg.AuthorURN != ""
}

// Publish creates a UGC share and returns its LinkedIn id.
func (l *LinkedIn) Publish(ctx context.Context, post *models.ThoughtPost, content *models.EnrichedContent) (string, error) {
	if !l.IsConfigured() {
		return "", fmt.Errorf("%w: linkedin", ErrNotConfigured)
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(l.shareRequest(post, content))
	if err != nil {
		return "", fmt.Errorf("failed to marshal share request: %w", err)
	}

	base := l.cfg.APIBase
	if base == "" {
		base = defaultLinkedInAPI
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", fmt.Errorf("linkedin returned %d: %s", resp.StatusCode, apiErr.Message)
	}

	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		return "", fmt.Errorf("linkedin response missing post id")
	}
	logger.Info("linkedin_share_created", "post", post.ID, "external_id", out.ID)
	return out.ID, nil
}

// shareRequest builds the UGC post payload. Text publishing honors the
// user's approval toggles: hashtags ride along with the body, and the
// selected image is attached only when postImage is on.
func (l *LinkedIn) shareRequest(post *models.ThoughtPost, content *models.EnrichedContent) map[string]any {
	text := content.Body
	if !post.PostText {
		text = post.OriginalThought
	}
	if len(content.Hashtags) > 0 {
		tags := make([]string, 0, len(content.Hashtags))
		for _, h := range content.Hashtags {
			tags = append(tags, "#"+strings.TrimPrefix(h, "#"))
		}
		text += "\n\n" + strings.Join(tags, " ")
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": text},
		"shareMediaCategory": "NONE",
	}
	if post.PostImage {
		if img := selectedImage(content); img != nil {
			shareContent["shareMediaCategory"] = "IMAGE"
			shareContent["media"] = []map[string]any{{
				"status":      "READY",
				"media":       img.ID,
				"description": map[string]any{"text": img.Prompt},
			}}
		}
	}

	return map[string]any{
		"author":         l.cfg.AuthorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
}

func selectedImage(content *models.EnrichedContent) *models.GeneratedImage {
	for i := range content.Images {
		if content.Images[i].Selected {
			return &content.Images[i]
		}
	}
	return nil
}

// Unconfigured is a placeholder adapter for platforms without an
// integration yet.
type Unconfigured struct {
	Platform models.Platform
}

func (u Unconfigured) IsConfigured() bool { return false }

func (u Unconfigured) Publish(ctx context.Context, post *models.ThoughtPost, content *models.EnrichedContent) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNotConfigured, u.Platform)
}
