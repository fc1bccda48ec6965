// Package social fans an approved post out to its selected platforms.
// Per-platform state lives on the post's EnrichedContent entries; every
// transition is written back through the orchestrator's save path so the
// adapters themselves stay stateless.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/telemetry"
)

// Adapter publishes one platform's content and reports the external post
// id. Implementations must be safe for concurrent use.
type Adapter interface {
	Publish(ctx context.Context, post *models.ThoughtPost, content *models.EnrichedContent) (string, error)
	IsConfigured() bool
}

// Saver is the orchestrator's read-transform-CAS save path.
type Saver func(postID string, mutate func(*models.ThoughtPost) error) (*models.ThoughtPost, error)

// ErrNotConfigured is returned when no adapter can serve a platform.
var ErrNotConfigured = errors.New("platform not configured")

// Service routes publish calls to per-platform adapters.
type Service struct {
	adapters map[models.Platform]Adapter
	save     Saver
}

// NewService returns a Service persisting through save.
func NewService(save Saver) *Service {
	return &Service{adapters: make(map[models.Platform]Adapter), save: save}
}

// Register installs the adapter for a platform.
func (s *Service) Register(platform models.Platform, a Adapter) {
	s.adapters[platform] = a
}

// IsConfigured reports whether a platform has a usable adapter.
func (s *Service) IsConfigured(platform models.Platform) bool {
	a, ok := s.adapters[platform]
	return ok && a.IsConfigured()
}

// PublishToPlatform publishes one platform's content directly, without
// touching stored state. Used for ad-hoc re-publication.
func (s *Service) PublishToPlatform(ctx context.Context, post *models.ThoughtPost, platform models.Platform) (string, error) {
	a, ok := s.adapters[platform]
	if !ok || !a.IsConfigured() {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, platform)
	}
	content := post.Content(platform)
	if content == nil {
		return "", fmt.Errorf("no enriched content for platform %s on post %s", platform, post.ID)
	}
	return a.Publish(ctx, post, content)
}

// PublishToSelectedPlatforms attempts every selected platform of the post
// in order. A failure on one platform never aborts the remaining ones:
// each attempt is isolated, its outcome persisted, and the aggregate error
// returned only after all platforms were tried. Platforms already POSTED
// are counted as successes without re-publishing.
func (s *Service) PublishToSelectedPlatforms(ctx context.Context, post *models.ThoughtPost) (map[models.Platform]string, error) {
	results := make(map[models.Platform]string)
	var errs []error

	for _, platform := range post.SelectedPlatforms {
		content := post.Content(platform)
		if content == nil {
			logger.Warn("publish_no_content", "post", post.ID, "platform", platform)
			continue
		}
		if content.Status == models.StatusPosted {
			logger.Info("publish_already_posted", "post", post.ID, "platform", platform, "external_id", content.PostID)
			results[platform] = content.PostID
			continue
		}

		id, err := s.attempt(ctx, post, platform)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", platform, err))
			continue
		}
		results[platform] = id
	}
	return results, errors.Join(errs...)
}

// attempt runs one isolated publish attempt for one platform, persisting
// the POSTING, then POSTED or FAILED transition.
func (s *Service) attempt(ctx context.Context, post *models.ThoughtPost, platform models.Platform) (string, error) {
	updated, err := s.save(post.ID, func(p *models.ThoughtPost) error {
		c := p.Content(platform)
		if c == nil {
			return fmt.Errorf("no enriched content for platform %s", platform)
		}
		now := time.Now().UTC()
		c.Status = models.StatusPosting
		c.LastRetryAt = &now
		return nil
	})
	if err != nil {
		return "", err
	}

	a, ok := s.adapters[platform]
	var externalID string
	var pubErr error
	if !ok || !a.IsConfigured() {
		pubErr = fmt.Errorf("%w: %s", ErrNotConfigured, platform)
	} else {
		externalID, pubErr = a.Publish(ctx, updated, updated.Content(platform))
	}

	if pubErr != nil {
		telemetry.PublishFailed(string(platform))
		logger.Error("publish_failed", "post", post.ID, "platform", platform, "error", pubErr)
		if _, err := s.save(post.ID, func(p *models.ThoughtPost) error {
			c := p.Content(platform)
			if c == nil {
				return fmt.Errorf("no enriched content for platform %s", platform)
			}
			c.Status = models.StatusFailed
			c.RetryCount++
			c.ErrorMessage = pubErr.Error()
			return nil
		}); err != nil {
			logger.Error("publish_failure_save_failed", "post", post.ID, "platform", platform, "error", err)
		}
		return "", pubErr
	}

	telemetry.PublishOK(string(platform))
	logger.Info("publish_succeeded", "post", post.ID, "platform", platform, "external_id", externalID)
	if _, err := s.save(post.ID, func(p *models.ThoughtPost) error {
		c := p.Content(platform)
		if c == nil {
			return fmt.Errorf("no enriched content for platform %s", platform)
		}
		c.Status = models.StatusPosted
		c.PostID = externalID
		c.ErrorMessage = ""
		return nil
	}); err != nil {
		return "", err
	}
	return externalID, nil
}
