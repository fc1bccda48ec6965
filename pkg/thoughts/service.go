// Package thoughts is the lifecycle orchestrator for thought posts. It is
// the only writer of post and per-platform statuses; the HTTP layer, the
// channel consumer and the retry scheduler all drive mutations through it.
package thoughts

import (
	"context"
	"errors"
	"fmt"

	"thoughtpost/pkg/enrich"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/store"
	"thoughtpost/pkg/telemetry"
	"thoughtpost/pkg/utils"
)

var (
	// ErrNotApprovable rejects approval from a state other than
	// ENRICHED, FAILED or PARTIALLY_COMPLETED.
	ErrNotApprovable = errors.New("post is not ready for approval")
	// ErrNotPostable rejects publish attempts outside APPROVED, POSTING
	// and FAILED.
	ErrNotPostable = errors.New("post is not in a postable state")
	// ErrAlreadyPosted blocks edits and re-enrichment after publication.
	ErrAlreadyPosted = errors.New("post has already been published")
)

// systemActor marks mutations performed by the orchestrator itself
// (channel consumer, scheduler) rather than a user.
const systemActor = "system"

// RequestSender emits enrichment requests; implemented by enrich.Emitter.
type RequestSender interface {
	Send(ctx context.Context, p *models.ThoughtPost, opts enrich.Options) (bool, error)
}

// Publisher fans an approved post out to its platforms; implemented by
// social.Service.
type Publisher interface {
	PublishToSelectedPlatforms(ctx context.Context, post *models.ThoughtPost) (map[models.Platform]string, error)
}

// Service owns all lifecycle transitions of a post.
type Service struct {
	emitter   RequestSender
	publisher Publisher
}

// NewService wires the orchestrator with its collaborators.
func NewService(emitter RequestSender, publisher Publisher) *Service {
	return &Service{emitter: emitter, publisher: publisher}
}

// CreateRequest is the input for a new thought post.
type CreateRequest struct {
	Thought                string           `json:"thought"`
	CategoryID             string           `json:"category_id,omitempty"`
	AdditionalInstructions string           `json:"additional_instructions,omitempty"`
	PlatformConfigs        []PlatformConfig `json:"platform_configs"`
}

// PlatformConfig is one targeted platform with its presets.
type PlatformConfig struct {
	Platform          models.Platform          `json:"platform"`
	PresetID          string                   `json:"preset_id,omitempty"`
	ImagePresetID     string                   `json:"image_preset_id,omitempty"`
	VideoPresetID     string                   `json:"video_preset_id,omitempty"`
	AdditionalContext string                   `json:"additional_context,omitempty"`
	ImageParams       *models.GenerationParams `json:"image_params,omitempty"`
	VideoParams       *models.GenerationParams `json:"video_params,omitempty"`
}

// ApproveRequest carries the user's review outcome.
type ApproveRequest struct {
	TextContentComments  string `json:"text_content_comments,omitempty"`
	ImageContentComments string `json:"image_content_comments,omitempty"`
	PostText             bool   `json:"post_text"`
	PostImage            bool   `json:"post_image"`
}

// Create stores a new PENDING post, records its creation and sends the
// enrichment request. The caller gets the post back immediately —
// enrichment completes asynchronously through the response consumer.
func (s *Service) Create(ctx context.Context, req CreateRequest, userID string) (*models.ThoughtPost, error) {
	if req.Thought == "" {
		return nil, fmt.Errorf("original thought is required")
	}
	if len(req.PlatformConfigs) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}

	selections := make([]models.PlatformSelection, 0, len(req.PlatformConfigs))
	platforms := make([]models.Platform, 0, len(req.PlatformConfigs))
	seen := make(map[models.Platform]struct{})
	for _, pc := range req.PlatformConfigs {
		if _, dup := seen[pc.Platform]; dup {
			return nil, fmt.Errorf("duplicate platform %s", pc.Platform)
		}
		seen[pc.Platform] = struct{}{}
		selections = append(selections, models.PlatformSelection{
			Platform:          pc.Platform,
			PresetID:          pc.PresetID,
			ImagePresetID:     pc.ImagePresetID,
			VideoPresetID:     pc.VideoPresetID,
			AdditionalContext: pc.AdditionalContext,
			ImageParams:       pc.ImageParams,
			VideoParams:       pc.VideoParams,
		})
		platforms = append(platforms, pc.Platform)
	}

	post := &models.ThoughtPost{
		ID:                     utils.GenID(),
		UserID:                 userID,
		CategoryID:             req.CategoryID,
		OriginalThought:        req.Thought,
		AdditionalInstructions: req.AdditionalInstructions,
		PlatformSelections:     selections,
		SelectedPlatforms:      platforms,
		Status:                 models.StatusPending,
		PostText:               true,
		PostImage:              true,
		CreatedBy:              userID,
	}

	saved, err := store.SavePost(post)
	if err != nil {
		return nil, err
	}
	s.record(saved, models.ActionCreate, userID)
	telemetry.PostCreated()

	saved, err = s.sendToAgent(ctx, saved, enrich.Options{AdditionalInstructions: req.AdditionalInstructions})
	if err != nil {
		// The post exists; enrichment can be re-driven later.
		logger.Error("enrich_request_failed", "post", saved.ID, "error", err)
	}
	logger.Info("post_created", "post", saved.ID, "user", userID, "platforms", len(platforms))
	return saved, nil
}

// Get returns a post owned by userID.
func (s *Service) Get(id, userID string) (*models.ThoughtPost, error) {
	return s.owned(id, userID)
}

// ListByUser returns all posts owned by userID.
func (s *Service) ListByUser(userID string) ([]*models.ThoughtPost, error) {
	return store.ListPostsByUser(userID)
}

// ListByUserAndStatus filters the user's posts by lifecycle status.
func (s *Service) ListByUserAndStatus(userID string, status models.Status) ([]*models.ThoughtPost, error) {
	return store.ListPostsByUserAndStatus(userID, status)
}

// ListByUserAndStatusNot returns the user's posts excluding one status.
func (s *Service) ListByUserAndStatusNot(userID string, status models.Status) ([]*models.ThoughtPost, error) {
	return store.ListPostsByUserAndStatusNot(userID, status)
}

// ListByUserAndPlatform filters the user's posts by targeted platform.
func (s *Service) ListByUserAndPlatform(userID string, platform models.Platform) ([]*models.ThoughtPost, error) {
	return store.ListPostsByUserAndPlatform(userID, platform)
}

// History returns the audit trail for a post, newest first. It stays
// available after the post is deleted.
func (s *Service) History(id, userID string) ([]models.HistoryEntry, error) {
	if _, err := s.owned(id, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	entries, err := store.ListHistory(id)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 && entries[0].UserID != userID {
		return nil, fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	return entries, nil
}

// Approve accepts the enriched content, stores the review outcome and
// kicks off the first publish attempt.
func (s *Service) Approve(ctx context.Context, id, userID string, req ApproveRequest) (*models.ThoughtPost, error) {
	if _, err := s.owned(id, userID); err != nil {
		return nil, err
	}
	saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
		if !p.Status.Approvable() {
			return fmt.Errorf("%w (status %s)", ErrNotApprovable, p.Status)
		}
		p.Status = models.StatusApproved
		p.UpdatedBy = userID
		p.TextContentComments = req.TextContentComments
		p.ImageContentComments = req.ImageContentComments
		p.PostText = req.PostText
		p.PostImage = req.PostImage
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(saved, models.ActionApprove, userID)
	logger.Info("post_approved", "post", id, "user", userID)

	if err := s.AttemptPosting(ctx, id); err != nil {
		logger.Warn("initial_post_attempt_failed", "post", id, "error", err)
	}
	return store.GetPost(id)
}

// Reject declines the enriched content; terminal.
func (s *Service) Reject(id, userID string) (*models.ThoughtPost, error) {
	if _, err := s.owned(id, userID); err != nil {
		return nil, err
	}
	saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
		if !p.Status.Approvable() {
			return fmt.Errorf("%w (status %s)", ErrNotApprovable, p.Status)
		}
		p.Status = models.StatusRejected
		p.UpdatedBy = userID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(saved, models.ActionReject, userID)
	logger.Info("post_rejected", "post", id, "user", userID)
	return saved, nil
}

// UpdateContent applies manual edits to the per-platform text fields,
// preserving publish state and retry bookkeeping.
func (s *Service) UpdateContent(id, userID string, contents []models.EnrichedContent) (*models.ThoughtPost, error) {
	if _, err := s.owned(id, userID); err != nil {
		return nil, err
	}
	saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
		if p.Status == models.StatusPosted {
			return ErrAlreadyPosted
		}
		for i := range contents {
			in := &contents[i]
			ec := p.Content(in.Platform)
			if ec == nil {
				p.EnrichedContents = append(p.EnrichedContents, models.EnrichedContent{
					Platform: in.Platform,
					Status:   models.StatusPending,
				})
				ec = &p.EnrichedContents[len(p.EnrichedContents)-1]
			}
			ec.Title = in.Title
			ec.Body = in.Body
			ec.Hashtags = append([]string(nil), in.Hashtags...)
			ec.CallToAction = in.CallToAction
			ec.CharacterCount = in.CharacterCount
		}
		p.UpdatedBy = userID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(saved, models.ActionUpdate, userID)
	return saved, nil
}

// Reenrich sends the post back to the agent. Allowed from any non-POSTED
// state; a superseded in-flight response is later absorbed by the merge.
func (s *Service) Reenrich(ctx context.Context, id, userID string, opts enrich.Options) (*models.ThoughtPost, error) {
	cur, err := s.owned(id, userID)
	if err != nil {
		return nil, err
	}
	if cur.Status == models.StatusPosted {
		return nil, ErrAlreadyPosted
	}
	saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
		p.UpdatedBy = userID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(saved, models.ActionUpdate, userID)
	return s.sendToAgent(ctx, saved, opts)
}

// Repost resets a post to PENDING, discarding enrichment, and requests a
// fresh run.
func (s *Service) Repost(ctx context.Context, id, userID string) (*models.ThoughtPost, error) {
	if _, err := s.owned(id, userID); err != nil {
		return nil, err
	}
	saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
		p.Status = models.StatusPending
		p.EnrichedContents = nil
		p.ErrorMessage = ""
		p.UpdatedBy = userID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(saved, models.ActionUpdate, userID)
	logger.Info("post_reset_for_repost", "post", id, "user", userID)
	return s.sendToAgent(ctx, saved, enrich.Options{AdditionalInstructions: "Reposting this thought."})
}

// Delete removes a post, writing the final DELETE history entry first so
// the audit trail outlives the document.
func (s *Service) Delete(id, userID string) error {
	cur, err := s.owned(id, userID)
	if err != nil {
		return err
	}
	s.record(cur, models.ActionDelete, userID)
	if err := store.DeletePost(id); err != nil {
		return err
	}
	logger.Info("post_deleted_by_user", "post", id, "user", userID)
	return nil
}

// AttemptPosting drives one publish pass over the post's platforms. It is
// shared by manual approval and the retry scheduler, and is safe to call
// repeatedly: platforms already POSTED are skipped as successes.
func (s *Service) AttemptPosting(ctx context.Context, id string) error {
	post, err := store.GetPost(id)
	if err != nil {
		return err
	}
	if !post.Status.Postable() {
		logger.Warn("post_not_postable", "post", id, "status", post.Status)
		return fmt.Errorf("%w (status %s)", ErrNotPostable, post.Status)
	}

	if post.AllPosted() {
		_, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
			p.Status = models.StatusPosted
			return nil
		})
		return err
	}

	post, err = store.UpdatePost(id, func(p *models.ThoughtPost) error {
		p.Status = models.StatusPosting
		return nil
	})
	if err != nil {
		return err
	}

	_, pubErr := s.publisher.PublishToSelectedPlatforms(ctx, post)

	// Re-read: the fan-out persisted per-platform outcomes.
	post, err = store.GetPost(id)
	if err != nil {
		return err
	}
	if post.AllPosted() {
		saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
			p.Status = models.StatusPosted
			p.ErrorMessage = ""
			return nil
		})
		if err != nil {
			return err
		}
		s.record(saved, models.ActionPost, systemActor)
		logger.Info("post_fully_published", "post", id)
		return nil
	}

	msg := "one or more platforms failed to publish"
	if pubErr != nil {
		msg = pubErr.Error()
	}
	saved, err := store.UpdatePost(id, func(p *models.ThoughtPost) error {
		p.Status = models.StatusFailed
		p.ErrorMessage = msg
		return nil
	})
	if err != nil {
		return err
	}
	s.record(saved, models.ActionStatusChange, systemActor)
	logger.Info("post_attempt_incomplete", "post", id, "error", msg)
	return nil
}

// HandleAgentResponse merges one agent response into the post. Called by
// the channel consumer; redeliveries and reordering are absorbed by the
// merge, and the CAS loop in the store handles concurrent writers. A post
// in a terminal state ignores late responses so a redelivery can never
// regress POSTED or REJECTED.
func (s *Service) HandleAgentResponse(ctx context.Context, msg *enrich.Response) error {
	telemetry.EnrichResponse(msg.Status)
	var dropped bool
	saved, err := store.UpdatePost(msg.RequestID, func(p *models.ThoughtPost) error {
		if p.Status.Terminal() {
			dropped = true
			return nil
		}
		dropped = false
		enrich.Merge(p, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply agent response for %s: %w", msg.RequestID, err)
	}
	if dropped {
		logger.Warn("agent_response_after_terminal", "post", msg.RequestID, "status", saved.Status)
		return nil
	}
	s.record(saved, models.ActionStatusChange, systemActor)
	logger.Info("agent_response_applied", "post", msg.RequestID, "status", saved.Status)
	return nil
}

// sendToAgent publishes the enrichment request and, when one was actually
// sent, moves the post to PROCESSING.
func (s *Service) sendToAgent(ctx context.Context, post *models.ThoughtPost, opts enrich.Options) (*models.ThoughtPost, error) {
	sent, err := s.emitter.Send(ctx, post, opts)
	if err != nil {
		return post, err
	}
	if !sent {
		return post, nil
	}
	return store.UpdatePost(post.ID, func(p *models.ThoughtPost) error {
		p.Status = models.StatusProcessing
		return nil
	})
}

func (s *Service) owned(id, userID string) (*models.ThoughtPost, error) {
	post, err := store.GetPost(id)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	return post, nil
}

func (s *Service) record(p *models.ThoughtPost, action models.ActionType, actor string) {
	if err := store.AppendHistory(models.SnapshotHistory(p, action, actor)); err != nil {
		logger.Error("history_append_failed", "post", p.ID, "action", action, "error", err)
	}
}
