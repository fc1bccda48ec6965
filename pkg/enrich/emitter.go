package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/models"
	"thoughtpost/pkg/store"
)

// Sender is the publish half of the message bus.
type Sender interface {
	Publish(ctx context.Context, stream, key string, v any) error
}

// defaultPrompts back a platform when no preset is stored for it.
var defaultPrompts = map[models.Platform]string{
	models.PlatformLinkedIn:  "Write a professional LinkedIn post expanding on the idea. Keep it under 3000 characters and suggest relevant hashtags.",
	models.PlatformFacebook:  "Write an engaging, conversational Facebook post expanding on the idea. Suggest relevant hashtags.",
	models.PlatformInstagram: "Write a short, punchy Instagram caption for the idea with a strong hook and relevant hashtags.",
}

// Options shape one enrichment request beyond the post itself.
type Options struct {
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
	// TargetPlatform, when set, restricts the request to a single
	// platform for refinement flows.
	TargetPlatform              models.Platform `json:"target_platform,omitempty"`
	ImageRefinementInstructions string          `json:"image_refinement_instructions,omitempty"`
}

// Emitter builds correlated enrichment requests and publishes them on the
// request stream.
type Emitter struct {
	bus    Sender
	stream string
}

// NewEmitter returns an Emitter publishing to stream via bus.
func NewEmitter(bus Sender, stream string) *Emitter {
	return &Emitter{bus: bus, stream: stream}
}

// Send builds and publishes an enrichment request for the post. It returns
// false without sending when every targeted platform is already enriched
// (nothing left to ask for on a partial retry).
func (e *Emitter) Send(ctx context.Context, p *models.ThoughtPost, opts Options) (bool, error) {
	req, err := e.buildRequest(p, opts)
	if err != nil {
		return false, err
	}
	if len(req.PlatformConfigurations) == 0 {
		logger.Info("enrich_request_skipped_all_enriched", "post", p.ID)
		return false, nil
	}
	if err := e.bus.Publish(ctx, e.stream, p.ID, req); err != nil {
		return false, fmt.Errorf("failed to publish enrichment request for %s: %w", p.ID, err)
	}
	logger.Info("enrich_request_sent", "post", p.ID, "platforms", len(req.PlatformConfigurations),
		"target", string(opts.TargetPlatform))
	return true, nil
}

func (e *Emitter) buildRequest(p *models.ThoughtPost, opts Options) (*Request, error) {
	category := e.resolveCategory(p.CategoryID)

	var configs []PlatformConfiguration
	for i := range p.PlatformSelections {
		sel := &p.PlatformSelections[i]
		if opts.TargetPlatform != "" && sel.Platform != opts.TargetPlatform {
			continue
		}
		// On a partial retry, skip platforms that already carry content —
		// unless this is an explicit single-platform refinement.
		if opts.TargetPlatform == "" && p.Status == models.StatusPartiallyCompleted && p.Content(sel.Platform) != nil {
			continue
		}
		configs = append(configs, PlatformConfiguration{
			Platform:          sel.Platform,
			TextPrompt:        e.resolvePrompt(sel.PresetID, sel.Platform, models.PromptText),
			ImagePrompt:       e.resolvePrompt(sel.ImagePresetID, sel.Platform, models.PromptImage),
			VideoPrompt:       e.resolvePrompt(sel.VideoPresetID, sel.Platform, models.PromptVideo),
			AdditionalContext: sel.AdditionalContext,
			ImageParams:       sel.ImageParams,
			VideoParams:       sel.VideoParams,
		})
	}

	instructions := opts.AdditionalInstructions
	if instructions == "" {
		instructions = p.AdditionalInstructions
	}

	req := &Request{
		RequestID:                   p.ID,
		UserID:                      p.UserID,
		OriginalThought:             p.OriginalThought,
		AdditionalInstructions:      instructions,
		PlatformConfigurations:      configs,
		TargetPlatform:              opts.TargetPlatform,
		ImageRefinementInstructions: opts.ImageRefinementInstructions,
		Version:                     p.Version,
		CreatedAt:                   time.Now().UTC(),
	}
	if category != nil {
		req.ModelRole = category.ModelRole
	}
	return req, nil
}

// resolveCategory looks up the post's category, falling back to the
// "Default" category when unset or missing.
func (e *Emitter) resolveCategory(id string) *models.Category {
	if id != "" {
		if c, err := store.GetCategory(id); err == nil {
			return c
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("category_lookup_failed", "category", id, "error", err)
		}
	}
	c, err := store.FindCategoryByName("Default")
	if err != nil {
		return nil
	}
	return c
}

// resolvePrompt resolves prompt text: preset id first, then the first
// stored prompt of the right type for the platform, then the built-in
// default (text prompts only).
func (e *Emitter) resolvePrompt(presetID string, platform models.Platform, typ models.PromptType) string {
	if presetID != "" {
		if pr, err := store.GetPrompt(presetID); err == nil {
			return pr.Text
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("prompt_lookup_failed", "prompt", presetID, "error", err)
		}
	}
	if prompts, err := store.FindPromptsByPlatform(platform, typ); err == nil && len(prompts) > 0 {
		return prompts[0].Text
	}
	if typ == models.PromptText {
		return defaultPrompts[platform]
	}
	return ""
}
