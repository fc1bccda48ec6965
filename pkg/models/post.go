package models

import "time"

// ThoughtPost is the aggregate root: a user-submitted idea plus the
// per-platform content derived from it and its lifecycle state.
type ThoughtPost struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	CategoryID string `json:"category_id,omitempty"`

	OriginalThought        string `json:"original_thought"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`

	// PlatformSelections is the ordered set of platforms the user targeted,
	// one entry per platform, with the presets used to build the
	// enrichment request.
	PlatformSelections []PlatformSelection `json:"platform_selections,omitempty"`

	// SelectedPlatforms is derived from PlatformSelections and kept for
	// cheap filtering.
	SelectedPlatforms []Platform `json:"selected_platforms,omitempty"`

	// EnrichedContents holds at most one entry per platform, populated
	// incrementally by the enrichment response consumer.
	EnrichedContents []EnrichedContent `json:"enriched_contents,omitempty"`

	Status Status `json:"status"`

	// Version is bumped by the store on every save and doubles as the
	// optimistic-concurrency token and the history snapshot key.
	Version int64 `json:"version"`

	TextContentComments  string `json:"text_content_comments,omitempty"`
	ImageContentComments string `json:"image_content_comments,omitempty"`
	PostText             bool   `json:"post_text"`
	PostImage            bool   `json:"post_image"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// PlatformSelection captures what the user chose for one platform.
type PlatformSelection struct {
	Platform          Platform          `json:"platform"`
	PresetID          string            `json:"preset_id,omitempty"`
	ImagePresetID     string            `json:"image_preset_id,omitempty"`
	VideoPresetID     string            `json:"video_preset_id,omitempty"`
	AdditionalContext string            `json:"additional_context,omitempty"`
	ImageParams       *GenerationParams `json:"image_params,omitempty"`
	VideoParams       *GenerationParams `json:"video_params,omitempty"`
}

// GenerationParams tunes image/video generation for one platform.
type GenerationParams struct {
	Style       string            `json:"style,omitempty"`
	AspectRatio string            `json:"aspect_ratio,omitempty"`
	Count       int               `json:"count,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// EnrichedContent is the per-platform sub-aggregate. Its Status moves only
// through PENDING -> POSTING -> POSTED/FAILED.
type EnrichedContent struct {
	Platform       Platform         `json:"platform"`
	Title          string           `json:"title,omitempty"`
	Body           string           `json:"body,omitempty"`
	Hashtags       []string         `json:"hashtags,omitempty"`
	CallToAction   string           `json:"call_to_action,omitempty"`
	CharacterCount int              `json:"character_count,omitempty"`
	Images         []GeneratedImage `json:"images,omitempty"`

	Status Status `json:"status"`
	// PostID is the external platform identifier once published.
	PostID string `json:"post_id,omitempty"`

	RetryCount  int        `json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`

	// Progress is the fractional completion (0.0-1.0) reported by the
	// agent during long-running generation.
	Progress     float64 `json:"progress,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// GeneratedImage is one AI-generated image candidate for a content slot.
type GeneratedImage struct {
	ID     string `json:"id"`
	Data   string `json:"data,omitempty"`
	Format string `json:"format,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// Selected marks the image chosen for its slot; slots are identified
	// by Tag and carry exactly one selected image each.
	Selected  bool      `json:"selected"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Content returns the enriched content for a platform, or nil.
func (p *ThoughtPost) Content(platform Platform) *EnrichedContent {
	for i := range p.EnrichedContents {
		if p.EnrichedContents[i].Platform == platform {
			return &p.EnrichedContents[i]
		}
	}
	return nil
}

// AllPosted reports whether every enriched content entry has been posted.
// A post with no enriched content at all is not considered posted.
func (p *ThoughtPost) AllPosted() bool {
	if len(p.EnrichedContents) == 0 {
		return false
	}
	for i := range p.EnrichedContents {
		if p.EnrichedContents[i].Status != StatusPosted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so read-transform-write cycles never mutate a
// shared aggregate in place.
func (p *ThoughtPost) Clone() *ThoughtPost {
	cp := *p
	cp.PlatformSelections = append([]PlatformSelection(nil), p.PlatformSelections...)
	for i := range cp.PlatformSelections {
		if ip := cp.PlatformSelections[i].ImageParams; ip != nil {
			v := *ip
			cp.PlatformSelections[i].ImageParams = &v
		}
		if vp := cp.PlatformSelections[i].VideoParams; vp != nil {
			v := *vp
			cp.PlatformSelections[i].VideoParams = &v
		}
	}
	cp.SelectedPlatforms = append([]Platform(nil), p.SelectedPlatforms...)
	cp.EnrichedContents = append([]EnrichedContent(nil), p.EnrichedContents...)
	for i := range cp.EnrichedContents {
		ec := &cp.EnrichedContents[i]
		ec.Hashtags = append([]string(nil), ec.Hashtags...)
		ec.Images = append([]GeneratedImage(nil), ec.Images...)
		if ec.LastRetryAt != nil {
			t := *ec.LastRetryAt
			ec.LastRetryAt = &t
		}
	}
	return &cp
}
