// Package enrich implements the correlation protocol with the external AI
// agent: request emission, response consumption and the incremental merge
// of agent output into a post. The post id doubles as the correlation id
// for the life of the exchange.
package enrich

import (
	"time"

	"thoughtpost/pkg/models"
)

// Agent-reported response statuses.
const (
	ResponseInProgress         = "in_progress"
	ResponseCompleted          = "completed"
	ResponsePartiallyCompleted = "partially_completed"
	ResponseFailed             = "failed"
)

// Request is the message sent to the agent for enrichment or
// re-enrichment of a post.
type Request struct {
	RequestID              string                  `json:"request_id"`
	UserID                 string                  `json:"user_id"`
	OriginalThought        string                  `json:"original_thought"`
	AdditionalInstructions string                  `json:"additional_instructions,omitempty"`
	ModelRole              string                  `json:"model_role,omitempty"`
	PlatformConfigurations []PlatformConfiguration `json:"platform_configurations"`

	// TargetPlatform narrows a refinement run to a single platform; when
	// set only that platform's configuration is included so already
	// enriched platforms stay untouched.
	TargetPlatform              models.Platform `json:"target_platform,omitempty"`
	ImageRefinementInstructions string          `json:"image_refinement_instructions,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// PlatformConfiguration carries the resolved prompts and generation
// parameters for one platform.
type PlatformConfiguration struct {
	Platform          models.Platform          `json:"platform"`
	TextPrompt        string                   `json:"text_prompt,omitempty"`
	ImagePrompt       string                   `json:"image_prompt,omitempty"`
	VideoPrompt       string                   `json:"video_prompt,omitempty"`
	AdditionalContext string                   `json:"additional_context,omitempty"`
	ImageParams       *models.GenerationParams `json:"image_params,omitempty"`
	VideoParams       *models.GenerationParams `json:"video_params,omitempty"`
}

// Response is the message the agent sends back. One request may produce
// several responses (progressive enrichment), delivered at least once and
// in no guaranteed order.
type Response struct {
	RequestID        string            `json:"request_id"`
	UserID           string            `json:"user_id"`
	Status           string            `json:"status"`
	EnrichedContents []ContentMessage  `json:"enriched_contents,omitempty"`
	FailedPlatforms  []models.Platform `json:"failed_platforms,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	ProcessedAt      time.Time         `json:"processed_at,omitempty"`
}

// ContentMessage is one platform's slice of a response.
type ContentMessage struct {
	Platform       models.Platform `json:"platform"`
	Title          string          `json:"title,omitempty"`
	Body           string          `json:"body,omitempty"`
	Hashtags       []string        `json:"hashtags,omitempty"`
	CallToAction   string          `json:"call_to_action,omitempty"`
	CharacterCount int             `json:"character_count,omitempty"`
	Progress       float64         `json:"progress,omitempty"`
	Images         []ImageMessage  `json:"images,omitempty"`
}

// ImageMessage is one generated image in a response. Its id is the
// idempotency key against redelivery.
type ImageMessage struct {
	ID        string    `json:"id"`
	Data      string    `json:"data,omitempty"`
	Format    string    `json:"format,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
