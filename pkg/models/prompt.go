package models

import "time"

// Category selects the enrichment persona the agent writes as.
type Category struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SearchDescription string    `json:"search_description,omitempty"`
	ModelRole         string    `json:"model_role,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// Prompt is a stored per-platform prompt preset.
type Prompt struct {
	ID        string     `json:"id"`
	Platform  Platform   `json:"platform"`
	Type      PromptType `json:"type"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}
