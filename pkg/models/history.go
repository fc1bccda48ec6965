package models

import "time"

// ActionType classifies the mutation that produced a history entry.
type ActionType string

const (
	ActionCreate       ActionType = "CREATE"
	ActionUpdate       ActionType = "UPDATE"
	ActionStatusChange ActionType = "STATUS_CHANGE"
	ActionApprove      ActionType = "APPROVE"
	ActionReject       ActionType = "REJECT"
	ActionPost         ActionType = "POST"
	ActionDelete       ActionType = "DELETE"
)

// HistoryEntry is an immutable snapshot of a post taken on every
// state-changing operation. Entries are append-only and outlive the post
// itself so audits remain possible after deletion.
type HistoryEntry struct {
	ID          string     `json:"id"`
	PostID      string     `json:"post_id"`
	Version     int64      `json:"version"`
	ActionType  ActionType `json:"action_type"`
	PerformedBy string     `json:"performed_by"`
	CreatedAt   time.Time  `json:"created_at"`

	// Snapshot of the post state at this version.
	UserID             string              `json:"user_id,omitempty"`
	OriginalThought    string              `json:"original_thought,omitempty"`
	PlatformSelections []PlatformSelection `json:"platform_selections,omitempty"`
	EnrichedContents   []EnrichedContent   `json:"enriched_contents,omitempty"`
	SelectedPlatforms  []Platform          `json:"selected_platforms,omitempty"`
	Status             Status              `json:"status,omitempty"`
	ErrorMessage       string              `json:"error_message,omitempty"`
}

// SnapshotHistory builds a history entry from the current post state.
func SnapshotHistory(p *ThoughtPost, action ActionType, performedBy string) HistoryEntry {
	return HistoryEntry{
		PostID:             p.ID,
		Version:            p.Version,
		ActionType:         action,
		PerformedBy:        performedBy,
		CreatedAt:          time.Now().UTC(),
		UserID:             p.UserID,
		OriginalThought:    p.OriginalThought,
		PlatformSelections: append([]PlatformSelection(nil), p.PlatformSelections...),
		EnrichedContents:   append([]EnrichedContent(nil), p.EnrichedContents...),
		SelectedPlatforms:  append([]Platform(nil), p.SelectedPlatforms...),
		Status:             p.Status,
		ErrorMessage:       p.ErrorMessage,
	}
}
