package models

import (
	"fmt"
	"strings"
)

// Status tracks a thought post through its lifecycle. The same set is used
// for the per-platform publishing sub-state, which only ever moves through
// PENDING -> POSTING -> POSTED/FAILED.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusProcessing         Status = "PROCESSING"
	StatusEnriched           Status = "ENRICHED"
	StatusPartiallyCompleted Status = "PARTIALLY_COMPLETED"
	StatusApproved           Status = "APPROVED"
	StatusPosting            Status = "POSTING"
	StatusPosted             Status = "POSTED"
	StatusFailed             Status = "FAILED"
	StatusRejected           Status = "REJECTED"
)

// ParseStatus parses a lifecycle status case-insensitively and rejects
// unknown variants.
func ParseStatus(s string) (Status, error) {
	up := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch up {
	case StatusPending, StatusProcessing, StatusEnriched, StatusPartiallyCompleted,
		StatusApproved, StatusPosting, StatusPosted, StatusFailed, StatusRejected:
		return up, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Approvable reports whether a post in this status may be approved for
// publishing. FAILED is included so a user can force a publish retry after
// an agent-reported failure, matching the partial-enrichment policy.
func (s Status) Approvable() bool {
	switch s {
	case StatusEnriched, StatusFailed, StatusPartiallyCompleted:
		return true
	}
	return false
}

// Postable reports whether the posting path may be (re)entered. POSTING is
// included so a crash mid-publish can be recovered by the scheduler.
func (s Status) Postable() bool {
	switch s {
	case StatusApproved, StatusPosting, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle transitions are expected.
// FAILED is intentionally not terminal: re-enrichment and publish retries
// can both leave it.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusRejected
}
