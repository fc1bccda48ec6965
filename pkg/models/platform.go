package models

import (
	"fmt"
	"strings"
)

// Platform identifies a social network a post can target. The set is
// closed; unknown values are rejected at the API and channel boundaries.
type Platform string

const (
	PlatformLinkedIn  Platform = "LINKEDIN"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformInstagram Platform = "INSTAGRAM"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformLinkedIn, PlatformFacebook, PlatformInstagram}
}

// ParsePlatform parses a platform name case-insensitively. The agent sends
// lowercase names ("linkedin"), the API accepts either casing.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PlatformLinkedIn):
		return PlatformLinkedIn, nil
	case string(PlatformFacebook):
		return PlatformFacebook, nil
	case string(PlatformInstagram):
		return PlatformInstagram, nil
	}
	return "", fmt.Errorf("unknown platform %q (supported: LINKEDIN, FACEBOOK, INSTAGRAM)", s)
}

// UnmarshalJSON accepts quoted platform names in either casing and rejects
// anything outside the closed set.
func (p *Platform) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := ParsePlatform(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PromptType classifies a stored prompt preset.
type PromptType string

const (
	PromptText   PromptType = "TEXT"
	PromptImage  PromptType = "IMAGE"
	PromptVideo  PromptType = "VIDEO"
	PromptOthers PromptType = "OTHERS"
)

// ParsePromptType is lenient: unknown values map to OTHERS so older
// presets keep loading.
func ParsePromptType(s string) PromptType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PromptText):
		return PromptText
	case string(PromptImage):
		return PromptImage
	case string(PromptVideo):
		return PromptVideo
	}
	return PromptOthers
}
