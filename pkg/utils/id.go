package utils

import "github.com/google/uuid"

// GenID returns a new random identifier for posts, history entries and
// correlation ids.
func GenID() string {
	return uuid.NewString()
}
