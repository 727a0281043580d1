// Package testutil provides common testing utilities and a scriptable
// fake of the LV-COP platform API.
package testutil

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a new UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}
