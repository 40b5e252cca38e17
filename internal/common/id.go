package common

import (
	"github.com/google/uuid"
)

// NewID generates a unique record ID
func NewID() string {
	return uuid.New().String()
}
