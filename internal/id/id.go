// Package id provides run and job ID generation.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 strings; the time-ordered prefix keeps IDs
// sortable by submission order.
type Generator struct{}

// NewGenerator returns a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	v, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return v.String(), nil
}
