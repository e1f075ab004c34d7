package repository

import (
	"errors"
	"fmt"

	"github.com/jbweber/homelab/cinv/internal/domain"
)

// Common repository errors that can be checked with errors.Is()
var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when attempting to create an entity that already exists
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrConflict is returned when a value is already held by another entity
	ErrConflict = errors.New("conflict")

	// ErrHasChildren is returned when deleting an entity that still owns resources
	ErrHasChildren = errors.New("entity has children")

	// ErrExhausted is returned when an allocator has no address left to hand out
	ErrExhausted = errors.New("address space exhausted")
)

// invalid wraps a domain validation failure so that both ErrInvalidEntity
// and domain.ErrValidation match.
func invalid(err error) error {
	if errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	return err
}
