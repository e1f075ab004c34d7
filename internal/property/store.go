package property

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExists is returned by Create when the entity is already present
	ErrExists = errors.New("entity already exists")

	// ErrIO wraps failures of the underlying storage medium
	ErrIO = errors.New("storage failure")

	// ErrInvalidPath is returned for paths that cannot be mapped onto the store
	ErrInvalidPath = errors.New("invalid property path")
)

// Path addresses an entity inside the store, e.g. {"host", "a.example.org"}.
type Path []string

// Child returns a new path with the given segments appended.
func (p Path) Child(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Validate checks that every segment can be used as a single directory name.
func (p Path) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("empty path: %w", ErrInvalidPath)
	}
	for _, s := range p {
		if err := validateName(s); err != nil {
			return fmt.Errorf("path %q: %w", p.String(), err)
		}
	}
	return nil
}

func validateName(name string) error {
	// Leading dots are reserved for temporary files.
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("bad segment %q: %w", name, ErrInvalidPath)
	}
	return nil
}

// Store persists entities and their scalar, list and mapping properties.
//
// Entities are containers addressed by a Path. Fields are named properties of
// one entity; a field holds exactly one shape.
type Store interface {
	// Create creates the entity exclusively, returning ErrExists if present.
	// Missing ancestors are created.
	Create(ctx context.Context, entity Path) error
	// Ensure creates the entity if it is missing and leaves it untouched otherwise.
	Ensure(ctx context.Context, entity Path) error
	Exists(ctx context.Context, entity Path) (bool, error)
	// Remove deletes the entity together with all fields and descendants.
	Remove(ctx context.Context, entity Path) error
	// Children lists the names of direct child entities, sorted.
	Children(ctx context.Context, entity Path) ([]string, error)

	GetScalar(ctx context.Context, entity Path, field string) (string, bool, error)
	SetScalar(ctx context.Context, entity Path, field, value string) error
	UnsetScalar(ctx context.Context, entity Path, field string) error

	ListItems(ctx context.Context, entity Path, field string) ([]string, error)
	ListAppend(ctx context.Context, entity Path, field, value string) error
	// ListPop removes and returns the last item; ok is false for an empty list.
	ListPop(ctx context.Context, entity Path, field string) (value string, ok bool, err error)

	MapKeys(ctx context.Context, entity Path, field string) ([]string, error)
	MapGet(ctx context.Context, entity Path, field, key string) (string, bool, error)
	MapSet(ctx context.Context, entity Path, field, key, value string) error
	// MapDelete removes key; ok is false when it was not present.
	MapDelete(ctx context.Context, entity Path, field, key string) (ok bool, err error)

	Close() error
}

func wrapIO(op string, p Path, err error) error {
	return fmt.Errorf("%s %s: %w: %v", op, p.String(), ErrIO, err)
}
