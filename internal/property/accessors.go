package property

import (
	"context"
	"slices"
)

// Scalar is a single string value stored under one field of an entity.
type Scalar struct {
	Store  Store
	Entity Path
	Field  string
}

// Get returns the stored value, or "" and false if the field is unset.
func (s Scalar) Get(ctx context.Context) (string, bool, error) {
	return s.Store.GetScalar(ctx, s.Entity, s.Field)
}

// Value returns the stored value, or "" if unset.
func (s Scalar) Value(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx)
	return v, err
}

func (s Scalar) Set(ctx context.Context, value string) error {
	return s.Store.SetScalar(ctx, s.Entity, s.Field, value)
}

func (s Scalar) Unset(ctx context.Context) error {
	return s.Store.UnsetScalar(ctx, s.Entity, s.Field)
}

// List is an ordered list of strings. Free lists use it as a stack.
type List struct {
	Store  Store
	Entity Path
	Field  string
}

// Items returns all elements in insertion order.
func (l List) Items(ctx context.Context) ([]string, error) {
	return l.Store.ListItems(ctx, l.Entity, l.Field)
}

// Push appends value to the end of the list.
func (l List) Push(ctx context.Context, value string) error {
	return l.Store.ListAppend(ctx, l.Entity, l.Field, value)
}

// Pop removes and returns the most recently pushed value.
func (l List) Pop(ctx context.Context) (string, bool, error) {
	return l.Store.ListPop(ctx, l.Entity, l.Field)
}

func (l List) Contains(ctx context.Context, value string) (bool, error) {
	items, err := l.Items(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(items, value), nil
}

func (l List) Len(ctx context.Context) (int, error) {
	items, err := l.Items(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Map is a mapping of string keys to string values. Key order from the
// store is not meaningful; Keys sorts.
type Map struct {
	Store  Store
	Entity Path
	Field  string
}

// Keys returns all keys, sorted.
func (m Map) Keys(ctx context.Context) ([]string, error) {
	keys, err := m.Store.MapKeys(ctx, m.Entity, m.Field)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func (m Map) Get(ctx context.Context, key string) (string, bool, error) {
	return m.Store.MapGet(ctx, m.Entity, m.Field, key)
}

func (m Map) Set(ctx context.Context, key, value string) error {
	return m.Store.MapSet(ctx, m.Entity, m.Field, key, value)
}

func (m Map) Delete(ctx context.Context, key string) (bool, error) {
	return m.Store.MapDelete(ctx, m.Entity, m.Field, key)
}

func (m Map) Contains(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m Map) Len(ctx context.Context) (int, error) {
	keys, err := m.Store.MapKeys(ctx, m.Entity, m.Field)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// All returns a copy of the whole mapping.
func (m Map) All(ctx context.Context) (map[string]string, error) {
	keys, err := m.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, _, err := m.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
