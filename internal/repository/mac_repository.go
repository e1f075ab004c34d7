package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/property"
)

const (
	macArea = "mac"

	macFieldPrefix = "prefix"
	macFieldLast   = "last"
	macFieldFree   = "free"

	macSuffixMax = 0xFFFFFF
)

// MacRepository defines operations on the singleton MAC address pool
type MacRepository interface {
	Get(ctx context.Context) (domain.MacPool, error)
	Prefix(ctx context.Context) (string, error)
	SetPrefix(ctx context.Context, prefix string) error
	// Next issues a freed address if one is available, otherwise the
	// address after last under the configured prefix.
	Next(ctx context.Context) (string, error)
	// Free returns an address to the pool for reuse
	Free(ctx context.Context, mac string) error
}

// macRepositoryImpl implements MacRepository
type macRepositoryImpl struct {
	store  property.Store
	logger *slog.Logger
}

// NewMacRepository creates a new MAC pool repository
func NewMacRepository(store property.Store, logger *slog.Logger) MacRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &macRepositoryImpl{
		store:  store,
		logger: logger,
	}
}

var macPath = property.Path{macArea}

func (r *macRepositoryImpl) scalar(field string) property.Scalar {
	return property.Scalar{Store: r.store, Entity: macPath, Field: field}
}

func (r *macRepositoryImpl) free() property.List {
	return property.List{Store: r.store, Entity: macPath, Field: macFieldFree}
}

func (r *macRepositoryImpl) ensure(ctx context.Context) error {
	if err := r.store.Ensure(ctx, macPath); err != nil {
		return fmt.Errorf("failed to create mac pool: %w", err)
	}
	return nil
}

func (r *macRepositoryImpl) Get(ctx context.Context) (domain.MacPool, error) {
	var pool domain.MacPool
	var err error

	if pool.Prefix, err = r.scalar(macFieldPrefix).Value(ctx); err != nil {
		return domain.MacPool{}, fmt.Errorf("failed to read prefix: %w", err)
	}
	if pool.Last, err = r.scalar(macFieldLast).Value(ctx); err != nil {
		return domain.MacPool{}, fmt.Errorf("failed to read last address: %w", err)
	}
	if pool.Free, err = r.free().Items(ctx); err != nil {
		return domain.MacPool{}, fmt.Errorf("failed to read free addresses: %w", err)
	}
	return pool, nil
}

func (r *macRepositoryImpl) Prefix(ctx context.Context) (string, error) {
	prefix, err := r.scalar(macFieldPrefix).Value(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read prefix: %w", err)
	}
	return prefix, nil
}

func (r *macRepositoryImpl) SetPrefix(ctx context.Context, prefix string) error {
	if err := domain.ValidateMACPrefix(prefix); err != nil {
		return invalid(err)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}
	if err := r.scalar(macFieldPrefix).Set(ctx, prefix); err != nil {
		return fmt.Errorf("failed to set prefix: %w", err)
	}
	return nil
}

func (r *macRepositoryImpl) Next(ctx context.Context) (string, error) {
	if err := r.ensure(ctx); err != nil {
		return "", err
	}

	mac, ok, err := r.free().Pop(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to pop free address: %w", err)
	}
	if ok {
		r.logger.Debug("Reusing free mac address", "address", mac)
		return mac, nil
	}

	prefix, err := r.Prefix(ctx)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return "", fmt.Errorf("%w: cannot generate address without prefix, use prefix-set", ErrInvalidEntity)
	}

	last := r.scalar(macFieldLast)
	current, err := last.Value(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last address: %w", err)
	}

	n, err := macSuffix(prefix, current)
	if err != nil {
		return "", err
	}
	if n >= macSuffixMax {
		return "", fmt.Errorf("exhausted all addresses of prefix %s, free some: %w", prefix, ErrExhausted)
	}
	n++

	next := fmt.Sprintf("%s:%02x:%02x:%02x", prefix, byte(n>>16), byte(n>>8), byte(n))
	if err := last.Set(ctx, next); err != nil {
		return "", fmt.Errorf("failed to store last address: %w", err)
	}
	r.logger.Debug("Next mac address", "address", next)
	return next, nil
}

// macSuffix returns the 24-bit counter stored in last. An unset last, or one
// issued under a different prefix, counts from zero.
func macSuffix(prefix, last string) (uint32, error) {
	if last == "" {
		return 0, nil
	}
	if err := domain.ValidateMAC(last); err != nil {
		return 0, fmt.Errorf("stored last address is corrupt: %w", invalid(err))
	}
	if !sameMAC(last[:8], prefix) {
		return 0, nil
	}

	hex := strings.NewReplacer(":", "", "-", "").Replace(last[9:])
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("stored last address is corrupt: %w", err)
	}
	return uint32(n), nil
}

func (r *macRepositoryImpl) Free(ctx context.Context, mac string) error {
	if err := domain.ValidateMAC(mac); err != nil {
		return invalid(err)
	}
	if err := r.ensure(ctx); err != nil {
		return err
	}
	if err := r.free().Push(ctx, mac); err != nil {
		return fmt.Errorf("failed to free address: %w", err)
	}
	return nil
}
