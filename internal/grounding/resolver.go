package grounding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
)

// CaptureStore is the storage surface the resolver needs. Implemented by
// *capture.Store; defined here so tests can substitute a fake.
type CaptureStore interface {
	ListActive(ctx context.Context, userID uuid.UUID, filter capture.ListFilter, limit int) ([]uuid.UUID, error)
	ListBookmarked(ctx context.Context, userID uuid.UUID, filter capture.ListFilter, limit int) ([]uuid.UUID, error)
	FilterOwnedActive(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	CollectionCaptureIDs(ctx context.Context, userID uuid.UUID, collectionIDs []uuid.UUID) ([]uuid.UUID, error)
	GetMeta(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]capture.Meta, error)
}

// Resolver turns a selection policy into the concrete set of capture
// identifiers in scope for a query. Every path re-verifies ownership:
// identifiers referencing captures the user does not own, or captures that
// are no longer active, are silently dropped rather than erroring.
type Resolver struct {
	captures CaptureStore
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(captures CaptureStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{captures: captures, logger: logger}
}

// Resolve produces the set of capture identifiers in scope for the given
// policy. An empty result is valid and means the downstream context is
// empty; it is not an error.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, policy Policy, items []Item, filters Filters) ([]uuid.UUID, error) {
	listFilter := capture.ListFilter{
		CreatedAfter:  filters.From,
		CreatedBefore: filters.To,
		Formats:       filters.Formats,
	}

	switch policy {
	case PolicyAll:
		ids, err := r.captures.ListActive(ctx, userID, listFilter, MaxAllScope)
		if err != nil {
			return nil, fmt.Errorf("resolving all captures: %w", err)
		}
		return ids, nil

	case PolicyBookmarks:
		ids, err := r.captures.ListBookmarked(ctx, userID, listFilter, MaxBookmarkScope)
		if err != nil {
			return nil, fmt.Errorf("resolving bookmarks: %w", err)
		}
		return ids, nil

	case PolicyCollection:
		return r.resolveCollections(ctx, userID, items)

	case PolicySpecific:
		return r.resolveSpecific(ctx, userID, items)

	case PolicyMixed:
		fromCollections, err := r.resolveCollections(ctx, userID, items)
		if err != nil {
			return nil, err
		}
		fromSpecific, err := r.resolveSpecific(ctx, userID, items)
		if err != nil {
			return nil, err
		}
		return dedupe(append(fromCollections, fromSpecific...)), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
}

// resolveCollections unions member captures across the referenced
// collections. Collections not owned by the user contribute nothing.
func (r *Resolver) resolveCollections(ctx context.Context, userID uuid.UUID, items []Item) ([]uuid.UUID, error) {
	collectionIDs := idsOfKind(items, KindCollection)
	if len(collectionIDs) == 0 {
		return nil, nil
	}

	ids, err := r.captures.CollectionCaptureIDs(ctx, userID, collectionIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving collection members: %w", err)
	}
	return dedupe(ids), nil
}

// resolveSpecific re-verifies ownership and active status of explicitly
// referenced captures.
func (r *Resolver) resolveSpecific(ctx context.Context, userID uuid.UUID, items []Item) ([]uuid.UUID, error) {
	captureIDs := idsOfKind(items, KindCapture)
	if len(captureIDs) == 0 {
		return nil, nil
	}

	ids, err := r.captures.FilterOwnedActive(ctx, userID, captureIDs)
	if err != nil {
		return nil, fmt.Errorf("verifying captures: %w", err)
	}
	if dropped := len(captureIDs) - len(ids); dropped > 0 {
		r.logger.Debug("dropped unowned or inactive captures from scope",
			"user_id", userID, "dropped", dropped)
	}
	return ids, nil
}

func idsOfKind(items []Item, kind ItemKind) []uuid.UUID {
	var ids []uuid.UUID
	for _, item := range items {
		if item.Kind == kind {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
