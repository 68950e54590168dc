// Package shortener orchestrates the short link lifecycle: creation with
// label allocation, ownership-checked mutation, and public resolution.
package shortener

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/snipd/snipd/internal"
	"github.com/snipd/snipd/internal/label"
	"github.com/snipd/snipd/internal/urlx"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, ownerID, label, originalURL string) (*internal.ShortLink, error)
	GetByID(ctx context.Context, id string) (*internal.ShortLink, error)
	GetByLabel(ctx context.Context, label string) (*internal.ShortLink, error)
	UpdateURL(ctx context.Context, id, originalURL string) (*internal.ShortLink, error)
	Delete(ctx context.Context, id string) error
	LabelExists(ctx context.Context, label string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*internal.ShortLink, error)
}

type Service struct {
	store     Store
	allocator *label.Allocator
}

func NewService(store Store) *Service {
	return &Service{
		store:     store,
		allocator: label.NewAllocator(store.LabelExists),
	}
}

type CreateParams struct {
	URL         string
	Label       string
	RandomLabel bool
}

// Create validates the destination, resolves a label and persists the link.
// When RandomLabel is set any supplied custom label is ignored. The store's
// unique constraint can still reject the label after the allocator's
// pre-check passed; that surfaces as ErrLabelTaken like any other conflict.
func (s *Service) Create(ctx context.Context, ownerID string, p CreateParams) (*internal.ShortLink, error) {
	originalURL, err := urlx.Normalize(p.URL)
	if err != nil {
		return nil, err
	}

	var lbl string
	if p.RandomLabel {
		lbl, err = s.allocator.AllocateRandom(ctx)
	} else {
		if strings.TrimSpace(p.Label) == "" {
			return nil, internal.ErrLabelRequired
		}
		lbl, err = s.allocator.ValidateCustom(ctx, p.Label)
	}
	if err != nil {
		return nil, err
	}

	link, err := s.store.Create(ctx, ownerID, lbl, originalURL)
	if err != nil {
		return nil, err
	}

	log.Info().Str("id", link.ID).Str("label", link.Label).Str("owner_id", ownerID).Msg("short link created")
	return link, nil
}

// Update replaces the destination of an owned link. Passing the currently
// stored destination is a no-op that returns the record unchanged, so a
// stored https-prefixed value round-trips without hitting validation again.
// The label is immutable and never an input here.
func (s *Service) Update(ctx context.Context, requesterID, id, rawURL string) (*internal.ShortLink, error) {
	link, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != requesterID {
		return nil, internal.ErrNotOwner
	}

	if strings.TrimSpace(rawURL) == link.OriginalURL {
		return link, nil
	}

	originalURL, err := urlx.Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	if originalURL == link.OriginalURL {
		// Normalization only added the scheme; nothing to write.
		return link, nil
	}

	updated, err := s.store.UpdateURL(ctx, id, originalURL)
	if err != nil {
		return nil, err
	}

	log.Info().Str("id", id).Msg("short link destination updated")
	return updated, nil
}

// Delete hard-deletes an owned link.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	link, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if link.OwnerID != requesterID {
		return internal.ErrNotOwner
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	log.Info().Str("id", id).Str("label", link.Label).Msg("short link deleted")
	return nil
}

// Resolve returns the destination for a label. Lookup is an exact match
// against the stored value; labels are normalized once, at creation.
// ErrNotFound means the link never existed or was deleted, which callers
// must keep distinct from infrastructure failures.
func (s *Service) Resolve(ctx context.Context, lbl string) (string, error) {
	link, err := s.store.GetByLabel(ctx, lbl)
	if err != nil {
		return "", err
	}
	return link.OriginalURL, nil
}

// ListForOwner returns the requester's links, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]*internal.ShortLink, error) {
	return s.store.ListByOwner(ctx, ownerID)
}
