// Package label allocates unique short labels.
package label

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/snipd/snipd/internal"
)

const (
	// alphabet is lowercase-only so generated labels satisfy the same shape
	// rule as user-supplied ones.
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// randomLength is the length of generated labels.
	randomLength = 3
	// maxAttempts caps the regeneration loop on collisions.
	maxAttempts = 10
	// minCustomLength is the minimum length for user-supplied labels.
	minCustomLength = 3
)

var labelRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ExistsFunc reports whether a label is already taken.
type ExistsFunc func(ctx context.Context, label string) (bool, error)

type Allocator struct {
	exists ExistsFunc
}

func NewAllocator(exists ExistsFunc) *Allocator {
	return &Allocator{exists: exists}
}

// AllocateRandom returns a generated label that was free at the time of the
// existence check. The check is not a reservation: the store's unique
// constraint stays the authoritative guard against a concurrent writer
// claiming the same label between check and insert.
func (a *Allocator) AllocateRandom(ctx context.Context) (string, error) {
	for range maxAttempts {
		candidate, err := generate()
		if err != nil {
			return "", err
		}

		taken, err := a.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("label: existence check: %w", err)
		}
		if !taken {
			return candidate, nil
		}

		log.Info().Str("label", candidate).Msg("label collision, generating a new one")
	}
	return "", internal.ErrLabelSpaceExhausted
}

// ValidateCustom normalizes a user-supplied label and checks shape and
// availability. It returns the normalized (lowercased, trimmed) label.
func (a *Allocator) ValidateCustom(ctx context.Context, candidate string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	if len(normalized) < minCustomLength {
		return "", internal.ErrInvalidLabel
	}
	if !labelRe.MatchString(normalized) {
		return "", internal.ErrInvalidLabel
	}

	taken, err := a.exists(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("label: existence check: %w", err)
	}
	if taken {
		return "", internal.ErrLabelTaken
	}
	return normalized, nil
}

func generate() (string, error) {
	out := make([]byte, randomLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("label: generate: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
