package referral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meililab/backend/internal/models"
)

// candidateLimit caps how many users a single resolution inspects.
const candidateLimit = 50

// CandidateStore lists users whose fingerprint contains a substring, oldest first.
type CandidateStore interface {
	ReferralCandidates(ctx context.Context, suffix string, limit int) ([]models.ReferralCandidate, error)
}

// Resolver maps short referral codes back to user ids.
type Resolver struct {
	store CandidateStore
	log   *slog.Logger
}

func NewResolver(store CandidateStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, log: log}
}

// Resolve returns the referrer identified by code. A malformed or unmatched
// code yields (uuid.Nil, false, nil); only store failures are errors.
// When several users share a code an admin wins, otherwise the earliest registration.
func (r *Resolver) Resolve(ctx context.Context, code string) (uuid.UUID, bool, error) {
	if !WellFormed(code) {
		return uuid.Nil, false, nil
	}
	suffix := code[:suffixLength]
	candidates, err := r.store.ReferralCandidates(ctx, suffix, candidateLimit)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("list referral candidates: %w", err)
	}

	var first *models.ReferralCandidate
	for i := range candidates {
		c := &candidates[i]
		own, err := Code(c.DeviceID)
		if err != nil || own != code {
			continue
		}
		if c.IsAdmin {
			return c.ID, true, nil
		}
		if first == nil {
			first = c
		}
	}
	if first == nil {
		r.log.Debug("referral code matched no user", "code", code, "candidates", len(candidates))
		return uuid.Nil, false, nil
	}
	return first.ID, true, nil
}
