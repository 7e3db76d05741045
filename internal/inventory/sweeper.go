package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredReservation is the slice of reservation state the sweeper needs.
type ExpiredReservation struct {
	ID         int64
	ContractID int64
	ProposalID int64
	SlabID     *int64
}

// SweepRepository is the persistence surface of the expiry sweeper. Each
// reservation is released independently; no cross-row locking is needed.
type SweepRepository interface {
	ListExpiredSoft(ctx context.Context, now time.Time) ([]ExpiredReservation, error)
	// ReleaseReservation flips a still SOFT_RESERVED row to RELEASED and
	// reports whether the update took effect, so concurrent sweeps cannot
	// double-release.
	ReleaseReservation(ctx context.Context, id int64, now time.Time, reason string) (bool, error)
	// ClearSlabSoftHold drops the slab's soft hold only while it still
	// points at the given contract.
	ClearSlabSoftHold(ctx context.Context, slabID, contractID int64) error
	// UpsertReleaseAudit writes the idempotent per-release audit row keyed
	// by (proposal, action).
	UpsertReleaseAudit(ctx context.Context, proposalID int64, action, message string, metadata map[string]any) error
}

const expiryReleaseReason = "reservation window expired"

// Sweeper releases expired soft reservations out of band.
type Sweeper struct {
	repo   SweepRepository
	logger *slog.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(repo SweepRepository, logger *slog.Logger) *Sweeper {
	return &Sweeper{repo: repo, logger: logger}
}

// SweepExpired releases every soft reservation whose expiry is in the past
// and returns the number of reservations released.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredSoft(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("inventory: list expired reservations: %w", err)
	}

	released := 0
	for _, res := range expired {
		ok, err := s.repo.ReleaseReservation(ctx, res.ID, now, expiryReleaseReason)
		if err != nil {
			return released, fmt.Errorf("inventory: release reservation %d: %w", res.ID, err)
		}
		if !ok {
			continue
		}
		if res.SlabID != nil {
			if err := s.repo.ClearSlabSoftHold(ctx, *res.SlabID, res.ContractID); err != nil {
				return released, fmt.Errorf("inventory: clear slab soft hold: %w", err)
			}
		}
		action := fmt.Sprintf("RESERVATION_RELEASED_%d", res.ID)
		meta := map[string]any{"reservation_id": res.ID}
		if err := s.repo.UpsertReleaseAudit(ctx, res.ProposalID, action, "soft reservation expired and was released", meta); err != nil {
			return released, fmt.Errorf("inventory: audit release: %w", err)
		}
		released++
		if s.logger != nil {
			s.logger.Info("released expired reservation",
				slog.Int64("reservation_id", res.ID),
				slog.Int64("contract_id", res.ContractID))
		}
	}
	return released, nil
}
