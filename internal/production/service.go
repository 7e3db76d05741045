package production

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Stores bundles the transactional stores a status change touches.
type Stores struct {
	Contracts TxStore
	Inventory inventory.TxStore
}

// Repository provides transaction scoping and read access for contracts.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
	GetContract(ctx context.Context, id int64) (*Contract, error)
}

// Service drives contract status transitions and their inventory side
// effects inside one transaction.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ChangeStatus sets the contract status and propagates reservation and slab
// state in the same transaction. Setting the current status again is a
// no-op. Invalid status values return shared.ErrInvalidStatus.
func (s *Service) ChangeStatus(ctx context.Context, contractID int64, next ContractStatus, now time.Time) (*Contract, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidStatus, next)
	}

	var out *Contract
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		c, err := st.Contracts.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		old := c.Status
		if old == next {
			out = c
			return nil
		}

		if err := st.Contracts.SetContractStatus(ctx, c.ID, next); err != nil {
			return fmt.Errorf("set contract %d status: %w", c.ID, err)
		}
		c.Status = next

		reservations, err := st.Inventory.ListReservationsByContract(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list reservations for contract %d: %w", c.ID, err)
		}
		slabs, err := lockSlabs(ctx, st.Inventory, reservations)
		if err != nil {
			return err
		}

		muts := TransitionMutations(old, next, c.ID, reservations, slabs, now)
		if err := inventory.ApplyMutations(ctx, st.Inventory, muts); err != nil {
			return err
		}

		s.logger.Info("contract status changed",
			"contract_id", c.ID,
			"from", string(old),
			"to", string(next),
			"mutations", len(muts))
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockSlabs loads every slab the reservations reference under FOR UPDATE so
// the propagator works against stable rows.
func lockSlabs(ctx context.Context, store inventory.TxStore, reservations []inventory.StockReservation) (map[int64]inventory.Slab, error) {
	slabs := make(map[int64]inventory.Slab)
	for _, res := range reservations {
		if res.SlabID == nil {
			continue
		}
		if _, ok := slabs[*res.SlabID]; ok {
			continue
		}
		slab, err := store.GetSlabForUpdate(ctx, *res.SlabID)
		if err != nil {
			return nil, fmt.Errorf("lock slab %d: %w", *res.SlabID, err)
		}
		slabs[slab.ID] = *slab
	}
	return slabs, nil
}
