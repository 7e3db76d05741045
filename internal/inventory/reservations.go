package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReservationWindow is how long a soft hold survives before the
// sweeper releases it.
const DefaultReservationWindow = 7 * 24 * time.Hour

// ReservationRequest describes one priced proposal line item to reserve
// stock for. Items without a product are skipped by the manager.
type ReservationRequest struct {
	ProposalItemID int64
	ProductID      *int64
	SlabID         *int64
	AreaM2         decimal.Decimal
}

// TxStore is the transactional persistence surface used by the reservation
// manager and the status propagator. All methods run on the caller's
// transaction.
type TxStore interface {
	GetSlabForUpdate(ctx context.Context, id int64) (*Slab, error)
	UpdateSlab(ctx context.Context, slab *Slab) error
	GetReservation(ctx context.Context, contractID, proposalItemID int64) (*StockReservation, error)
	CreateReservation(ctx context.Context, res *StockReservation) error
	UpdateReservation(ctx context.Context, res *StockReservation) error
	ListReservationsByContract(ctx context.Context, contractID int64) ([]StockReservation, error)
}

// EnsureReservations allocates or refreshes soft reservations for every
// priced line item, enforcing slab mutual exclusion under row locks. The
// returned slice covers every reservation touched. Conflicts surface as
// ErrSlabConflict and must abort the enclosing transaction.
func EnsureReservations(ctx context.Context, store TxStore, contractID int64, items []ReservationRequest, now time.Time, window time.Duration) ([]StockReservation, error) {
	if window <= 0 {
		window = DefaultReservationWindow
	}
	expiresAt := now.Add(window)

	var out []StockReservation
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}

		var slab *Slab
		if item.SlabID != nil {
			locked, err := store.GetSlabForUpdate(ctx, *item.SlabID)
			if err != nil {
				return nil, err
			}
			if err := checkSlabFree(locked, contractID, now); err != nil {
				return nil, err
			}
			// An expired soft hold from another contract is cleared
			// opportunistically once we own the row lock.
			if locked.SoftReservedForID != nil && *locked.SoftReservedForID != contractID {
				locked.SoftReservedForID = nil
				locked.SoftReservedUntil = nil
				if err := store.UpdateSlab(ctx, locked); err != nil {
					return nil, err
				}
			}
			slab = locked
		}

		res, err := upsertReservation(ctx, store, contractID, item, slab, expiresAt)
		if err != nil {
			return nil, err
		}

		if slab != nil {
			stamped := slab.SoftReservedForID != nil && *slab.SoftReservedForID == contractID &&
				slab.SoftReservedUntil != nil && slab.SoftReservedUntil.Equal(expiresAt)
			if !stamped {
				cid := contractID
				until := expiresAt
				slab.SoftReservedForID = &cid
				slab.SoftReservedUntil = &until
				if err := store.UpdateSlab(ctx, slab); err != nil {
					return nil, err
				}
			}
		}

		out = append(out, *res)
	}
	return out, nil
}

func checkSlabFree(slab *Slab, contractID int64, now time.Time) error {
	if slab.ReservedForID != nil && *slab.ReservedForID != contractID {
		return slabConflict(slab.Barcode, "is reserved for another contract")
	}
	if slab.Status == SlabUsed || slab.Status == SlabSold {
		return slabConflict(slab.Barcode, "has already been used or sold")
	}
	if slab.Status == SlabReserved && (slab.ReservedForID == nil || *slab.ReservedForID != contractID) {
		return slabConflict(slab.Barcode, "is locked by another contract")
	}
	if slab.SoftReservedForID != nil && *slab.SoftReservedForID != contractID {
		if slab.SoftReservedUntil != nil && !slab.SoftReservedUntil.Before(now) {
			return slabConflict(slab.Barcode, "is soft-reserved for another proposal")
		}
	}
	return nil
}

func upsertReservation(ctx context.Context, store TxStore, contractID int64, item ReservationRequest, slab *Slab, expiresAt time.Time) (*StockReservation, error) {
	var slabID *int64
	var thickness *decimal.Decimal
	if slab != nil {
		id := slab.ID
		slabID = &id
		t := slab.ThicknessMM
		thickness = &t
	}

	res, err := store.GetReservation(ctx, contractID, item.ProposalItemID)
	if err != nil && !errors.Is(err, ErrReservationNotFound) {
		return nil, err
	}
	if res == nil {
		res = &StockReservation{
			ContractID:     contractID,
			ProposalItemID: item.ProposalItemID,
			ProductID:      *item.ProductID,
			SlabID:         slabID,
			AreaM2:         item.AreaM2,
			ThicknessMM:    thickness,
			Status:         ReservationSoft,
			ExpiresAt:      &expiresAt,
		}
		if err := store.CreateReservation(ctx, res); err != nil {
			return nil, err
		}
		return res, nil
	}

	// Promoted or released reservations are never rewritten here.
	if res.Status != ReservationSoft {
		return res, nil
	}

	changed := false
	if res.ProductID != *item.ProductID {
		res.ProductID = *item.ProductID
		changed = true
	}
	if !int64PtrEqual(res.SlabID, slabID) {
		res.SlabID = slabID
		changed = true
	}
	if !res.AreaM2.Equal(item.AreaM2) {
		res.AreaM2 = item.AreaM2
		changed = true
	}
	if thickness != nil && (res.ThicknessMM == nil || !res.ThicknessMM.Equal(*thickness)) {
		res.ThicknessMM = thickness
		changed = true
	}
	if res.ExpiresAt == nil || !res.ExpiresAt.Equal(expiresAt) {
		res.ExpiresAt = &expiresAt
		changed = true
	}
	if changed {
		if err := store.UpdateReservation(ctx, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ErrReservationNotFound indicates a missing reservation row.
var ErrReservationNotFound = errors.New("stock reservation not found")

// ErrSlabNotFound indicates a missing slab row.
var ErrSlabNotFound = errors.New("slab not found")
