package production

import (
	"time"

	"github.com/dgknshn20/yapigraniterp/internal/inventory"
)

const cancelReleaseReason = "contract cancelled"

// TransitionMutations computes the reservation and slab side effects of a
// contract status change as post-state records. It performs no I/O; the
// caller persists the result with inventory.ApplyMutations inside the same
// transaction that flips the contract status.
//
// Signing promotes soft reservations to hard holds and marks the slabs
// RESERVED. Cancelling releases every live reservation and reverts slabs the
// contract held. All other transitions leave inventory untouched.
func TransitionMutations(oldStatus, newStatus ContractStatus, contractID int64, reservations []inventory.StockReservation, slabs map[int64]inventory.Slab, now time.Time) []inventory.ReservationMutation {
	if oldStatus == newStatus {
		return nil
	}
	switch newStatus {
	case ContractSigned:
		return promoteMutations(contractID, reservations, slabs, now)
	case ContractCancelled:
		return releaseMutations(contractID, reservations, slabs, now)
	}
	return nil
}

func promoteMutations(contractID int64, reservations []inventory.StockReservation, slabs map[int64]inventory.Slab, now time.Time) []inventory.ReservationMutation {
	var muts []inventory.ReservationMutation
	for _, res := range reservations {
		if res.Status != inventory.ReservationSoft {
			continue
		}
		res.Status = inventory.ReservationHard
		mut := inventory.ReservationMutation{Reservation: res}

		if res.SlabID != nil {
			if slab, ok := slabs[*res.SlabID]; ok {
				slab.Status = inventory.SlabReserved
				slab.ReservedForID = &contractID
				if slab.ReservedAt == nil {
					t := now
					slab.ReservedAt = &t
				}
				slab.SoftReservedForID = nil
				slab.SoftReservedUntil = nil
				mut.Slab = &slab
			}
		}
		muts = append(muts, mut)
	}
	return muts
}

func releaseMutations(contractID int64, reservations []inventory.StockReservation, slabs map[int64]inventory.Slab, now time.Time) []inventory.ReservationMutation {
	var muts []inventory.ReservationMutation
	for _, res := range reservations {
		if res.Status == inventory.ReservationReleased {
			continue
		}
		res.Status = inventory.ReservationReleased
		t := now
		res.ReleasedAt = &t
		res.ReleaseReason = cancelReleaseReason
		mut := inventory.ReservationMutation{Reservation: res}

		if res.SlabID != nil {
			if slab, ok := slabs[*res.SlabID]; ok {
				changed := false
				if slab.SoftReservedForID != nil && *slab.SoftReservedForID == contractID {
					slab.SoftReservedForID = nil
					slab.SoftReservedUntil = nil
					changed = true
				}
				if slab.ReservedForID != nil && *slab.ReservedForID == contractID {
					slab.ReservedForID = nil
					slab.ReservedAt = nil
					if slab.Status == inventory.SlabReserved {
						slab.Status = inventory.SlabAvailable
					}
					changed = true
				}
				if changed {
					mut.Slab = &slab
				}
			}
		}
		muts = append(muts, mut)
	}
	return muts
}
