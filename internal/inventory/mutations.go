package inventory

import "context"

// ReservationMutation is the post-state of one reservation (and optionally
// its slab) produced by the contract status propagator. Mutations are
// computed as pure data so the transition logic stays testable, then applied
// within the transaction that changed the contract status.
type ReservationMutation struct {
	Reservation StockReservation
	Slab        *Slab
}

// ApplyMutations persists a mutation list on the caller's transaction.
func ApplyMutations(ctx context.Context, store TxStore, muts []ReservationMutation) error {
	for i := range muts {
		res := muts[i].Reservation
		if err := store.UpdateReservation(ctx, &res); err != nil {
			return err
		}
		if muts[i].Slab != nil {
			slab := *muts[i].Slab
			if err := store.UpdateSlab(ctx, &slab); err != nil {
				return err
			}
		}
	}
	return nil
}
