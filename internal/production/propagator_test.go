package production

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgknshn20/yapigraniterp/internal/inventory"
)

func ptr[T any](v T) *T { return &v }

func TestTransitionMutationsNoChange(t *testing.T) {
	now := time.Now()
	reservations := []inventory.StockReservation{{ID: 1, ContractID: 7, Status: inventory.ReservationSoft}}

	require.Nil(t, TransitionMutations(ContractSigned, ContractSigned, 7, reservations, nil, now))
	require.Nil(t, TransitionMutations(ContractAwaitingSignature, ContractActive, 7, reservations, nil, now))
	require.Nil(t, TransitionMutations(ContractActive, ContractCompleted, 7, reservations, nil, now))
}

func TestTransitionMutationsSignPromotesSoftHolds(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	reservations := []inventory.StockReservation{
		{ID: 1, ContractID: 7, SlabID: ptr[int64](30), Status: inventory.ReservationSoft},
		{ID: 2, ContractID: 7, Status: inventory.ReservationSoft}, // no slab
		{ID: 3, ContractID: 7, Status: inventory.ReservationReleased},
	}
	slabs := map[int64]inventory.Slab{
		30: {ID: 30, Status: inventory.SlabAvailable, SoftReservedForID: ptr[int64](7), SoftReservedUntil: &until},
	}

	muts := TransitionMutations(ContractAwaitingSignature, ContractSigned, 7, reservations, slabs, now)
	require.Len(t, muts, 2)

	require.Equal(t, inventory.ReservationHard, muts[0].Reservation.Status)
	require.NotNil(t, muts[0].Slab)
	require.Equal(t, inventory.SlabReserved, muts[0].Slab.Status)
	require.Equal(t, int64(7), *muts[0].Slab.ReservedForID)
	require.True(t, muts[0].Slab.ReservedAt.Equal(now))
	require.Nil(t, muts[0].Slab.SoftReservedForID)
	require.Nil(t, muts[0].Slab.SoftReservedUntil)

	require.Equal(t, inventory.ReservationHard, muts[1].Reservation.Status)
	require.Nil(t, muts[1].Slab)
}

func TestTransitionMutationsSignKeepsExistingReservedAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-24 * time.Hour)
	reservations := []inventory.StockReservation{
		{ID: 1, ContractID: 7, SlabID: ptr[int64](30), Status: inventory.ReservationSoft},
	}
	slabs := map[int64]inventory.Slab{
		30: {ID: 30, Status: inventory.SlabReserved, ReservedForID: ptr[int64](7), ReservedAt: &earlier},
	}

	muts := TransitionMutations(ContractAwaitingSignature, ContractSigned, 7, reservations, slabs, now)
	require.Len(t, muts, 1)
	require.True(t, muts[0].Slab.ReservedAt.Equal(earlier))
}

func TestTransitionMutationsCancelReleasesEverything(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	reservations := []inventory.StockReservation{
		{ID: 1, ContractID: 7, SlabID: ptr[int64](30), Status: inventory.ReservationHard},
		{ID: 2, ContractID: 7, SlabID: ptr[int64](31), Status: inventory.ReservationSoft},
		{ID: 3, ContractID: 7, Status: inventory.ReservationReleased}, // already done
	}
	slabs := map[int64]inventory.Slab{
		30: {ID: 30, Status: inventory.SlabReserved, ReservedForID: ptr[int64](7), ReservedAt: &now},
		31: {ID: 31, Status: inventory.SlabAvailable, SoftReservedForID: ptr[int64](7), SoftReservedUntil: &until},
	}

	muts := TransitionMutations(ContractSigned, ContractCancelled, 7, reservations, slabs, now)
	require.Len(t, muts, 2)

	for _, mut := range muts {
		require.Equal(t, inventory.ReservationReleased, mut.Reservation.Status)
		require.True(t, mut.Reservation.ReleasedAt.Equal(now))
		require.Equal(t, "contract cancelled", mut.Reservation.ReleaseReason)
	}

	require.Equal(t, inventory.SlabAvailable, muts[0].Slab.Status)
	require.Nil(t, muts[0].Slab.ReservedForID)
	require.Nil(t, muts[0].Slab.ReservedAt)

	require.Nil(t, muts[1].Slab.SoftReservedForID)
	require.Nil(t, muts[1].Slab.SoftReservedUntil)
}

func TestTransitionMutationsCancelLeavesForeignHolds(t *testing.T) {
	now := time.Now()
	reservations := []inventory.StockReservation{
		{ID: 1, ContractID: 7, SlabID: ptr[int64](30), Status: inventory.ReservationSoft},
	}
	// The slab has meanwhile been hard-reserved by another contract; only the
	// reservation row is released, the slab stays untouched.
	slabs := map[int64]inventory.Slab{
		30: {ID: 30, Status: inventory.SlabReserved, ReservedForID: ptr[int64](99)},
	}

	muts := TransitionMutations(ContractAwaitingSignature, ContractCancelled, 7, reservations, slabs, now)
	require.Len(t, muts, 1)
	require.Equal(t, inventory.ReservationReleased, muts[0].Reservation.Status)
	require.Nil(t, muts[0].Slab)
}
