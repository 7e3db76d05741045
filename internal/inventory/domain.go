// Package inventory manages physical slab stock and the reservation state
// machine that ties slabs to contracts.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SlabStatus enumerates physical slab states.
type SlabStatus string

const (
	SlabAvailable SlabStatus = "AVAILABLE"
	SlabReserved  SlabStatus = "RESERVED"
	SlabUsed      SlabStatus = "USED"
	SlabSold      SlabStatus = "SOLD"
	SlabPartStock SlabStatus = "PART_STOCK"
	SlabScrap     SlabStatus = "SCRAP"
)

// Slab is a physical inventory unit. A slab carries at most one active soft
// hold and at most one hard hold; the two are mutually exclusive and checked
// at allocation time under a row lock.
type Slab struct {
	ID                int64
	ProductID         int64
	Barcode           string
	Width             decimal.Decimal
	Length            decimal.Decimal
	ThicknessMM       decimal.Decimal
	Status            SlabStatus
	ReservedForID     *int64
	ReservedAt        *time.Time
	SoftReservedForID *int64
	SoftReservedUntil *time.Time
	Location          string
}

// ReservationStatus enumerates reservation states.
type ReservationStatus string

const (
	ReservationSoft     ReservationStatus = "SOFT_RESERVED"
	ReservationHard     ReservationStatus = "HARD_RESERVED"
	ReservationReleased ReservationStatus = "RELEASED"
)

// StockReservation links a contract and proposal item to optional physical
// stock. Unique per (contract, proposal_item).
type StockReservation struct {
	ID             int64
	ContractID     int64
	ProposalItemID int64
	ProductID      int64
	SlabID         *int64
	AreaM2         decimal.Decimal
	ThicknessMM    *decimal.Decimal
	Status         ReservationStatus
	ExpiresAt      *time.Time
	ReleasedAt     *time.Time
	ReleaseReason  string
}

// ErrSlabConflict is wrapped by allocation failures; the message names the
// conflicting slab by barcode.
var ErrSlabConflict = errors.New("slab conflict")

func slabConflict(barcode, reason string) error {
	return fmt.Errorf("%w: slab %s %s", ErrSlabConflict, barcode, reason)
}
