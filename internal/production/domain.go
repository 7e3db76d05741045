// Package production owns contracts and the downstream production records
// derived from an approved proposal: work orders, the contract number
// sequence, and the reservation side effects of contract status changes.
package production

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
)

// ContractStatus enumerates contract lifecycle states.
type ContractStatus string

const (
	ContractAwaitingSignature ContractStatus = "AWAITING_SIGNATURE"
	ContractSigned            ContractStatus = "SIGNED"
	ContractActive            ContractStatus = "ACTIVE"
	ContractCompleted         ContractStatus = "COMPLETED"
	ContractCancelled         ContractStatus = "CANCELLED"
)

// Valid reports whether the status belongs to the closed set.
func (s ContractStatus) Valid() bool {
	switch s {
	case ContractAwaitingSignature, ContractSigned, ContractActive, ContractCompleted, ContractCancelled:
		return true
	}
	return false
}

// SnapshotItem is one priced line item frozen into the contract at approval
// time. Amounts are serialized as strings to keep the snapshot stable.
type SnapshotItem struct {
	ProposalItemID int64   `json:"id"`
	ProductID      *int64  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	SlabID         *int64  `json:"slab_id"`
	SlabBarcode    string  `json:"slab_barcode"`
	Description    string  `json:"description"`
	StoneType      string  `json:"stone_type"`
	SizeText       string  `json:"size_text"`
	TotalMeasure   *string `json:"total_measure"`
	TotalUnit      string  `json:"total_unit"`
	Width          string  `json:"width"`
	Length         string  `json:"length"`
	Quantity       int     `json:"quantity"`
	UnitPrice      string  `json:"unit_price"`
	FireRate       string  `json:"fire_rate"`
	LaborCost      string  `json:"labor_cost"`
	TotalPrice     string  `json:"total_price"`
	AreaM2         string  `json:"area_m2"`
}

// Contract is the durable legal/production record snapshotting a proposal.
// contract_no is unique, assigned exactly once and never reassigned. While
// the status is AWAITING_SIGNATURE the snapshot stays refreshable from the
// proposal; once signed it is frozen.
type Contract struct {
	ID           int64
	ProposalID   int64
	ContractNo   string
	ProjectName  string
	JobAddress   string
	StartDate    time.Time
	DeadlineDate *time.Time

	ItemsSnapshot []SnapshotItem

	CustomerName      string
	CustomerAddress   string
	CustomerPhone     string
	CustomerEmail     string
	CustomerTaxNumber string
	CustomerTaxOffice string

	SubtotalAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Currency       string
	IncludeTax     bool
	TaxRate        decimal.Decimal
	ValidUntil     *time.Time
	Notes          string

	Status ContractStatus
}

// WorkOrderStage enumerates production stages.
type WorkOrderStage string

const (
	StagePlanned   WorkOrderStage = "PLANLANACAK"
	StagePending   WorkOrderStage = "PENDING"
	StageCutting   WorkOrderStage = "CUTTING"
	StagePolishing WorkOrderStage = "POLISHING"
	StageReady     WorkOrderStage = "READY"
	StageAssembly  WorkOrderStage = "ASSEMBLY"
	StageCompleted WorkOrderStage = "COMPLETED"
)

// WorkOrderKind categorizes work orders.
type WorkOrderKind string

const (
	KindMeasurement WorkOrderKind = "MEASUREMENT"
	KindProduction  WorkOrderKind = "PRODUCTION"
	KindDelivery    WorkOrderKind = "DELIVERY"
	KindGeneral     WorkOrderKind = "GENERAL"
)

// WorkOrder is a production task derived from a contract line item, keyed by
// (contract, title) for idempotent re-creation.
type WorkOrder struct {
	ID          int64
	ContractID  int64
	Title       string
	Description string
	Stage       WorkOrderStage
	Kind        WorkOrderKind
	Priority    int
	SlabID      *int64
	TargetDate  *time.Time
}

var (
	// ErrContractNotFound indicates a missing contract row.
	ErrContractNotFound = fmt.Errorf("%w: contract", httpx.ErrNotFound)
	// ErrContractNoTaken indicates a contract number collision at insert.
	ErrContractNoTaken = fmt.Errorf("%w: contract number already taken", httpx.ErrConflict)
	// ErrWorkOrderNotFound indicates a missing work order row.
	ErrWorkOrderNotFound = fmt.Errorf("%w: work order", httpx.ErrNotFound)
)
