// Package crm owns customers, proposals and the finalize workflow that
// converts an approved proposal into a contract with all of its downstream
// records.
package crm

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProposalStatus enumerates proposal lifecycle states.
type ProposalStatus string

const (
	ProposalDraft     ProposalStatus = "DRAFT"
	ProposalSent      ProposalStatus = "SENT"
	ProposalApproved  ProposalStatus = "APPROVED"
	ProposalRejected  ProposalStatus = "REJECTED"
	ProposalConverted ProposalStatus = "CONVERTED"
)

// Customer is the owning party of proposals and contracts.
type Customer struct {
	ID        int64
	Name      string
	Address   string
	Phone     string
	Email     string
	TaxNumber string
	TaxOffice string
}

// Proposal is a sales quote. Monetary derivations (subtotal, tax, grand
// total) are computed from TotalAmount and TaxRate, never stored.
type Proposal struct {
	ID             int64
	Number         string
	CustomerID     int64
	Status         ProposalStatus
	Currency       string
	IncludeTax     bool
	TaxRate        decimal.Decimal
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	ValidUntil     *time.Time
	ProjectName    string
	JobAddress     string
	PaymentMethod  string
	Notes          string
	InternalNotes  string
}

// ProposalItem is one priced line of a proposal. TotalPrice is derived from
// the other fields on every save.
type ProposalItem struct {
	ID           int64
	ProposalID   int64
	ProductID    *int64
	ProductName  string
	SlabID       *int64
	SlabBarcode  string
	Description  string
	StoneType    string
	SizeText     string
	TotalMeasure *decimal.Decimal
	TotalUnit    string
	Width        decimal.Decimal
	Length       decimal.Decimal
	ThicknessMM  *decimal.Decimal
	Quantity     int
	UnitPrice    decimal.Decimal
	FireRate     decimal.Decimal
	LaborCost    decimal.Decimal
	TotalPrice   decimal.Decimal
}

// Appointment is a scheduled follow-up keyed by (customer, source) for
// idempotent creation.
type Appointment struct {
	ID         int64
	CustomerID int64
	Title      string
	Notes      string
	DueAt      time.Time
	SourceType string
	SourceID   int64
}

// ApprovalFlow is the durable receipt of a finalize run, 1:1 with the
// proposal.
type ApprovalFlow struct {
	ID             int64
	ProposalID     int64
	ApprovedByID   int64
	ApprovedAt     time.Time
	ContractID     int64
	PaymentPlanID  int64
	ReservationIDs []int64
}

// AuditEntry is one idempotent audit-log row keyed by (proposal, action).
type AuditEntry struct {
	ID         int64
	ProposalID int64
	Action     string
	Message    string
	ActorID    int64
}
