package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxStore is the transactional persistence surface of the production domain.
type TxStore interface {
	GetContractByProposalForUpdate(ctx context.Context, proposalID int64) (*Contract, error)
	GetContractForUpdate(ctx context.Context, id int64) (*Contract, error)
	CreateContract(ctx context.Context, c *Contract) error
	UpdateContract(ctx context.Context, c *Contract) error
	SetContractStatus(ctx context.Context, id int64, status ContractStatus) error

	// NextContractNo advances the per-year sequence and returns the next
	// value. Callers format it with FormatContractNo.
	NextContractNo(ctx context.Context, year int) (int64, error)

	GetWorkOrder(ctx context.Context, contractID int64, title string) (*WorkOrder, error)
	CreateWorkOrder(ctx context.Context, wo *WorkOrder) error
	UpdateWorkOrder(ctx context.Context, wo *WorkOrder) error
	ListWorkOrders(ctx context.Context, contractID int64) ([]WorkOrder, error)
}

// ProposalSnapshot carries everything a contract freezes from a proposal.
// It is assembled by the caller at finalize time.
type ProposalSnapshot struct {
	ProposalID     int64
	ProposalNumber string
	ProjectName    string
	JobAddress     string

	CustomerName      string
	CustomerAddress   string
	CustomerPhone     string
	CustomerEmail     string
	CustomerTaxNumber string
	CustomerTaxOffice string

	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	Currency   string
	IncludeTax bool
	TaxRate    decimal.Decimal
	ValidUntil *time.Time
	Notes      string

	Items []SnapshotItem
}

// contractNoRetries bounds the insert retry loop on a sequence race.
const contractNoRetries = 3

// EnsureContract materializes (or refreshes) the contract for a proposal.
// The returned bool reports whether the contract was created on this call.
//
// Re-runs while the contract is awaiting signature refresh the snapshot from
// the proposal. Once the contract is signed the snapshot is frozen; the only
// repair still performed is assigning a contract number if one is missing.
func EnsureContract(ctx context.Context, store TxStore, snap ProposalSnapshot, now time.Time) (*Contract, bool, error) {
	existing, err := store.GetContractByProposalForUpdate(ctx, snap.ProposalID)
	switch {
	case err == nil:
		refresh := existing.Status == ContractAwaitingSignature
		if refresh {
			applySnapshot(existing, snap)
		}
		if existing.ContractNo == "" {
			if err := updateWithNumber(ctx, store, existing, now); err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		if refresh {
			if err := store.UpdateContract(ctx, existing); err != nil {
				return nil, false, fmt.Errorf("update contract %d: %w", existing.ID, err)
			}
		}
		return existing, false, nil

	case errors.Is(err, ErrContractNotFound):
		c := &Contract{
			ProposalID: snap.ProposalID,
			StartDate:  now,
			Status:     ContractAwaitingSignature,
		}
		applySnapshot(c, snap)
		if err := createWithNumber(ctx, store, c, now); err != nil {
			return nil, false, err
		}
		return c, true, nil

	default:
		return nil, false, fmt.Errorf("lookup contract for proposal %d: %w", snap.ProposalID, err)
	}
}

// createWithNumber inserts the contract, retrying with a fresh sequence
// value when the unique contract_no constraint trips.
func createWithNumber(ctx context.Context, store TxStore, c *Contract, now time.Time) error {
	for attempt := 0; attempt < contractNoRetries; attempt++ {
		seq, err := store.NextContractNo(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("next contract number: %w", err)
		}
		c.ContractNo = FormatContractNo(now.Year(), seq)
		err = store.CreateContract(ctx, c)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrContractNoTaken) {
			continue
		}
		return fmt.Errorf("create contract: %w", err)
	}
	return fmt.Errorf("create contract: exhausted %d number attempts", contractNoRetries)
}

// updateWithNumber repairs a contract that is missing its number, retrying
// with a fresh sequence value when the unique contract_no constraint trips.
func updateWithNumber(ctx context.Context, store TxStore, c *Contract, now time.Time) error {
	for attempt := 0; attempt < contractNoRetries; attempt++ {
		seq, err := store.NextContractNo(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("next contract number: %w", err)
		}
		c.ContractNo = FormatContractNo(now.Year(), seq)
		err = store.UpdateContract(ctx, c)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrContractNoTaken) {
			continue
		}
		return fmt.Errorf("update contract %d: %w", c.ID, err)
	}
	return fmt.Errorf("update contract %d: exhausted %d number attempts", c.ID, contractNoRetries)
}

func applySnapshot(c *Contract, snap ProposalSnapshot) {
	c.ProjectName = snap.ProjectName
	c.JobAddress = snap.JobAddress
	c.DeadlineDate = snap.ValidUntil
	c.ItemsSnapshot = snap.Items
	c.CustomerName = snap.CustomerName
	c.CustomerAddress = snap.CustomerAddress
	c.CustomerPhone = snap.CustomerPhone
	c.CustomerEmail = snap.CustomerEmail
	c.CustomerTaxNumber = snap.CustomerTaxNumber
	c.CustomerTaxOffice = snap.CustomerTaxOffice
	c.SubtotalAmount = snap.Subtotal
	c.TaxAmount = snap.Tax
	c.DiscountAmount = snap.Discount
	c.TotalAmount = snap.Total
	c.Currency = snap.Currency
	c.IncludeTax = snap.IncludeTax
	c.TaxRate = snap.TaxRate
	c.ValidUntil = snap.ValidUntil
	c.Notes = snap.Notes
}
