package crm

import (
	"context"
	"fmt"

	"github.com/dgknshn20/yapigraniterp/internal/core"
	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
	"github.com/dgknshn20/yapigraniterp/internal/production"
)

// TxStore is the transactional persistence surface of the crm domain.
type TxStore interface {
	GetProposalForUpdate(ctx context.Context, id int64) (*Proposal, error)
	SetProposalStatus(ctx context.Context, id int64, status ProposalStatus) error
	SetProposalTotal(ctx context.Context, id int64, total string) error
	ListItems(ctx context.Context, proposalID int64) ([]ProposalItem, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)

	GetAppointment(ctx context.Context, customerID int64, sourceType string, sourceID int64) (*Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error

	GetApprovalFlow(ctx context.Context, proposalID int64) (*ApprovalFlow, error)
	CreateApprovalFlow(ctx context.Context, f *ApprovalFlow) error
	UpdateApprovalFlow(ctx context.Context, f *ApprovalFlow) error

	// UpsertAudit writes the (proposal, action) row, refreshing message and
	// actor on conflict.
	UpsertAudit(ctx context.Context, e *AuditEntry) error
}

// Stores bundles every transactional store the finalize workflow touches.
// All of them run on the same underlying transaction.
type Stores struct {
	CRM        TxStore
	Production production.TxStore
	Inventory  inventory.TxStore
	Finance    finance.TxStore
	Core       core.TxStore
}

// Repository provides transaction scoping and pool-level reads.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
	GetProposal(ctx context.Context, id int64) (*Proposal, error)
	ListItems(ctx context.Context, proposalID int64) ([]ProposalItem, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
}

// Store sentinels wrap the httpx error classes so handlers can hand them to
// httpx.RespondError unchanged.
var (
	// ErrProposalNotFound indicates a missing proposal row.
	ErrProposalNotFound = fmt.Errorf("%w: proposal", httpx.ErrNotFound)
	// ErrCustomerNotFound indicates a missing customer row.
	ErrCustomerNotFound = fmt.Errorf("%w: customer", httpx.ErrNotFound)
	// ErrAppointmentNotFound indicates a missing appointment row.
	ErrAppointmentNotFound = fmt.Errorf("%w: appointment", httpx.ErrNotFound)
	// ErrApprovalFlowNotFound indicates a missing approval flow row.
	ErrApprovalFlowNotFound = fmt.Errorf("%w: approval flow", httpx.ErrNotFound)
)
