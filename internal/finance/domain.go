// Package finance owns payment plans, installments, accounts and the cash
// transactions recorded against them.
package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
)

// PaymentMethod enumerates how a payment is expected to be settled. Plan
// headers carry CASH, INSTALLMENT, CHEQUE or MIXED; TRANSFER only appears on
// derived installment rows.
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "CASH"
	MethodInstallment PaymentMethod = "INSTALLMENT"
	MethodTransfer    PaymentMethod = "TRANSFER"
	MethodCheque      PaymentMethod = "CHEQUE"
	MethodMixed       PaymentMethod = "MIXED"
)

// PaymentPlan is the per-contract payment schedule header. One plan exists
// per contract.
type PaymentPlan struct {
	ID               int64
	ContractID       int64
	TotalAmount      decimal.Decimal
	Currency         string
	Method           PaymentMethod
	InstallmentCount int
	StartDate        time.Time
	Notes            string
}

// InstallmentStatus enumerates installment states. PAID rows are immutable;
// rebuilds cancel PENDING rows that fall out of the schedule.
type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "PENDING"
	InstallmentPaid      InstallmentStatus = "PAID"
	InstallmentCancelled InstallmentStatus = "CANCELLED"
)

// Installment is one scheduled payment, keyed by (plan, no).
type Installment struct {
	ID            int64
	PlanID        int64
	No            int
	DueDate       time.Time
	Amount        decimal.Decimal
	Currency      string
	Method        PaymentMethod
	Status        InstallmentStatus
	PaidAt        *time.Time
	TransactionID *int64
}

// Account is a cash or bank account money moves through.
type Account struct {
	ID       int64
	Name     string
	Currency string
	Balance  decimal.Decimal
}

// TransactionKind separates money in from money out.
type TransactionKind string

const (
	TxnIncome  TransactionKind = "INCOME"
	TxnExpense TransactionKind = "EXPENSE"
)

// Transaction is a ledger entry against an account. Reference is a unique
// external identifier for bank reconciliation.
type Transaction struct {
	ID          int64
	Reference   string
	AccountID   int64
	Kind        TransactionKind
	Amount      decimal.Decimal
	Currency    string
	Description string
	SourceType  string
	SourceID    int64
	OccurredAt  time.Time
}

var (
	// ErrPlanNotFound indicates a missing payment plan row.
	ErrPlanNotFound = fmt.Errorf("%w: payment plan", httpx.ErrNotFound)
	// ErrInstallmentNotFound indicates a missing installment row.
	ErrInstallmentNotFound = fmt.Errorf("%w: installment", httpx.ErrNotFound)
	// ErrAccountNotFound indicates a missing account row.
	ErrAccountNotFound = fmt.Errorf("%w: account", httpx.ErrNotFound)
	// ErrCurrencyMismatch indicates the account currency differs from the
	// installment currency.
	ErrCurrencyMismatch = fmt.Errorf("%w: account currency does not match installment currency", httpx.ErrValidation)
)
