package finance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dgknshn20/yapigraniterp/internal/core"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Stores bundles the transactional stores a finance operation touches.
type Stores struct {
	Finance TxStore
	Core    core.TxStore
}

// Repository provides transaction scoping and read access for finance.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
	GetPlan(ctx context.Context, id int64) (*PaymentPlan, error)
	ListInstallments(ctx context.Context, planID int64) ([]Installment, error)
}

// Service drives installment payments and plan rebuilds.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// PayInstallment settles one PENDING installment from an account: it writes
// an INCOME transaction, bumps the account balance, marks the installment
// PAID and notifies finance staff. The whole flow is one transaction.
func (s *Service) PayInstallment(ctx context.Context, planID, installmentID, accountID int64, description string, now time.Time) (*Installment, error) {
	var out *Installment
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		plan, err := st.Finance.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		inst, err := st.Finance.GetInstallmentByIDForUpdate(ctx, installmentID)
		if err != nil {
			return err
		}
		if inst.PlanID != plan.ID {
			return ErrInstallmentNotFound
		}
		if inst.Status != InstallmentPending {
			return fmt.Errorf("%w: installment %d is %s", shared.ErrInvalidStatus, inst.No, inst.Status)
		}
		account, err := st.Finance.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Currency != inst.Currency {
			return fmt.Errorf("%w: account is %s, installment is %s", ErrCurrencyMismatch, account.Currency, inst.Currency)
		}

		if description == "" {
			description = fmt.Sprintf("Installment %d of plan %d (contract %d)", inst.No, plan.ID, plan.ContractID)
		}
		txn := &Transaction{
			Reference:   uuid.NewString(),
			AccountID:   account.ID,
			Kind:        TxnIncome,
			Amount:      inst.Amount,
			Currency:    inst.Currency,
			Description: description,
			SourceType:  "payment_installment",
			SourceID:    inst.ID,
			OccurredAt:  now,
		}
		if err := st.Finance.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		account.Balance = account.Balance.Add(inst.Amount)
		if err := st.Finance.UpdateAccount(ctx, account); err != nil {
			return fmt.Errorf("update account %d: %w", account.ID, err)
		}

		paidAt := now
		inst.Status = InstallmentPaid
		inst.PaidAt = &paidAt
		inst.TransactionID = &txn.ID
		if err := st.Finance.UpdateInstallment(ctx, inst); err != nil {
			return fmt.Errorf("update installment %d: %w", inst.ID, err)
		}

		if _, err := core.NotifyOnce(ctx, st.Core, core.Notification{
			RecipientRole: shared.RoleFinance,
			Title:         "Installment paid",
			Body:          fmt.Sprintf("Installment %d (%s %s) of plan %d was paid", inst.No, inst.Amount.StringFixed(2), inst.Currency, plan.ID),
			Topic:         "installment_paid",
			SourceType:    "payment_installment",
			SourceID:      inst.ID,
		}, now); err != nil {
			return err
		}

		s.logger.Info("installment paid",
			"plan_id", plan.ID,
			"installment_no", inst.No,
			"account_id", account.ID,
			"amount", inst.Amount.StringFixed(2))
		out = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rebuild re-derives the plan's schedule. Parameters left empty fall back to
// the stored plan, so a bare rebuild regenerates the current schedule. The
// plan's total and currency are always kept. PAID rows survive untouched.
func (s *Service) Rebuild(ctx context.Context, planID int64, schedule ScheduleRequest, now time.Time) (*PaymentPlan, error) {
	var out *PaymentPlan
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		plan, err := st.Finance.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		schedule.Total = plan.TotalAmount
		schedule.Currency = plan.Currency
		if schedule.PaymentMethod == "" {
			schedule.PaymentMethod = proposalMethod(plan.Method)
		}
		if schedule.Installments == 0 {
			schedule.Installments = plan.InstallmentCount
		}
		if schedule.FirstDue.IsZero() {
			schedule.FirstDue = plan.StartDate
		}

		plan, err = EnsurePlan(ctx, st.Finance, PlanInput{
			ContractID: plan.ContractID,
			Schedule:   schedule,
		}, now)
		if err != nil {
			return err
		}

		s.logger.Info("payment plan rebuilt", "plan_id", plan.ID, "installments", plan.InstallmentCount)
		out = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
