package finance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxStore is the transactional persistence surface of the finance domain.
type TxStore interface {
	GetPlanByContractForUpdate(ctx context.Context, contractID int64) (*PaymentPlan, error)
	GetPlanForUpdate(ctx context.Context, id int64) (*PaymentPlan, error)
	CreatePlan(ctx context.Context, p *PaymentPlan) error
	UpdatePlan(ctx context.Context, p *PaymentPlan) error

	GetInstallment(ctx context.Context, planID int64, no int) (*Installment, error)
	GetInstallmentByIDForUpdate(ctx context.Context, id int64) (*Installment, error)
	CreateInstallment(ctx context.Context, inst *Installment) error
	UpdateInstallment(ctx context.Context, inst *Installment) error
	ListInstallments(ctx context.Context, planID int64) ([]Installment, error)

	GetAccountForUpdate(ctx context.Context, id int64) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	CreateTransaction(ctx context.Context, t *Transaction) error
}

// PlanInput ties a derived schedule to its contract.
type PlanInput struct {
	ContractID int64
	Schedule   ScheduleRequest
}

// EnsurePlan upserts the payment plan for a contract and syncs its
// installment rows to the derived schedule. PAID installments are never
// touched; PENDING rows that fall out of the schedule are cancelled.
func EnsurePlan(ctx context.Context, store TxStore, in PlanInput, now time.Time) (*PaymentPlan, error) {
	method, rows := BuildSchedule(in.Schedule)

	plan, err := store.GetPlanByContractForUpdate(ctx, in.ContractID)
	switch {
	case err == nil:
		changed := false
		if !plan.TotalAmount.Equal(in.Schedule.Total) {
			plan.TotalAmount = in.Schedule.Total
			changed = true
		}
		if plan.Currency != in.Schedule.Currency {
			plan.Currency = in.Schedule.Currency
			changed = true
		}
		if plan.Method != method {
			plan.Method = method
			changed = true
		}
		if plan.InstallmentCount != len(rows) {
			plan.InstallmentCount = len(rows)
			changed = true
		}
		if !plan.StartDate.Equal(in.Schedule.FirstDue) {
			plan.StartDate = in.Schedule.FirstDue
			changed = true
		}
		if changed {
			if err := store.UpdatePlan(ctx, plan); err != nil {
				return nil, fmt.Errorf("update payment plan %d: %w", plan.ID, err)
			}
		}

	case errors.Is(err, ErrPlanNotFound):
		plan = &PaymentPlan{
			ContractID:       in.ContractID,
			TotalAmount:      in.Schedule.Total,
			Currency:         in.Schedule.Currency,
			Method:           method,
			InstallmentCount: len(rows),
			StartDate:        in.Schedule.FirstDue,
		}
		if err := store.CreatePlan(ctx, plan); err != nil {
			return nil, fmt.Errorf("create payment plan for contract %d: %w", in.ContractID, err)
		}

	default:
		return nil, fmt.Errorf("lookup payment plan for contract %d: %w", in.ContractID, err)
	}

	if err := syncInstallments(ctx, store, plan, rows); err != nil {
		return nil, err
	}
	return plan, nil
}

func syncInstallments(ctx context.Context, store TxStore, plan *PaymentPlan, rows []ScheduledInstallment) error {
	want := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		want[row.No] = struct{}{}
		if err := upsertInstallment(ctx, store, plan, row); err != nil {
			return err
		}
	}

	existing, err := store.ListInstallments(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("list installments for plan %d: %w", plan.ID, err)
	}
	for i := range existing {
		inst := &existing[i]
		if _, ok := want[inst.No]; ok {
			continue
		}
		if inst.Status != InstallmentPending {
			continue
		}
		inst.Status = InstallmentCancelled
		if err := store.UpdateInstallment(ctx, inst); err != nil {
			return fmt.Errorf("cancel installment %d: %w", inst.ID, err)
		}
	}
	return nil
}

func upsertInstallment(ctx context.Context, store TxStore, plan *PaymentPlan, row ScheduledInstallment) error {
	existing, err := store.GetInstallment(ctx, plan.ID, row.No)
	switch {
	case err == nil:
		if existing.Status == InstallmentPaid {
			return nil
		}
		changed := false
		if !existing.Amount.Equal(row.Amount) {
			existing.Amount = row.Amount
			changed = true
		}
		if !existing.DueDate.Equal(row.DueDate) {
			existing.DueDate = row.DueDate
			changed = true
		}
		if existing.Method != row.Method {
			existing.Method = row.Method
			changed = true
		}
		if existing.Status == InstallmentCancelled {
			existing.Status = InstallmentPending
			changed = true
		}
		if changed {
			if err := store.UpdateInstallment(ctx, existing); err != nil {
				return fmt.Errorf("update installment %d: %w", existing.ID, err)
			}
		}
		return nil

	case errors.Is(err, ErrInstallmentNotFound):
		inst := &Installment{
			PlanID:   plan.ID,
			No:       row.No,
			DueDate:  row.DueDate,
			Amount:   row.Amount,
			Currency: plan.Currency,
			Method:   row.Method,
			Status:   InstallmentPending,
		}
		if err := store.CreateInstallment(ctx, inst); err != nil {
			return fmt.Errorf("create installment %d for plan %d: %w", row.No, plan.ID, err)
		}
		return nil

	default:
		return fmt.Errorf("lookup installment %d for plan %d: %w", row.No, plan.ID, err)
	}
}
