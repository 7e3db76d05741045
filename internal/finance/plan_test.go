package finance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryFinanceStore struct {
	plans        map[int64]PaymentPlan
	installments map[int64]Installment
	accounts     map[int64]Account
	transactions map[int64]Transaction
	nextID       int64
}

func newMemoryFinanceStore() *memoryFinanceStore {
	return &memoryFinanceStore{
		plans:        make(map[int64]PaymentPlan),
		installments: make(map[int64]Installment),
		accounts:     make(map[int64]Account),
		transactions: make(map[int64]Transaction),
	}
}

func (s *memoryFinanceStore) GetPlanByContractForUpdate(ctx context.Context, contractID int64) (*PaymentPlan, error) {
	for _, p := range s.plans {
		if p.ContractID == contractID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (s *memoryFinanceStore) GetPlanForUpdate(ctx context.Context, id int64) (*PaymentPlan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	out := p
	return &out, nil
}

func (s *memoryFinanceStore) CreatePlan(ctx context.Context, p *PaymentPlan) error {
	s.nextID++
	p.ID = s.nextID
	s.plans[p.ID] = *p
	return nil
}

func (s *memoryFinanceStore) UpdatePlan(ctx context.Context, p *PaymentPlan) error {
	if _, ok := s.plans[p.ID]; !ok {
		return ErrPlanNotFound
	}
	s.plans[p.ID] = *p
	return nil
}

func (s *memoryFinanceStore) GetInstallment(ctx context.Context, planID int64, no int) (*Installment, error) {
	for _, inst := range s.installments {
		if inst.PlanID == planID && inst.No == no {
			out := inst
			return &out, nil
		}
	}
	return nil, ErrInstallmentNotFound
}

func (s *memoryFinanceStore) GetInstallmentByIDForUpdate(ctx context.Context, id int64) (*Installment, error) {
	inst, ok := s.installments[id]
	if !ok {
		return nil, ErrInstallmentNotFound
	}
	out := inst
	return &out, nil
}

func (s *memoryFinanceStore) CreateInstallment(ctx context.Context, inst *Installment) error {
	s.nextID++
	inst.ID = s.nextID
	s.installments[inst.ID] = *inst
	return nil
}

func (s *memoryFinanceStore) UpdateInstallment(ctx context.Context, inst *Installment) error {
	if _, ok := s.installments[inst.ID]; !ok {
		return ErrInstallmentNotFound
	}
	s.installments[inst.ID] = *inst
	return nil
}

func (s *memoryFinanceStore) ListInstallments(ctx context.Context, planID int64) ([]Installment, error) {
	var out []Installment
	for _, inst := range s.installments {
		if inst.PlanID == planID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *memoryFinanceStore) GetAccountForUpdate(ctx context.Context, id int64) (*Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := a
	return &out, nil
}

func (s *memoryFinanceStore) UpdateAccount(ctx context.Context, a *Account) error {
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	s.accounts[a.ID] = *a
	return nil
}

func (s *memoryFinanceStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	s.nextID++
	t.ID = s.nextID
	s.transactions[t.ID] = *t
	return nil
}

func (s *memoryFinanceStore) installmentByNo(planID int64, no int) Installment {
	for _, inst := range s.installments {
		if inst.PlanID == planID && inst.No == no {
			return inst
		}
	}
	return Installment{}
}

func installmentPlanInput(contractID int64, total string, n int, firstDue time.Time) PlanInput {
	return PlanInput{
		ContractID: contractID,
		Schedule: ScheduleRequest{
			Total:         d(total),
			Currency:      "TRY",
			PaymentMethod: "INSTALLMENT",
			Installments:  n,
			FirstDue:      firstDue,
		},
	}
}

func TestEnsurePlanCreates(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	plan, err := EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, firstDue), now)
	require.NoError(t, err)
	require.Equal(t, MethodInstallment, plan.Method)
	require.Equal(t, 4, plan.InstallmentCount)
	require.True(t, plan.StartDate.Equal(firstDue))

	rows, err := store.ListInstallments(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, inst := range rows {
		require.Equal(t, InstallmentPending, inst.Status)
		require.Equal(t, MethodTransfer, inst.Method)
		require.Equal(t, "TRY", inst.Currency)
		require.True(t, inst.Amount.Equal(d("250.00")))
	}
}

func TestEnsurePlanRefreshesStartDate(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	plan, err := EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, firstDue), now)
	require.NoError(t, err)

	// Re-finalizing with a later first due date moves the plan header, not
	// just the installment rows.
	laterDue := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	plan, err = EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, laterDue), now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, plan.StartDate.Equal(laterDue))
	require.True(t, store.plans[plan.ID].StartDate.Equal(laterDue))
	require.True(t, store.installmentByNo(plan.ID, 1).DueDate.Equal(laterDue))
}

func TestEnsurePlanIdempotent(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	in := installmentPlanInput(1, "1000", 4, firstDue)

	first, err := EnsurePlan(context.Background(), store, in, now)
	require.NoError(t, err)
	second, err := EnsurePlan(context.Background(), store, in, now.Add(time.Hour))
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.plans, 1)
	require.Len(t, store.installments, 4)
}

func TestEnsurePlanShrinkCancelsExtras(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	plan, err := EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, firstDue), now)
	require.NoError(t, err)

	plan, err = EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 2, firstDue), now)
	require.NoError(t, err)
	require.Equal(t, 2, plan.InstallmentCount)

	require.True(t, store.installmentByNo(plan.ID, 1).Amount.Equal(d("500.00")))
	require.True(t, store.installmentByNo(plan.ID, 2).Amount.Equal(d("500.00")))
	require.Equal(t, InstallmentCancelled, store.installmentByNo(plan.ID, 3).Status)
	require.Equal(t, InstallmentCancelled, store.installmentByNo(plan.ID, 4).Status)
}

func TestEnsurePlanReinstatesCancelledRows(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	plan, err := EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, firstDue), now)
	require.NoError(t, err)
	_, err = EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 2, firstDue), now)
	require.NoError(t, err)

	// Growing back reuses the cancelled rows instead of creating new ones.
	_, err = EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, firstDue), now)
	require.NoError(t, err)
	require.Len(t, store.installments, 4)
	for no := 1; no <= 4; no++ {
		require.Equal(t, InstallmentPending, store.installmentByNo(plan.ID, no).Status)
	}
}

func TestEnsurePlanNeverTouchesPaidRows(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	plan, err := EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 4, firstDue), now)
	require.NoError(t, err)

	paid := store.installmentByNo(plan.ID, 1)
	paid.Status = InstallmentPaid
	paidAt := now
	paid.PaidAt = &paidAt
	store.installments[paid.ID] = paid

	// Shrinking to one installment would rewrite row 1 and cancel the rest,
	// but the paid row keeps its original amount and status.
	_, err = EnsurePlan(context.Background(), store, installmentPlanInput(1, "1000", 1, firstDue), now)
	require.NoError(t, err)

	kept := store.installmentByNo(plan.ID, 1)
	require.Equal(t, InstallmentPaid, kept.Status)
	require.True(t, kept.Amount.Equal(d("250.00")))
	require.Equal(t, InstallmentCancelled, store.installmentByNo(plan.ID, 2).Status)
}

func TestEnsurePlanSingleCashPayment(t *testing.T) {
	store := newMemoryFinanceStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	plan, err := EnsurePlan(context.Background(), store, PlanInput{
		ContractID: 1,
		Schedule: ScheduleRequest{
			Total:         d("750"),
			Currency:      "TRY",
			PaymentMethod: "CASH",
			Installments:  4, // irrelevant for CASH
			FirstDue:      firstDue,
		},
	}, now)
	require.NoError(t, err)
	require.Equal(t, MethodCash, plan.Method)
	require.Equal(t, 1, plan.InstallmentCount)
	require.Len(t, store.installments, 1)
}
