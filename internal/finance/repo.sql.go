package finance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/core"
	"github.com/dgknshn20/yapigraniterp/internal/platform/db"
)

// PgTxStore implements TxStore on a caller-provided transaction.
type PgTxStore struct {
	tx db.Tx
}

// NewTxStore constructs a PgTxStore.
func NewTxStore(tx db.Tx) *PgTxStore {
	return &PgTxStore{tx: tx}
}

const planColumns = `id, contract_id, total_amount::text, currency, method, installment_count, start_date, notes`

func (s *PgTxStore) GetPlanByContractForUpdate(ctx context.Context, contractID int64) (*PaymentPlan, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE contract_id = $1 FOR UPDATE`, contractID)
	return scanPlan(row)
}

func (s *PgTxStore) GetPlanForUpdate(ctx context.Context, id int64) (*PaymentPlan, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1 FOR UPDATE`, id)
	return scanPlan(row)
}

func (s *PgTxStore) CreatePlan(ctx context.Context, p *PaymentPlan) error {
	return s.tx.QueryRow(ctx, `INSERT INTO payment_plans (contract_id, total_amount, currency, method, installment_count, start_date, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.ContractID, p.TotalAmount.String(), p.Currency, string(p.Method), p.InstallmentCount, p.StartDate, p.Notes).Scan(&p.ID)
}

func (s *PgTxStore) UpdatePlan(ctx context.Context, p *PaymentPlan) error {
	_, err := s.tx.Exec(ctx, `UPDATE payment_plans SET total_amount = $2, currency = $3, method = $4,
installment_count = $5, start_date = $6, notes = $7, updated_at = NOW() WHERE id = $1`,
		p.ID, p.TotalAmount.String(), p.Currency, string(p.Method), p.InstallmentCount, p.StartDate, p.Notes)
	return err
}

const installmentColumns = `id, plan_id, installment_no, due_date, amount::text, currency, method, status, paid_at, transaction_id`

func (s *PgTxStore) GetInstallment(ctx context.Context, planID int64, no int) (*Installment, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+installmentColumns+` FROM payment_installments
WHERE plan_id = $1 AND installment_no = $2`, planID, no)
	return scanInstallment(row)
}

func (s *PgTxStore) GetInstallmentByIDForUpdate(ctx context.Context, id int64) (*Installment, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+installmentColumns+` FROM payment_installments
WHERE id = $1 FOR UPDATE`, id)
	return scanInstallment(row)
}

func (s *PgTxStore) CreateInstallment(ctx context.Context, inst *Installment) error {
	return s.tx.QueryRow(ctx, `INSERT INTO payment_installments (plan_id, installment_no, due_date, amount, currency, method, status)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		inst.PlanID, inst.No, inst.DueDate, inst.Amount.String(), inst.Currency, string(inst.Method), string(inst.Status)).Scan(&inst.ID)
}

func (s *PgTxStore) UpdateInstallment(ctx context.Context, inst *Installment) error {
	_, err := s.tx.Exec(ctx, `UPDATE payment_installments SET due_date = $2, amount = $3, method = $4,
status = $5, paid_at = $6, transaction_id = $7, updated_at = NOW() WHERE id = $1`,
		inst.ID, inst.DueDate, inst.Amount.String(), string(inst.Method),
		string(inst.Status), inst.PaidAt, inst.TransactionID)
	return err
}

func (s *PgTxStore) ListInstallments(ctx context.Context, planID int64) ([]Installment, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+installmentColumns+` FROM payment_installments
WHERE plan_id = $1 ORDER BY installment_no`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

func (s *PgTxStore) GetAccountForUpdate(ctx context.Context, id int64) (*Account, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, name, currency, balance::text FROM accounts WHERE id = $1 FOR UPDATE`, id)
	var (
		a       Account
		balance string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Currency, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PgTxStore) UpdateAccount(ctx context.Context, a *Account) error {
	_, err := s.tx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`,
		a.ID, a.Balance.String())
	return err
}

func (s *PgTxStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	return s.tx.QueryRow(ctx, `INSERT INTO transactions (reference, account_id, kind, amount, currency, description, source_type, source_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		t.Reference, t.AccountID, string(t.Kind), t.Amount.String(), t.Currency, t.Description, t.SourceType, t.SourceID, t.OccurredAt).Scan(&t.ID)
}

// PgRepository implements Repository on the connection pool.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, Stores{
			Finance: NewTxStore(tx),
			Core:    core.NewTxStore(tx),
		})
	})
}

func (r *PgRepository) GetPlan(ctx context.Context, id int64) (*PaymentPlan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1`, id)
	return scanPlan(row)
}

func (r *PgRepository) ListInstallments(ctx context.Context, planID int64) ([]Installment, error) {
	return NewTxStore(r.pool).ListInstallments(ctx, planID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*PaymentPlan, error) {
	var (
		p      PaymentPlan
		total  string
		method string
	)
	err := row.Scan(&p.ID, &p.ContractID, &total, &p.Currency, &method, &p.InstallmentCount, &p.StartDate, &p.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	p.Method = PaymentMethod(method)
	if p.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanInstallment(row rowScanner) (*Installment, error) {
	var (
		inst    Installment
		amount  string
		method  string
		status  string
		dueDate time.Time
	)
	err := row.Scan(&inst.ID, &inst.PlanID, &inst.No, &dueDate, &amount, &inst.Currency, &method, &status, &inst.PaidAt, &inst.TransactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstallmentNotFound
		}
		return nil, err
	}
	inst.DueDate = dueDate
	inst.Method = PaymentMethod(method)
	inst.Status = InstallmentStatus(status)
	if inst.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &inst, nil
}
