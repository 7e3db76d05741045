package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/inventory"
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

const contractColumns = `id, proposal_id, contract_no, project_name, job_address, start_date, deadline_date,
items_snapshot, customer_name, customer_address, customer_phone, customer_email,
customer_tax_number, customer_tax_office, subtotal_amount::text, tax_amount::text,
discount_amount::text, total_amount::text, currency, include_tax, tax_rate::text,
valid_until, notes, status`

func (s *PgTxStore) GetContractByProposalForUpdate(ctx context.Context, proposalID int64) (*Contract, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE proposal_id = $1 FOR UPDATE`, proposalID)
	return scanContract(row)
}

func (s *PgTxStore) GetContractForUpdate(ctx context.Context, id int64) (*Contract, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
	return scanContract(row)
}

func (s *PgTxStore) CreateContract(ctx context.Context, c *Contract) error {
	snapshot, err := json.Marshal(c.ItemsSnapshot)
	if err != nil {
		return fmt.Errorf("marshal items snapshot: %w", err)
	}
	err = s.tx.QueryRow(ctx, `INSERT INTO contracts (proposal_id, contract_no, project_name, job_address,
start_date, deadline_date, items_snapshot, customer_name, customer_address, customer_phone,
customer_email, customer_tax_number, customer_tax_office, subtotal_amount, tax_amount,
discount_amount, total_amount, currency, include_tax, tax_rate, valid_until, notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
RETURNING id`,
		c.ProposalID, c.ContractNo, c.ProjectName, c.JobAddress,
		c.StartDate, c.DeadlineDate, snapshot, c.CustomerName, c.CustomerAddress, c.CustomerPhone,
		c.CustomerEmail, c.CustomerTaxNumber, c.CustomerTaxOffice, c.SubtotalAmount.String(), c.TaxAmount.String(),
		c.DiscountAmount.String(), c.TotalAmount.String(), c.Currency, c.IncludeTax, c.TaxRate.String(),
		c.ValidUntil, c.Notes, string(c.Status)).Scan(&c.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "contracts_contract_no_key") {
			return ErrContractNoTaken
		}
		return err
	}
	return nil
}

func (s *PgTxStore) UpdateContract(ctx context.Context, c *Contract) error {
	snapshot, err := json.Marshal(c.ItemsSnapshot)
	if err != nil {
		return fmt.Errorf("marshal items snapshot: %w", err)
	}
	_, err = s.tx.Exec(ctx, `UPDATE contracts SET contract_no = $2, project_name = $3, job_address = $4,
deadline_date = $5, items_snapshot = $6, customer_name = $7, customer_address = $8,
customer_phone = $9, customer_email = $10, customer_tax_number = $11, customer_tax_office = $12,
subtotal_amount = $13, tax_amount = $14, discount_amount = $15, total_amount = $16, currency = $17,
include_tax = $18, tax_rate = $19, valid_until = $20, notes = $21, updated_at = NOW()
WHERE id = $1`,
		c.ID, c.ContractNo, c.ProjectName, c.JobAddress,
		c.DeadlineDate, snapshot, c.CustomerName, c.CustomerAddress,
		c.CustomerPhone, c.CustomerEmail, c.CustomerTaxNumber, c.CustomerTaxOffice,
		c.SubtotalAmount.String(), c.TaxAmount.String(), c.DiscountAmount.String(), c.TotalAmount.String(), c.Currency,
		c.IncludeTax, c.TaxRate.String(), c.ValidUntil, c.Notes)
	if err != nil {
		if db.IsUniqueViolation(err, "contracts_contract_no_key") {
			return ErrContractNoTaken
		}
		return err
	}
	return nil
}

func (s *PgTxStore) SetContractStatus(ctx context.Context, id int64, status ContractStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

func (s *PgTxStore) NextContractNo(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := s.tx.QueryRow(ctx, `INSERT INTO contract_sequences (year, last_number) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET last_number = contract_sequences.last_number + 1
RETURNING last_number`, year).Scan(&seq)
	return seq, err
}

const workOrderColumns = `id, contract_id, title, description, stage, kind, priority, slab_id, target_date`

func (s *PgTxStore) GetWorkOrder(ctx context.Context, contractID int64, title string) (*WorkOrder, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+workOrderColumns+` FROM work_orders
WHERE contract_id = $1 AND title = $2`, contractID, title)
	wo, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkOrderNotFound
		}
		return nil, err
	}
	return wo, nil
}

func (s *PgTxStore) CreateWorkOrder(ctx context.Context, wo *WorkOrder) error {
	return s.tx.QueryRow(ctx, `INSERT INTO work_orders (contract_id, title, description, stage, kind, priority, slab_id, target_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		wo.ContractID, wo.Title, wo.Description, string(wo.Stage), string(wo.Kind),
		wo.Priority, wo.SlabID, wo.TargetDate).Scan(&wo.ID)
}

func (s *PgTxStore) UpdateWorkOrder(ctx context.Context, wo *WorkOrder) error {
	_, err := s.tx.Exec(ctx, `UPDATE work_orders SET description = $2, stage = $3, kind = $4,
priority = $5, slab_id = $6, target_date = $7, updated_at = NOW() WHERE id = $1`,
		wo.ID, wo.Description, string(wo.Stage), string(wo.Kind),
		wo.Priority, wo.SlabID, wo.TargetDate)
	return err
}

func (s *PgTxStore) ListWorkOrders(ctx context.Context, contractID int64) ([]WorkOrder, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+workOrderColumns+` FROM work_orders
WHERE contract_id = $1 ORDER BY priority, id`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wo)
	}
	return out, rows.Err()
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
			Contracts: NewTxStore(tx),
			Inventory: inventory.NewTxStore(tx),
		})
	})
}

func (r *PgRepository) GetContract(ctx context.Context, id int64) (*Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	return scanContract(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*Contract, error) {
	var (
		c        Contract
		snapshot []byte
		status   string
	)
	var subtotal, tax, discount, total, taxRate string
	err := row.Scan(&c.ID, &c.ProposalID, &c.ContractNo, &c.ProjectName, &c.JobAddress, &c.StartDate, &c.DeadlineDate,
		&snapshot, &c.CustomerName, &c.CustomerAddress, &c.CustomerPhone, &c.CustomerEmail,
		&c.CustomerTaxNumber, &c.CustomerTaxOffice, &subtotal, &tax,
		&discount, &total, &c.Currency, &c.IncludeTax, &taxRate,
		&c.ValidUntil, &c.Notes, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &c.ItemsSnapshot); err != nil {
			return nil, fmt.Errorf("decode items snapshot: %w", err)
		}
	}
	c.Status = ContractStatus(status)
	if c.SubtotalAmount, err = decimal.NewFromString(subtotal); err != nil {
		return nil, err
	}
	if c.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return nil, err
	}
	if c.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, err
	}
	if c.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if c.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanWorkOrder(row rowScanner) (*WorkOrder, error) {
	var (
		wo    WorkOrder
		stage string
		kind  string
	)
	err := row.Scan(&wo.ID, &wo.ContractID, &wo.Title, &wo.Description, &stage, &kind,
		&wo.Priority, &wo.SlabID, &wo.TargetDate)
	if err != nil {
		return nil, err
	}
	wo.Stage = WorkOrderStage(stage)
	wo.Kind = WorkOrderKind(kind)
	return &wo, nil
}
