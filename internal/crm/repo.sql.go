package crm

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/core"
	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/platform/db"
	"github.com/dgknshn20/yapigraniterp/internal/production"
)

// PgTxStore implements TxStore on a caller-provided transaction.
type PgTxStore struct {
	tx db.Tx
}

// NewTxStore constructs a PgTxStore.
func NewTxStore(tx db.Tx) *PgTxStore {
	return &PgTxStore{tx: tx}
}

const proposalColumns = `id, number, customer_id, status, currency, include_tax, tax_rate::text,
total_amount::text, discount_amount::text, valid_until, project_name, job_address,
payment_method, notes, internal_notes`

func (s *PgTxStore) GetProposalForUpdate(ctx context.Context, id int64) (*Proposal, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id)
	return scanProposal(row)
}

func (s *PgTxStore) getProposal(ctx context.Context, id int64) (*Proposal, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	return scanProposal(row)
}

func (s *PgTxStore) SetProposalStatus(ctx context.Context, id int64, status ProposalStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

func (s *PgTxStore) SetProposalTotal(ctx context.Context, id int64, total string) error {
	_, err := s.tx.Exec(ctx, `UPDATE proposals SET total_amount = $2, updated_at = NOW() WHERE id = $1`, id, total)
	return err
}

const itemColumns = `id, proposal_id, product_id, product_name, slab_id, slab_barcode, description,
stone_type, size_text, total_measure::text, total_unit, width::text, length::text,
thickness_mm::text, quantity, unit_price::text, fire_rate::text, labor_cost::text, total_price::text`

func (s *PgTxStore) ListItems(ctx context.Context, proposalID int64) ([]ProposalItem, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+itemColumns+` FROM proposal_items
WHERE proposal_id = $1 ORDER BY id`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProposalItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func (s *PgTxStore) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, name, address, phone, email, tax_number, tax_office
FROM customers WHERE id = $1`, id)
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.TaxNumber, &c.TaxOffice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PgTxStore) GetAppointment(ctx context.Context, customerID int64, sourceType string, sourceID int64) (*Appointment, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, customer_id, title, notes, due_at, source_type, source_id
FROM appointments WHERE customer_id = $1 AND source_type = $2 AND source_id = $3`,
		customerID, sourceType, sourceID)
	var a Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.Title, &a.Notes, &a.DueAt, &a.SourceType, &a.SourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *PgTxStore) CreateAppointment(ctx context.Context, a *Appointment) error {
	return s.tx.QueryRow(ctx, `INSERT INTO appointments (customer_id, title, notes, due_at, source_type, source_id)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.CustomerID, a.Title, a.Notes, a.DueAt, a.SourceType, a.SourceID).Scan(&a.ID)
}

func (s *PgTxStore) UpdateAppointment(ctx context.Context, a *Appointment) error {
	_, err := s.tx.Exec(ctx, `UPDATE appointments SET title = $2, notes = $3, due_at = $4, updated_at = NOW()
WHERE id = $1`, a.ID, a.Title, a.Notes, a.DueAt)
	return err
}

func (s *PgTxStore) GetApprovalFlow(ctx context.Context, proposalID int64) (*ApprovalFlow, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, proposal_id, approved_by_id, approved_at, contract_id, payment_plan_id, reservation_ids
FROM offer_approval_flows WHERE proposal_id = $1`, proposalID)
	var f ApprovalFlow
	err := row.Scan(&f.ID, &f.ProposalID, &f.ApprovedByID, &f.ApprovedAt, &f.ContractID, &f.PaymentPlanID, &f.ReservationIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApprovalFlowNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *PgTxStore) CreateApprovalFlow(ctx context.Context, f *ApprovalFlow) error {
	return s.tx.QueryRow(ctx, `INSERT INTO offer_approval_flows (proposal_id, approved_by_id, approved_at, contract_id, payment_plan_id, reservation_ids)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		f.ProposalID, f.ApprovedByID, f.ApprovedAt, f.ContractID, f.PaymentPlanID, f.ReservationIDs).Scan(&f.ID)
}

func (s *PgTxStore) UpdateApprovalFlow(ctx context.Context, f *ApprovalFlow) error {
	_, err := s.tx.Exec(ctx, `UPDATE offer_approval_flows SET approved_by_id = $2, contract_id = $3,
payment_plan_id = $4, reservation_ids = $5, updated_at = NOW() WHERE id = $1`,
		f.ID, f.ApprovedByID, f.ContractID, f.PaymentPlanID, f.ReservationIDs)
	return err
}

func (s *PgTxStore) UpsertAudit(ctx context.Context, e *AuditEntry) error {
	return s.tx.QueryRow(ctx, `INSERT INTO offer_audit_logs (proposal_id, action, message, actor_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (proposal_id, action) DO UPDATE SET message = EXCLUDED.message,
actor_id = EXCLUDED.actor_id, updated_at = NOW()
RETURNING id`, e.ProposalID, e.Action, e.Message, e.ActorID).Scan(&e.ID)
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
			CRM:        NewTxStore(tx),
			Production: production.NewTxStore(tx),
			Inventory:  inventory.NewTxStore(tx),
			Finance:    finance.NewTxStore(tx),
			Core:       core.NewTxStore(tx),
		})
	})
}

func (r *PgRepository) GetProposal(ctx context.Context, id int64) (*Proposal, error) {
	return NewTxStore(r.pool).getProposal(ctx, id)
}

func (r *PgRepository) ListItems(ctx context.Context, proposalID int64) ([]ProposalItem, error) {
	return NewTxStore(r.pool).ListItems(ctx, proposalID)
}

func (r *PgRepository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return NewTxStore(r.pool).GetCustomer(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*Proposal, error) {
	var (
		p       Proposal
		status  string
		taxRate string
		total   string
		disc    string
	)
	err := row.Scan(&p.ID, &p.Number, &p.CustomerID, &status, &p.Currency, &p.IncludeTax, &taxRate,
		&total, &disc, &p.ValidUntil, &p.ProjectName, &p.JobAddress,
		&p.PaymentMethod, &p.Notes, &p.InternalNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	p.Status = ProposalStatus(status)
	if p.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, err
	}
	if p.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if p.DiscountAmount, err = decimal.NewFromString(disc); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanItem(row rowScanner) (*ProposalItem, error) {
	var (
		item      ProposalItem
		measure   *string
		thickness *string
		width     string
		length    string
		unitPrice string
		fireRate  string
		laborCost string
		total     string
	)
	err := row.Scan(&item.ID, &item.ProposalID, &item.ProductID, &item.ProductName, &item.SlabID,
		&item.SlabBarcode, &item.Description, &item.StoneType, &item.SizeText, &measure,
		&item.TotalUnit, &width, &length, &thickness, &item.Quantity,
		&unitPrice, &fireRate, &laborCost, &total)
	if err != nil {
		return nil, err
	}
	if measure != nil {
		m, err := decimal.NewFromString(*measure)
		if err != nil {
			return nil, err
		}
		item.TotalMeasure = &m
	}
	if thickness != nil {
		t, err := decimal.NewFromString(*thickness)
		if err != nil {
			return nil, err
		}
		item.ThicknessMM = &t
	}
	if item.Width, err = decimal.NewFromString(width); err != nil {
		return nil, err
	}
	if item.Length, err = decimal.NewFromString(length); err != nil {
		return nil, err
	}
	if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, err
	}
	if item.FireRate, err = decimal.NewFromString(fireRate); err != nil {
		return nil, err
	}
	if item.LaborCost, err = decimal.NewFromString(laborCost); err != nil {
		return nil, err
	}
	if item.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &item, nil
}
