package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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

const slabColumns = `id, product_id, barcode, width::text, length::text, thickness_mm::text,
status, reserved_for_id, reserved_at, soft_reserved_for_id, soft_reserved_until, location`

func (s *PgTxStore) GetSlabForUpdate(ctx context.Context, id int64) (*Slab, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+slabColumns+` FROM slabs WHERE id = $1 FOR UPDATE`, id)
	return scanSlab(row)
}

func (s *PgTxStore) UpdateSlab(ctx context.Context, slab *Slab) error {
	_, err := s.tx.Exec(ctx, `UPDATE slabs SET status = $2, reserved_for_id = $3, reserved_at = $4,
soft_reserved_for_id = $5, soft_reserved_until = $6, updated_at = NOW() WHERE id = $1`,
		slab.ID, string(slab.Status), slab.ReservedForID, slab.ReservedAt,
		slab.SoftReservedForID, slab.SoftReservedUntil)
	return err
}

const reservationColumns = `id, contract_id, proposal_item_id, product_id, slab_id,
area_m2::text, thickness_mm::text, status, expires_at, released_at, release_reason`

func (s *PgTxStore) GetReservation(ctx context.Context, contractID, proposalItemID int64) (*StockReservation, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM stock_reservations
WHERE contract_id = $1 AND proposal_item_id = $2`, contractID, proposalItemID)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

func (s *PgTxStore) CreateReservation(ctx context.Context, res *StockReservation) error {
	var thickness *string
	if res.ThicknessMM != nil {
		v := res.ThicknessMM.String()
		thickness = &v
	}
	return s.tx.QueryRow(ctx, `INSERT INTO stock_reservations
(contract_id, proposal_item_id, product_id, slab_id, area_m2, thickness_mm, status, expires_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		res.ContractID, res.ProposalItemID, res.ProductID, res.SlabID,
		res.AreaM2.String(), thickness, string(res.Status), res.ExpiresAt).Scan(&res.ID)
}

func (s *PgTxStore) UpdateReservation(ctx context.Context, res *StockReservation) error {
	var thickness *string
	if res.ThicknessMM != nil {
		v := res.ThicknessMM.String()
		thickness = &v
	}
	_, err := s.tx.Exec(ctx, `UPDATE stock_reservations SET product_id = $2, slab_id = $3,
area_m2 = $4, thickness_mm = $5, status = $6, expires_at = $7, released_at = $8,
release_reason = $9, updated_at = NOW() WHERE id = $1`,
		res.ID, res.ProductID, res.SlabID, res.AreaM2.String(), thickness,
		string(res.Status), res.ExpiresAt, res.ReleasedAt, res.ReleaseReason)
	return err
}

func (s *PgTxStore) ListReservationsByContract(ctx context.Context, contractID int64) ([]StockReservation, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+reservationColumns+` FROM stock_reservations
WHERE contract_id = $1 ORDER BY id`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockReservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// Repository is the pool-backed inventory repository used outside the
// finalize transaction (sweeper, reads).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListExpiredSoft(ctx context.Context, now time.Time) ([]ExpiredReservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.contract_id, c.proposal_id, r.slab_id
FROM stock_reservations r
JOIN contracts c ON c.id = r.contract_id
WHERE r.status = 'SOFT_RESERVED' AND r.expires_at < $1
ORDER BY r.id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiredReservation
	for rows.Next() {
		var res ExpiredReservation
		if err := rows.Scan(&res.ID, &res.ContractID, &res.ProposalID, &res.SlabID); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repository) ReleaseReservation(ctx context.Context, id int64, now time.Time, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_reservations
SET status = 'RELEASED', released_at = $2, release_reason = $3, updated_at = NOW()
WHERE id = $1 AND status = 'SOFT_RESERVED'`, id, now, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ClearSlabSoftHold(ctx context.Context, slabID, contractID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE slabs
SET soft_reserved_for_id = NULL, soft_reserved_until = NULL, updated_at = NOW()
WHERE id = $1 AND soft_reserved_for_id = $2`, slabID, contractID)
	return err
}

func (r *Repository) UpsertReleaseAudit(ctx context.Context, proposalID int64, action, message string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO offer_audit_logs (proposal_id, action, message, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
ON CONFLICT (proposal_id, action) DO UPDATE SET message = EXCLUDED.message,
metadata = EXCLUDED.metadata, updated_at = NOW()`, proposalID, action, message, metaJSON)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlab(row rowScanner) (*Slab, error) {
	var slab Slab
	var width, length, thickness, status string
	err := row.Scan(&slab.ID, &slab.ProductID, &slab.Barcode, &width, &length, &thickness,
		&status, &slab.ReservedForID, &slab.ReservedAt,
		&slab.SoftReservedForID, &slab.SoftReservedUntil, &slab.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlabNotFound
		}
		return nil, err
	}
	slab.Status = SlabStatus(status)
	if slab.Width, err = decimal.NewFromString(width); err != nil {
		return nil, err
	}
	if slab.Length, err = decimal.NewFromString(length); err != nil {
		return nil, err
	}
	if slab.ThicknessMM, err = decimal.NewFromString(thickness); err != nil {
		return nil, err
	}
	return &slab, nil
}

func scanReservation(row rowScanner) (*StockReservation, error) {
	var res StockReservation
	var area, status string
	var thickness *string
	err := row.Scan(&res.ID, &res.ContractID, &res.ProposalItemID, &res.ProductID, &res.SlabID,
		&area, &thickness, &status, &res.ExpiresAt, &res.ReleasedAt, &res.ReleaseReason)
	if err != nil {
		return nil, err
	}
	res.Status = ReservationStatus(status)
	if res.AreaM2, err = decimal.NewFromString(area); err != nil {
		return nil, err
	}
	if thickness != nil {
		t, err := decimal.NewFromString(*thickness)
		if err != nil {
			return nil, err
		}
		res.ThicknessMM = &t
	}
	return &res, nil
}
