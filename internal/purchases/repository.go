package purchases

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
)

// Repository encapsulates DB operations for purchase tracking.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPurchases(ctx context.Context, gasStationID, productID uuid.UUID, limit, offset int) ([]ledger.Transaction, error)
	RemainingLO(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error)
	ListOutstanding(ctx context.Context, gasStationID, productID uuid.UUID) ([]Outstanding, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error)
}

type repository struct {
	pool   *pgxpool.Pool
	poster *ledger.Poster
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool, poster *ledger.Poster) Repository {
	return &repository{pool: pool, poster: poster}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	wrapper := &txRepository{tx: tx, poster: r.poster}
	if err := fn(ctx, wrapper); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) ListPurchases(ctx context.Context, gasStationID, productID uuid.UUID, limit, offset int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, gas_station_id, product_id, date, description, reference_number, notes,
transaction_type, approval_status, approver_id, purchase_volume, delivered_volume, created_by,
source_module, source_id, created_at, updated_at
FROM transactions
WHERE gas_station_id=$1 AND product_id=$2 AND transaction_type=$3
ORDER BY date DESC, created_at DESC LIMIT $4 OFFSET $5`,
		gasStationID, productID, string(ledger.TransactionTypePurchaseBBM), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var txType, status string
		if err := rows.Scan(&tx.ID, &tx.GasStationID, &tx.ProductID, &tx.Date, &tx.Description, &tx.ReferenceNumber,
			&tx.Notes, &txType, &status, &tx.ApproverID, &tx.PurchaseVolume, &tx.DeliveredVolume,
			&tx.CreatedByID, &tx.SourceModule, &tx.SourceID, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		tx.Type = ledger.TransactionType(txType)
		tx.ApprovalStatus = ledger.ApprovalStatus(status)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// RemainingLO subtracts both delivered volume on approved purchases and the
// volume reserved by still-PENDING unloads, so a pending unload already
// counts against what a new unload may claim.
func (r *repository) RemainingLO(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	var purchased int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(purchase_volume - delivered_volume), 0)
FROM transactions
WHERE gas_station_id=$1 AND product_id=$2 AND transaction_type=$3 AND approval_status=$4`,
		gasStationID, productID, string(ledger.TransactionTypePurchaseBBM), string(ledger.StatusApproved)).Scan(&purchased)
	if err != nil {
		return 0, err
	}
	var reserved int64
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(u.delivered_volume), 0)
FROM unloads u
JOIN tanks t ON t.id = u.tank_id
WHERE t.gas_station_id=$1 AND t.product_id=$2 AND u.status='PENDING'`,
		gasStationID, productID).Scan(&reserved)
	if err != nil {
		return 0, err
	}
	return purchased - reserved, nil
}

func (r *repository) ListOutstanding(ctx context.Context, gasStationID, productID uuid.UUID) ([]Outstanding, error) {
	return queryOutstanding(ctx, r.pool, gasStationID, productID, false)
}

type txRepository struct {
	tx     pgx.Tx
	poster *ledger.Poster
}

func (r *txRepository) PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	return r.poster.Post(ctx, r.tx, in)
}

// QueryOutstandingForUpdate locks the outstanding purchase rows for a FIFO
// allocation. Callers hold the per-product advisory lock as well.
func QueryOutstandingForUpdate(ctx context.Context, tx pgx.Tx, gasStationID, productID uuid.UUID) ([]Outstanding, error) {
	return queryOutstanding(ctx, tx, gasStationID, productID, true)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryOutstanding(ctx context.Context, db querier, gasStationID, productID uuid.UUID, forUpdate bool) ([]Outstanding, error) {
	q := `SELECT id, date, purchase_volume, delivered_volume
FROM transactions
WHERE gas_station_id=$1 AND product_id=$2 AND transaction_type=$3 AND approval_status=$4
AND purchase_volume > delivered_volume
ORDER BY date ASC, created_at ASC`
	if forUpdate {
		q += " FOR UPDATE"
	}
	rows, err := db.Query(ctx, q, gasStationID, productID,
		string(ledger.TransactionTypePurchaseBBM), string(ledger.StatusApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Outstanding
	for rows.Next() {
		var o Outstanding
		if err := rows.Scan(&o.TransactionID, &o.Date, &o.PurchaseVolume, &o.DeliveredVolume); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ApplyAllocations bumps delivered_volume on each allocated purchase,
// guarded so no purchase can be pushed past its bought volume.
func ApplyAllocations(ctx context.Context, tx pgx.Tx, allocations []Allocation) error {
	for _, a := range allocations {
		cmd, err := tx.Exec(ctx, `UPDATE transactions
SET delivered_volume = delivered_volume + $2, updated_at = NOW()
WHERE id=$1 AND purchase_volume - delivered_volume >= $2`, a.PurchaseTransactionID, a.Volume)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrInsufficientLO
		}
	}
	return nil
}
