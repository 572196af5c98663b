package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, gas_station_id, product_id, date, description, reference_number, notes,
transaction_type, approval_status, approver_id, purchase_volume, delivered_volume, evidence_urls,
created_by, source_module, source_id, created_at, updated_at`

// Repository encapsulates DB operations for the ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListByStation(ctx context.Context, gasStationID uuid.UUID, limit, offset int) ([]Transaction, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Post(ctx context.Context, in PostingInput) (Transaction, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error)
	GetEntries(ctx context.Context, id uuid.UUID) ([]JournalEntry, error)
	SetApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, approverID uuid.UUID) error
}

type repository struct {
	pool   *pgxpool.Pool
	poster *Poster
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool, poster *Poster) Repository {
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

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	tx.Entries, err = queryEntries(ctx, r.pool, id)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (r *repository) ListByStation(ctx context.Context, gasStationID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
WHERE gas_station_id=$1 ORDER BY date DESC, created_at DESC LIMIT $2 OFFSET $3`, gasStationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

type txRepository struct {
	tx     pgx.Tx
	poster *Poster
}

func (r *txRepository) Post(ctx context.Context, in PostingInput) (Transaction, error) {
	return r.poster.Post(ctx, r.tx, in)
}

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1 FOR UPDATE`, id)
	return scanTransaction(row)
}

func (r *txRepository) GetEntries(ctx context.Context, id uuid.UUID) ([]JournalEntry, error) {
	return queryEntries(ctx, r.tx, id)
}

func (r *txRepository) SetApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, approverID uuid.UUID) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET approval_status=$2, approver_id=$3, updated_at=NOW() WHERE id=$1`,
		id, string(status), approverID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var txType, status string
	err := row.Scan(&tx.ID, &tx.GasStationID, &tx.ProductID, &tx.Date, &tx.Description, &tx.ReferenceNumber,
		&tx.Notes, &txType, &status, &tx.ApproverID, &tx.PurchaseVolume, &tx.DeliveredVolume,
		&tx.EvidenceURLs, &tx.CreatedByID, &tx.SourceModule, &tx.SourceID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	tx.Type = TransactionType(txType)
	tx.ApprovalStatus = ApprovalStatus(status)
	return tx, nil
}

func queryEntries(ctx context.Context, db DBTX, txID uuid.UUID) ([]JournalEntry, error) {
	rows, err := db.Query(ctx, `SELECT id, transaction_id, coa_id, debit, credit, description
FROM journal_entries WHERE transaction_id=$1 ORDER BY id ASC`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.COAID, &e.Debit, &e.Credit, &e.Description); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
