package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both pgxpool.Pool and pgx.Tx so other modules can
// post journals inside their own transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Poster writes balanced journals. It owns no transaction of its own; the
// caller's atomic boundary applies.
type Poster struct {
	now      func() time.Time
	onPosted func(sourceModule string)
}

// NewPoster constructs a Poster.
func NewPoster() *Poster {
	return &Poster{now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// OnPosted registers a hook invoked after every successful post, keyed by
// the source module. Used to feed metrics.
func (p *Poster) OnPosted(fn func(sourceModule string)) {
	p.onPosted = fn
}

// FindOrCreateCOA resolves a canonical account to its row, creating it on
// first use. Idempotent under concurrent callers via the uniqueness
// constraint on (gas_station_id, name), not a read-then-write race.
func (p *Poster) FindOrCreateCOA(ctx context.Context, db DBTX, gasStationID uuid.UUID, ref AccountRef) (COA, error) {
	if ref.Name == "" || ref.Category == "" {
		return COA{}, errors.New("ledger: account name and category required")
	}
	_, err := db.Exec(ctx, `INSERT INTO coas (gas_station_id, name, category, active)
VALUES ($1, $2, $3, true)
ON CONFLICT (gas_station_id, name) DO NOTHING`, gasStationID, ref.Name, string(ref.Category))
	if err != nil {
		return COA{}, fmt.Errorf("ledger: create coa %q: %w", ref.Name, err)
	}
	var coa COA
	var category string
	err = db.QueryRow(ctx, `SELECT id, gas_station_id, name, category, active FROM coas
WHERE gas_station_id=$1 AND name=$2`, gasStationID, ref.Name).
		Scan(&coa.ID, &coa.GasStationID, &coa.Name, &category, &coa.Active)
	if err != nil {
		return COA{}, fmt.Errorf("ledger: find coa %q: %w", ref.Name, err)
	}
	coa.Category = COACategory(category)
	return coa, nil
}

// Post validates and writes the transaction plus its journal entries.
// The balance invariant is re-checked here even for pre-validated input.
func (p *Poster) Post(ctx context.Context, db DBTX, in PostingInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	now := p.now().UTC()
	tx := Transaction{
		ID:              uuid.New(),
		GasStationID:    in.GasStationID,
		ProductID:       in.ProductID,
		Date:            in.Date,
		Description:     in.Description,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		Type:            in.Type,
		ApprovalStatus:  status,
		PurchaseVolume:  in.PurchaseVolume,
		EvidenceURLs:    in.EvidenceURLs,
		CreatedByID:     in.CreatedBy,
		SourceModule:    in.SourceModule,
		SourceID:        in.SourceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := db.Exec(ctx, `INSERT INTO transactions
(id, gas_station_id, product_id, date, description, reference_number, notes, transaction_type, approval_status, purchase_volume, delivered_volume, evidence_urls, created_by, source_module, source_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,$11,$12,$13,$14,$15,$15)`,
		tx.ID, tx.GasStationID, tx.ProductID, tx.Date, tx.Description, tx.ReferenceNumber, tx.Notes,
		string(tx.Type), string(tx.ApprovalStatus), tx.PurchaseVolume, tx.EvidenceURLs, tx.CreatedByID, tx.SourceModule, tx.SourceID, now)
	if err != nil {
		if isUniqueViolation(err, "uq_transactions_source") {
			return Transaction{}, ErrSourceConflict
		}
		return Transaction{}, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	for _, line := range in.Lines {
		coaID := line.COAID
		if coaID == 0 {
			coa, err := p.FindOrCreateCOA(ctx, db, in.GasStationID, line.Account)
			if err != nil {
				return Transaction{}, err
			}
			coaID = coa.ID
		}
		var entryID int64
		err = db.QueryRow(ctx, `INSERT INTO journal_entries (transaction_id, coa_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, tx.ID, coaID, line.Debit, line.Credit, line.Description).Scan(&entryID)
		if err != nil {
			return Transaction{}, fmt.Errorf("ledger: insert journal entry: %w", err)
		}
		tx.Entries = append(tx.Entries, JournalEntry{
			ID:            entryID,
			TransactionID: tx.ID,
			COAID:         coaID,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Description:   line.Description,
		})
	}
	if p.onPosted != nil {
		p.onPosted(tx.SourceModule)
	}
	return tx, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
