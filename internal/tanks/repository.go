package tanks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	platformdb "github.com/PettaPuang/nozzle.website-sub003/internal/platform/db"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

const readingColumns = `id, tank_id, gas_station_id, product_id, operational_date, liter_value,
stock_open, stock_realtime, variance, status, loader_id, approver_id, photo_urls, created_at, updated_at`

const unloadColumns = `id, tank_id, gas_station_id, product_id, purchase_transaction_id,
delivered_volume, liter_amount, operational_date, status, created_by, approver_id, photo_urls, unloaded_at, created_at`

// Repository persists tank readings and unloads.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReading(ctx context.Context, id uuid.UUID) (TankReading, error)
	ListReadings(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]TankReading, error)
	GetUnload(ctx context.Context, id uuid.UUID) (Unload, error)
	ListUnloads(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]Unload, error)
	LatestApprovedReadingBefore(ctx context.Context, tankID uuid.UUID, date time.Time) (*AnchorReading, error)
	SumMovements(ctx context.Context, tankID uuid.UUID, from, to time.Time) (Movements, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LockTankDate(ctx context.Context, tankID uuid.UUID, date time.Time) error
	LockProductLO(ctx context.Context, gasStationID, productID uuid.UUID) error
	HasActiveReading(ctx context.Context, tankID uuid.UUID, date time.Time) (bool, error)
	InsertReading(ctx context.Context, r TankReading) error
	GetReadingForUpdate(ctx context.Context, id uuid.UUID) (TankReading, error)
	SetReadingStatus(ctx context.Context, id uuid.UUID, status ReadingStatus, approverID uuid.UUID) error
	InsertUnload(ctx context.Context, u Unload) error
	GetUnloadForUpdate(ctx context.Context, id uuid.UUID) (Unload, error)
	SetUnloadStatus(ctx context.Context, id uuid.UUID, status UnloadStatus, approverID uuid.UUID, purchaseTxID *uuid.UUID) error
	InsertAllocations(ctx context.Context, unloadID uuid.UUID, allocations []purchases.Allocation) error
	OutstandingForUpdate(ctx context.Context, gasStationID, productID uuid.UUID) ([]purchases.Outstanding, error)
	ApplyAllocations(ctx context.Context, allocations []purchases.Allocation) error
	PendingReservedVolume(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error)
	LatestApprovedReadingBefore(ctx context.Context, tankID uuid.UUID, date time.Time) (*AnchorReading, error)
	SumMovements(ctx context.Context, tankID uuid.UUID, from, to time.Time) (Movements, error)
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

	if err := fn(ctx, &txRepository{tx: tx, poster: r.poster}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) GetReading(ctx context.Context, id uuid.UUID) (TankReading, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+readingColumns+` FROM tank_readings WHERE id=$1`, id)
	return scanReading(row)
}

func (r *repository) ListReadings(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]TankReading, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+readingColumns+` FROM tank_readings
WHERE tank_id=$1 ORDER BY operational_date DESC, created_at DESC LIMIT $2 OFFSET $3`, tankID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var readings []TankReading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func (r *repository) GetUnload(ctx context.Context, id uuid.UUID) (Unload, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+unloadColumns+` FROM unloads WHERE id=$1`, id)
	return scanUnload(row)
}

func (r *repository) ListUnloads(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]Unload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+unloadColumns+` FROM unloads
WHERE tank_id=$1 ORDER BY unloaded_at DESC LIMIT $2 OFFSET $3`, tankID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var unloads []Unload
	for rows.Next() {
		u, err := scanUnload(rows)
		if err != nil {
			return nil, err
		}
		unloads = append(unloads, u)
	}
	return unloads, rows.Err()
}

func (r *repository) LatestApprovedReadingBefore(ctx context.Context, tankID uuid.UUID, date time.Time) (*AnchorReading, error) {
	return latestApprovedBefore(ctx, r.pool, tankID, date)
}

func (r *repository) SumMovements(ctx context.Context, tankID uuid.UUID, from, to time.Time) (Movements, error) {
	return sumMovements(ctx, r.pool, tankID, from, to)
}

type txRepository struct {
	tx     pgx.Tx
	poster *ledger.Poster
}

func (r *txRepository) LockTankDate(ctx context.Context, tankID uuid.UUID, date time.Time) error {
	return platformdb.AdvisoryLock(ctx, r.tx, shared.TankDateLockKey(tankID, date.Format("2006-01-02")))
}

func (r *txRepository) LockProductLO(ctx context.Context, gasStationID, productID uuid.UUID) error {
	return platformdb.AdvisoryLock(ctx, r.tx, shared.ProductLOLockKey(gasStationID, productID))
}

func (r *txRepository) HasActiveReading(ctx context.Context, tankID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tank_readings
WHERE tank_id=$1 AND operational_date=$2 AND status <> $3)`, tankID, date, string(ReadingRejected)).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertReading(ctx context.Context, reading TankReading) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO tank_readings
(id, tank_id, gas_station_id, product_id, operational_date, liter_value, stock_open, stock_realtime, variance, status, loader_id, photo_urls, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
		reading.ID, reading.TankID, reading.GasStationID, reading.ProductID, reading.OperationalDate,
		reading.LiterValue, reading.StockOpen, reading.StockRealtime, reading.Variance,
		string(reading.Status), reading.LoaderID, reading.PhotoURLs, reading.CreatedAt)
	return err
}

func (r *txRepository) GetReadingForUpdate(ctx context.Context, id uuid.UUID) (TankReading, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+readingColumns+` FROM tank_readings WHERE id=$1 FOR UPDATE`, id)
	return scanReading(row)
}

func (r *txRepository) SetReadingStatus(ctx context.Context, id uuid.UUID, status ReadingStatus, approverID uuid.UUID) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE tank_readings SET status=$2, approver_id=$3, updated_at=NOW() WHERE id=$1`,
		id, string(status), approverID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertUnload(ctx context.Context, u Unload) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO unloads
(id, tank_id, gas_station_id, product_id, delivered_volume, liter_amount, operational_date, status, created_by, photo_urls, unloaded_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		u.ID, u.TankID, u.GasStationID, u.ProductID, u.DeliveredVolume, u.LiterAmount,
		u.OperationalDate, string(u.Status), u.CreatedByID, u.PhotoURLs, u.UnloadedAt, u.CreatedAt)
	return err
}

func (r *txRepository) GetUnloadForUpdate(ctx context.Context, id uuid.UUID) (Unload, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+unloadColumns+` FROM unloads WHERE id=$1 FOR UPDATE`, id)
	return scanUnload(row)
}

func (r *txRepository) SetUnloadStatus(ctx context.Context, id uuid.UUID, status UnloadStatus, approverID uuid.UUID, purchaseTxID *uuid.UUID) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE unloads SET status=$2, approver_id=$3, purchase_transaction_id=$4 WHERE id=$1`,
		id, string(status), approverID, purchaseTxID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertAllocations(ctx context.Context, unloadID uuid.UUID, allocations []purchases.Allocation) error {
	for _, a := range allocations {
		_, err := r.tx.Exec(ctx, `INSERT INTO unload_allocations (unload_id, purchase_transaction_id, volume)
VALUES ($1,$2,$3)`, unloadID, a.PurchaseTransactionID, a.Volume)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) OutstandingForUpdate(ctx context.Context, gasStationID, productID uuid.UUID) ([]purchases.Outstanding, error) {
	return purchases.QueryOutstandingForUpdate(ctx, r.tx, gasStationID, productID)
}

func (r *txRepository) ApplyAllocations(ctx context.Context, allocations []purchases.Allocation) error {
	return purchases.ApplyAllocations(ctx, r.tx, allocations)
}

// PendingReservedVolume sums delivered volume claimed by PENDING unloads
// for a product; those reservations already count against remaining LO.
func (r *txRepository) PendingReservedVolume(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	var reserved int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(delivered_volume), 0) FROM unloads
WHERE gas_station_id=$1 AND product_id=$2 AND status=$3`,
		gasStationID, productID, string(UnloadPending)).Scan(&reserved)
	return reserved, err
}

func (r *txRepository) LatestApprovedReadingBefore(ctx context.Context, tankID uuid.UUID, date time.Time) (*AnchorReading, error) {
	return latestApprovedBefore(ctx, r.tx, tankID, date)
}

func (r *txRepository) SumMovements(ctx context.Context, tankID uuid.UUID, from, to time.Time) (Movements, error) {
	return sumMovements(ctx, r.tx, tankID, from, to)
}

func (r *txRepository) PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	return r.poster.Post(ctx, r.tx, in)
}

func latestApprovedBefore(ctx context.Context, db ledger.DBTX, tankID uuid.UUID, date time.Time) (*AnchorReading, error) {
	var anchor AnchorReading
	err := db.QueryRow(ctx, `SELECT liter_value, operational_date FROM tank_readings
WHERE tank_id=$1 AND operational_date < $2 AND status=$3
ORDER BY operational_date DESC LIMIT 1`, tankID, date, string(ReadingApproved)).
		Scan(&anchor.LiterValue, &anchor.OperationalDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &anchor, nil
}

// tankSalesQuery attributes sales to the tank each nozzle draws from, so a
// product split across tanks is never counted twice.
const tankSalesQuery = `SELECT
COALESCE(SUM(c.totalizer_reading - o.totalizer_reading - c.pump_test), 0),
COALESCE(SUM(c.pump_test), 0)
FROM nozzle_readings c
JOIN nozzle_readings o ON o.operator_shift_id = c.operator_shift_id
	AND o.nozzle_id = c.nozzle_id AND o.reading_type = 'OPEN'
JOIN operator_shifts sh ON sh.id = c.operator_shift_id
JOIN deposits d ON d.operator_shift_id = sh.id AND d.status = 'APPROVED'
JOIN nozzles n ON n.id = c.nozzle_id AND n.tank_id = $1
WHERE c.reading_type = 'CLOSE'
AND ($2::date IS NULL OR sh.date >= $2) AND sh.date < $3`

// sumMovements totals approved unloads and deposit-approved sales over a
// window of operational dates. A zero from bound means "since forever".
func sumMovements(ctx context.Context, db ledger.DBTX, tankID uuid.UUID, from, to time.Time) (Movements, error) {
	var m Movements
	var fromArg any
	if !from.IsZero() {
		fromArg = from
	}
	err := db.QueryRow(ctx, `SELECT COALESCE(SUM(liter_amount), 0) FROM unloads
WHERE tank_id=$1 AND status=$2 AND ($3::date IS NULL OR operational_date >= $3) AND operational_date < $4`,
		tankID, string(UnloadApproved), fromArg, to).Scan(&m.UnloadedLiters)
	if err != nil {
		return Movements{}, err
	}
	err = db.QueryRow(ctx, tankSalesQuery, tankID, fromArg, to).Scan(&m.SoldLiters, &m.PumpTestLiters)
	if err != nil {
		return Movements{}, err
	}
	return m, nil
}

func scanReading(row pgx.Row) (TankReading, error) {
	var reading TankReading
	var status string
	err := row.Scan(&reading.ID, &reading.TankID, &reading.GasStationID, &reading.ProductID,
		&reading.OperationalDate, &reading.LiterValue, &reading.StockOpen, &reading.StockRealtime,
		&reading.Variance, &status, &reading.LoaderID, &reading.ApproverID, &reading.PhotoURLs,
		&reading.CreatedAt, &reading.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TankReading{}, ErrNotFound
		}
		return TankReading{}, err
	}
	reading.Status = ReadingStatus(status)
	return reading, nil
}

func scanUnload(row pgx.Row) (Unload, error) {
	var u Unload
	var status string
	err := row.Scan(&u.ID, &u.TankID, &u.GasStationID, &u.ProductID, &u.PurchaseTransactionID,
		&u.DeliveredVolume, &u.LiterAmount, &u.OperationalDate, &status, &u.CreatedByID,
		&u.ApproverID, &u.PhotoURLs, &u.UnloadedAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unload{}, ErrNotFound
		}
		return Unload{}, err
	}
	u.Status = UnloadStatus(status)
	return u, nil
}
