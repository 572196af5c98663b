package shifts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	platformdb "github.com/PettaPuang/nozzle.website-sub003/internal/platform/db"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

const shiftColumns = `id, station_id, gas_station_id, operator_id, date, slot, status, is_verified, created_at, updated_at`

const depositColumns = `id, operator_shift_id, total_amount, operator_declared_amount, admin_received_amount,
status, titipan, free_fuel, photo_urls, created_at, updated_at`

// SaleLine is the computed sales figure for one product across a shift's
// nozzles: close - open - pumpTest at the OPEN reading's price snapshot.
type SaleLine struct {
	ProductID     uuid.UUID
	ProductName   string
	Liters        int64
	PumpTest      int64
	PriceSnapshot int64
}

// Repository persists operator shifts, nozzle readings and deposits.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetShift(ctx context.Context, id uuid.UUID) (OperatorShift, error)
	ListShifts(ctx context.Context, gasStationID uuid.UUID, date time.Time) ([]OperatorShift, error)
	GetDepositByShift(ctx context.Context, shiftID uuid.UUID) (Deposit, error)
	ListNozzleReadings(ctx context.Context, shiftID uuid.UUID) ([]NozzleReading, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LockStation(ctx context.Context, gasStationID uuid.UUID) error
	InsertShift(ctx context.Context, s OperatorShift) error
	GetShiftForUpdate(ctx context.Context, id uuid.UUID) (OperatorShift, error)
	SetShiftStatus(ctx context.Context, id uuid.UUID, status ShiftStatus) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	ListSequenced(ctx context.Context, gasStationID uuid.UUID) ([]SequencedShift, error)
	InsertNozzleReading(ctx context.Context, r NozzleReading) error
	GetNozzleReading(ctx context.Context, shiftID, nozzleID uuid.UUID, t ReadingType) (NozzleReading, error)
	LastCloseTotalizer(ctx context.Context, nozzleID uuid.UUID) (int64, error)
	SalesForShift(ctx context.Context, shiftID uuid.UUID) ([]SaleLine, error)
	InsertDeposit(ctx context.Context, d Deposit) error
	GetDepositForUpdate(ctx context.Context, shiftID uuid.UUID) (Deposit, error)
	SetDepositStatus(ctx context.Context, id uuid.UUID, status DepositStatus, adminReceived *int64) error
	DeleteNonApprovedDeposit(ctx context.Context, shiftID uuid.UUID) error
	DeleteShiftCascade(ctx context.Context, shiftID uuid.UUID) error
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

func (r *repository) GetShift(ctx context.Context, id uuid.UUID) (OperatorShift, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM operator_shifts WHERE id=$1`, id)
	return scanShift(row)
}

func (r *repository) ListShifts(ctx context.Context, gasStationID uuid.UUID, date time.Time) ([]OperatorShift, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shiftColumns+` FROM operator_shifts
WHERE gas_station_id=$1 AND date=$2 ORDER BY slot`, gasStationID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []OperatorShift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (r *repository) GetDepositByShift(ctx context.Context, shiftID uuid.UUID) (Deposit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE operator_shift_id=$1`, shiftID)
	return scanDeposit(row)
}

func (r *repository) ListNozzleReadings(ctx context.Context, shiftID uuid.UUID) ([]NozzleReading, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, operator_shift_id, nozzle_id, reading_type, totalizer_reading,
pump_test, price_snapshot, photo_urls, created_at
FROM nozzle_readings WHERE operator_shift_id=$1 ORDER BY nozzle_id, reading_type`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var readings []NozzleReading
	for rows.Next() {
		var nr NozzleReading
		var t string
		if err := rows.Scan(&nr.ID, &nr.OperatorShiftID, &nr.NozzleID, &t, &nr.Totalizer,
			&nr.PumpTest, &nr.PriceSnapshot, &nr.PhotoURLs, &nr.CreatedAt); err != nil {
			return nil, err
		}
		nr.Type = ReadingType(t)
		readings = append(readings, nr)
	}
	return readings, rows.Err()
}

type txRepository struct {
	tx     pgx.Tx
	poster *ledger.Poster
}

func (r *txRepository) LockStation(ctx context.Context, gasStationID uuid.UUID) error {
	return platformdb.AdvisoryLock(ctx, r.tx, shared.StationLockKey(gasStationID))
}

func (r *txRepository) InsertShift(ctx context.Context, s OperatorShift) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO operator_shifts
(id, station_id, gas_station_id, operator_id, date, slot, status, is_verified, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,false,$8,$8)`,
		s.ID, s.StationID, s.GasStationID, s.OperatorID, s.Date, string(s.Slot), string(s.Status), s.CreatedAt)
	return err
}

func (r *txRepository) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (OperatorShift, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+shiftColumns+` FROM operator_shifts WHERE id=$1 FOR UPDATE`, id)
	return scanShift(row)
}

func (r *txRepository) SetShiftStatus(ctx context.Context, id uuid.UUID, status ShiftStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE operator_shifts SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE operator_shifts SET is_verified=$2, updated_at=NOW() WHERE id=$1`, id, verified)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) ListSequenced(ctx context.Context, gasStationID uuid.UUID) ([]SequencedShift, error) {
	rows, err := r.tx.Query(ctx, `SELECT s.id, s.date, s.slot, s.status, s.is_verified, d.status
FROM operator_shifts s
LEFT JOIN deposits d ON d.operator_shift_id = s.id
WHERE s.gas_station_id=$1 AND s.status <> $2
ORDER BY s.date, CASE s.slot WHEN 'MORNING' THEN 1 WHEN 'AFTERNOON' THEN 2 ELSE 3 END`,
		gasStationID, string(ShiftCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []SequencedShift
	for rows.Next() {
		var s SequencedShift
		var slot, status string
		var depositStatus *string
		if err := rows.Scan(&s.ID, &s.Date, &slot, &status, &s.IsVerified, &depositStatus); err != nil {
			return nil, err
		}
		s.Slot = Slot(slot)
		s.Status = ShiftStatus(status)
		if depositStatus != nil {
			ds := DepositStatus(*depositStatus)
			s.DepositStatus = &ds
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (r *txRepository) InsertNozzleReading(ctx context.Context, nr NozzleReading) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO nozzle_readings
(operator_shift_id, nozzle_id, reading_type, totalizer_reading, pump_test, price_snapshot, photo_urls, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		nr.OperatorShiftID, nr.NozzleID, string(nr.Type), nr.Totalizer, nr.PumpTest, nr.PriceSnapshot, nr.PhotoURLs, nr.CreatedAt)
	return err
}

func (r *txRepository) GetNozzleReading(ctx context.Context, shiftID, nozzleID uuid.UUID, t ReadingType) (NozzleReading, error) {
	var nr NozzleReading
	var rt string
	err := r.tx.QueryRow(ctx, `SELECT id, operator_shift_id, nozzle_id, reading_type, totalizer_reading,
pump_test, price_snapshot, photo_urls, created_at
FROM nozzle_readings WHERE operator_shift_id=$1 AND nozzle_id=$2 AND reading_type=$3`,
		shiftID, nozzleID, string(t)).Scan(&nr.ID, &nr.OperatorShiftID, &nr.NozzleID, &rt, &nr.Totalizer,
		&nr.PumpTest, &nr.PriceSnapshot, &nr.PhotoURLs, &nr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NozzleReading{}, ErrNotFound
		}
		return NozzleReading{}, err
	}
	nr.Type = ReadingType(rt)
	return nr, nil
}

func (r *txRepository) LastCloseTotalizer(ctx context.Context, nozzleID uuid.UUID) (int64, error) {
	var totalizer int64
	err := r.tx.QueryRow(ctx, `SELECT totalizer_reading FROM nozzle_readings
WHERE nozzle_id=$1 AND reading_type='CLOSE'
ORDER BY created_at DESC, id DESC LIMIT 1`, nozzleID).Scan(&totalizer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return totalizer, nil
}

func (r *txRepository) SalesForShift(ctx context.Context, shiftID uuid.UUID) ([]SaleLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT n.product_id, p.name,
SUM(c.totalizer_reading - o.totalizer_reading - c.pump_test),
SUM(c.pump_test),
MAX(o.price_snapshot)
FROM nozzle_readings c
JOIN nozzle_readings o ON o.operator_shift_id = c.operator_shift_id
	AND o.nozzle_id = c.nozzle_id AND o.reading_type = 'OPEN'
JOIN nozzles n ON n.id = c.nozzle_id
JOIN products p ON p.id = n.product_id
WHERE c.operator_shift_id=$1 AND c.reading_type='CLOSE'
GROUP BY n.product_id, p.name`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []SaleLine
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Liters, &l.PumpTest, &l.PriceSnapshot); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) InsertDeposit(ctx context.Context, d Deposit) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO deposits
(id, operator_shift_id, total_amount, operator_declared_amount, admin_received_amount, status, titipan, free_fuel, photo_urls, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		d.ID, d.OperatorShiftID, d.TotalAmount, d.OperatorDeclaredAmount, d.AdminReceivedAmount,
		string(d.Status), d.Titipan, d.FreeFuel, d.PhotoURLs, d.CreatedAt)
	return err
}

func (r *txRepository) GetDepositForUpdate(ctx context.Context, shiftID uuid.UUID) (Deposit, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE operator_shift_id=$1 FOR UPDATE`, shiftID)
	return scanDeposit(row)
}

func (r *txRepository) SetDepositStatus(ctx context.Context, id uuid.UUID, status DepositStatus, adminReceived *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE deposits SET status=$2, admin_received_amount=COALESCE($3, admin_received_amount), updated_at=NOW()
WHERE id=$1`, id, string(status), adminReceived)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteNonApprovedDeposit(ctx context.Context, shiftID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM deposits WHERE operator_shift_id=$1 AND status <> $2`,
		shiftID, string(DepositApproved))
	return err
}

func (r *txRepository) DeleteShiftCascade(ctx context.Context, shiftID uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM deposits WHERE operator_shift_id=$1`, shiftID); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM nozzle_readings WHERE operator_shift_id=$1`, shiftID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM operator_shifts WHERE id=$1`, shiftID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	return r.poster.Post(ctx, r.tx, in)
}

func scanShift(row pgx.Row) (OperatorShift, error) {
	var s OperatorShift
	var slot, status string
	err := row.Scan(&s.ID, &s.StationID, &s.GasStationID, &s.OperatorID, &s.Date, &slot, &status,
		&s.IsVerified, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OperatorShift{}, ErrNotFound
		}
		return OperatorShift{}, err
	}
	s.Slot = Slot(slot)
	s.Status = ShiftStatus(status)
	return s, nil
}

func scanDeposit(row pgx.Row) (Deposit, error) {
	var d Deposit
	var status string
	err := row.Scan(&d.ID, &d.OperatorShiftID, &d.TotalAmount, &d.OperatorDeclaredAmount, &d.AdminReceivedAmount,
		&status, &d.Titipan, &d.FreeFuel, &d.PhotoURLs, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deposit{}, ErrNotFound
		}
		return Deposit{}, err
	}
	d.Status = DepositStatus(status)
	return d, nil
}
