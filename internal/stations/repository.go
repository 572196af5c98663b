package stations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	platformdb "github.com/PettaPuang/nozzle.website-sub003/internal/platform/db"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// Repository persists station master data.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStation(ctx context.Context, id uuid.UUID) (GasStation, error)
	ListStations(ctx context.Context) ([]GasStation, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, gasStationID uuid.UUID) ([]Product, error)
	GetTank(ctx context.Context, id uuid.UUID) (Tank, error)
	ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]Tank, error)
	GetNozzle(ctx context.Context, id uuid.UUID) (Nozzle, error)
	GetPumpStation(ctx context.Context, id uuid.UUID) (PumpStation, error)
	CreateStation(ctx context.Context, s GasStation) error
	CreateProduct(ctx context.Context, p Product) error
	CreatePumpStation(ctx context.Context, p PumpStation) error
	CreateNozzle(ctx context.Context, n Nozzle) error
	DeleteTank(ctx context.Context, id uuid.UUID) error
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertTank(ctx context.Context, t Tank) error
	GetTankForUpdate(ctx context.Context, id uuid.UUID) (Tank, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)
	SetInitialStock(ctx context.Context, tankID uuid.UUID, liters int64) error
	SetPurchasePrice(ctx context.Context, productID uuid.UUID, price int64) error
	TankHasActivity(ctx context.Context, tankID uuid.UUID) (bool, error)
	EnsureAccounts(ctx context.Context, gasStationID uuid.UUID, refs []ledger.AccountRef) error
	PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error)
	LockProductLO(ctx context.Context, gasStationID, productID uuid.UUID) error
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

func (r *repository) GetStation(ctx context.Context, id uuid.UUID) (GasStation, error) {
	var s GasStation
	err := r.pool.QueryRow(ctx, `SELECT id, name, address, open_minute, close_minute, created_at
FROM gas_stations WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Address, &s.OpenMinute, &s.CloseMinute, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GasStation{}, ErrNotFound
	}
	return s, err
}

func (r *repository) ListStations(ctx context.Context) ([]GasStation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, address, open_minute, close_minute, created_at
FROM gas_stations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GasStation
	for rows.Next() {
		var s GasStation
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.OpenMinute, &s.CloseMinute, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, gas_station_id, name, purchase_price, sale_price, created_at
FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.GasStationID, &p.Name, &p.PurchasePrice, &p.SalePrice, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) ListProducts(ctx context.Context, gasStationID uuid.UUID) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, gas_station_id, name, purchase_price, sale_price, created_at
FROM products WHERE gas_station_id=$1 ORDER BY name ASC`, gasStationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.GasStationID, &p.Name, &p.PurchasePrice, &p.SalePrice, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) GetTank(ctx context.Context, id uuid.UUID) (Tank, error) {
	return scanTank(r.pool.QueryRow(ctx, `SELECT id, gas_station_id, product_id, name, capacity, initial_stock, created_at
FROM tanks WHERE id=$1`, id))
}

func (r *repository) ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]Tank, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, gas_station_id, product_id, name, capacity, initial_stock, created_at
FROM tanks WHERE gas_station_id=$1 ORDER BY name ASC`, gasStationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tank
	for rows.Next() {
		var t Tank
		if err := rows.Scan(&t.ID, &t.GasStationID, &t.ProductID, &t.Name, &t.Capacity, &t.InitialStock, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) GetNozzle(ctx context.Context, id uuid.UUID) (Nozzle, error) {
	var n Nozzle
	err := r.pool.QueryRow(ctx, `SELECT id, pump_station_id, tank_id, product_id, name FROM nozzles WHERE id=$1`, id).
		Scan(&n.ID, &n.PumpStationID, &n.TankID, &n.ProductID, &n.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Nozzle{}, ErrNotFound
	}
	return n, err
}

func (r *repository) GetPumpStation(ctx context.Context, id uuid.UUID) (PumpStation, error) {
	var p PumpStation
	err := r.pool.QueryRow(ctx, `SELECT id, gas_station_id, name FROM pump_stations WHERE id=$1`, id).
		Scan(&p.ID, &p.GasStationID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return PumpStation{}, ErrNotFound
	}
	return p, err
}

func (r *repository) CreateStation(ctx context.Context, s GasStation) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO gas_stations (id, name, address, open_minute, close_minute, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())`, s.ID, s.Name, s.Address, s.OpenMinute, s.CloseMinute)
	return err
}

func (r *repository) CreateProduct(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, gas_station_id, name, purchase_price, sale_price, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())`, p.ID, p.GasStationID, p.Name, p.PurchasePrice, p.SalePrice)
	return err
}

func (r *repository) CreatePumpStation(ctx context.Context, p PumpStation) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO pump_stations (id, gas_station_id, name) VALUES ($1,$2,$3)`,
		p.ID, p.GasStationID, p.Name)
	return err
}

func (r *repository) CreateNozzle(ctx context.Context, n Nozzle) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO nozzles (id, pump_station_id, tank_id, product_id, name) VALUES ($1,$2,$3,$4,$5)`,
		n.ID, n.PumpStationID, n.TankID, n.ProductID, n.Name)
	return err
}

// DeleteTank removes a tank; the FK constraints block deletion while
// readings or unloads reference it.
func (r *repository) DeleteTank(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tanks WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return shared.ErrRelatedDataExists
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type txRepository struct {
	tx     pgx.Tx
	poster *ledger.Poster
}

func (r *txRepository) InsertTank(ctx context.Context, t Tank) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO tanks (id, gas_station_id, product_id, name, capacity, initial_stock, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())`, t.ID, t.GasStationID, t.ProductID, t.Name, t.Capacity, t.InitialStock)
	return err
}

func (r *txRepository) GetTankForUpdate(ctx context.Context, id uuid.UUID) (Tank, error) {
	return scanTank(r.tx.QueryRow(ctx, `SELECT id, gas_station_id, product_id, name, capacity, initial_stock, created_at
FROM tanks WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, gas_station_id, name, purchase_price, sale_price, created_at
FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.GasStationID, &p.Name, &p.PurchasePrice, &p.SalePrice, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *txRepository) SetInitialStock(ctx context.Context, tankID uuid.UUID, liters int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE tanks SET initial_stock=$2 WHERE id=$1`, tankID, liters)
	return err
}

func (r *txRepository) SetPurchasePrice(ctx context.Context, productID uuid.UUID, price int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET purchase_price=$2 WHERE id=$1`, productID, price)
	return err
}

// TankHasActivity reports whether any unload or nozzle reading was ever
// posted through the tank.
func (r *txRepository) TankHasActivity(ctx context.Context, tankID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM unloads WHERE tank_id=$1
UNION ALL
SELECT 1 FROM tank_readings WHERE tank_id=$1
UNION ALL
SELECT 1 FROM nozzle_readings nr
JOIN nozzles n ON n.id = nr.nozzle_id AND n.tank_id = $1
LIMIT 1)`, tankID).Scan(&exists)
	return exists, err
}

func (r *txRepository) EnsureAccounts(ctx context.Context, gasStationID uuid.UUID, refs []ledger.AccountRef) error {
	for _, ref := range refs {
		if _, err := r.poster.FindOrCreateCOA(ctx, r.tx, gasStationID, ref); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	return r.poster.Post(ctx, r.tx, in)
}

func (r *txRepository) LockProductLO(ctx context.Context, gasStationID, productID uuid.UUID) error {
	return platformdb.AdvisoryLock(ctx, r.tx, shared.ProductLOLockKey(gasStationID, productID))
}

func scanTank(row pgx.Row) (Tank, error) {
	var t Tank
	err := row.Scan(&t.ID, &t.GasStationID, &t.ProductID, &t.Name, &t.Capacity, &t.InitialStock, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tank{}, ErrNotFound
	}
	return t, err
}
