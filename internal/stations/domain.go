package stations

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// GasStation is a fuel station with its configured operating hours.
// Open/close are minutes from midnight; the operational day is bounded by
// them, not by the wall-clock calendar day.
type GasStation struct {
	ID          uuid.UUID
	Name        string
	Address     string
	OpenMinute  int
	CloseMinute int
	CreatedAt   time.Time
}

// Window returns the [start, end) bounds of the operational day that the
// given calendar date names. A close at or before the open minute wraps the
// day past midnight.
func (s GasStation) Window(date time.Time) (time.Time, time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	start := day.Add(time.Duration(s.OpenMinute) * time.Minute)
	end := day.Add(time.Duration(s.CloseMinute) * time.Minute)
	if s.CloseMinute <= s.OpenMinute {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// OperationalDate maps a wall-clock instant to the operational day it
// belongs to. An instant before the station's open minute still belongs to
// the previous operational day.
func (s GasStation) OperationalDate(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	minuteOfDay := t.Hour()*60 + t.Minute()
	if minuteOfDay < s.OpenMinute {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// Product is a fuel product sold by one station. Prices are integer minor
// currency units per liter.
type Product struct {
	ID            uuid.UUID
	GasStationID  uuid.UUID
	Name          string
	PurchasePrice int64
	SalePrice     int64
	CreatedAt     time.Time
}

// PumpStation is a pump island within a gas station.
type PumpStation struct {
	ID           uuid.UUID
	GasStationID uuid.UUID
	Name         string
}

// Nozzle dispenses one product at one pump station. TankID names the tank
// the nozzle physically draws from; its product must match ProductID.
type Nozzle struct {
	ID            uuid.UUID
	PumpStationID uuid.UUID
	TankID        uuid.UUID
	ProductID     uuid.UUID
	Name          string
}

// Tank stores one product. Capacity and initial stock are whole liters.
// InitialStock is mutable only while the tank has zero recorded activity;
// any change is journaled as an equity adjustment.
type Tank struct {
	ID           uuid.UUID
	GasStationID uuid.UUID
	ProductID    uuid.UUID
	Name         string
	Capacity     int64
	InitialStock int64
	CreatedAt    time.Time
}

var (
	// ErrNotFound indicates a missing master data row.
	ErrNotFound = errors.New("stations: not found")
	// ErrTankHasActivity blocks initial stock changes once movements exist.
	ErrTankHasActivity = errors.New("stations: tank already has recorded activity")
	// ErrInvalidHours indicates open/close minutes outside a day.
	ErrInvalidHours = errors.New("stations: operating hours out of range")
	// ErrCrossStation blocks wiring a nozzle to a tank at another station.
	ErrCrossStation = errors.New("stations: tank belongs to another station")
)
