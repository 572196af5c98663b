package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// StationLockKey serializes shift sequencing checks per gas station.
func StationLockKey(gasStationID uuid.UUID) string {
	return fmt.Sprintf("station:%s:sequence", gasStationID)
}

// TankDateLockKey serializes reading creation per tank and operational date.
func TankDateLockKey(tankID uuid.UUID, opDate string) string {
	return fmt.Sprintf("tank:%s:%s:reading", tankID, opDate)
}

// ProductLOLockKey serializes FIFO unload attribution per station and product.
func ProductLOLockKey(gasStationID, productID uuid.UUID) string {
	return fmt.Sprintf("lo:%s:%s", gasStationID, productID)
}
