package enums

import "fmt"

// StockReservation records whether an order currently holds inventory.
type StockReservation string

const (
	// StockReservationUnknown marks rows written before the column existed.
	StockReservationUnknown  StockReservation = ""
	StockReservationNone     StockReservation = "NONE"
	StockReservationHeld     StockReservation = "HELD"
	StockReservationReleased StockReservation = "RELEASED"
)

var validStockReservations = []StockReservation{
	StockReservationNone,
	StockReservationHeld,
	StockReservationReleased,
}

func (r StockReservation) String() string {
	return string(r)
}

func (r StockReservation) IsValid() bool {
	for _, candidate := range validStockReservations {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseStockReservation(value string) (StockReservation, error) {
	for _, candidate := range validStockReservations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock reservation %q", value)
}
