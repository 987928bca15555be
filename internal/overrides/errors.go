package overrides

import (
	"errors"
	"net/http"
)

// Domain errors for override operations.
var (
	ErrNotFound         = errors.New("override not found")
	ErrDuplicate        = errors.New("override already exists")
	ErrValidation       = errors.New("invalid override")
	ErrShipmentNotFound = errors.New("shipment not found")
)

// MapHTTPStatus maps override domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrShipmentNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
