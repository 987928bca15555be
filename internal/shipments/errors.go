package shipments

import (
	"errors"
	"net/http"
)

// Domain errors for shipment operations.
var (
	ErrNotFound   = errors.New("shipment not found")
	ErrDuplicate  = errors.New("shipment reference already exists")
	ErrValidation = errors.New("invalid shipment")
)

// MapHTTPStatus maps shipment domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
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
