package documents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/pkg/storage"
)

// Domain errors for document operations.
var (
	ErrNotFound         = errors.New("document not found")
	ErrDuplicate        = errors.New("document already exists")
	ErrFileTooLarge     = errors.New("file exceeds maximum upload size")
	ErrInvalidFile      = errors.New("invalid file")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrNotInShipment    = errors.New("document does not belong to shipment")
)

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrShipmentNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, docstate.ErrInvalidTransition) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrInvalidFile) ||
		errors.Is(err, ErrNotInShipment) ||
		errors.Is(err, canonical.ErrUnknownType) ||
		errors.Is(err, docstate.ErrUnknownEvent) ||
		errors.Is(err, docstate.ErrSystemEvent) {
		return http.StatusBadRequest
	}
	return storage.MapHTTPStatus(err)
}
