package validation

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/documents"
	"github.com/JaimeStill/clearance/internal/shipments"
)

var (
	ErrNoReport       = errors.New("no compliance report")
	ErrInvalidRequest = errors.New("invalid request")
)

// MapHTTPStatus maps validation and collaborator errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoReport),
		errors.Is(err, shipments.ErrNotFound),
		errors.Is(err, documents.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, documents.ErrNotInShipment),
		errors.Is(err, canonical.ErrUnknownType):
		return http.StatusBadRequest
	case errors.Is(err, docstate.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
