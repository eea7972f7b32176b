package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/app"
	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpStatusFromError maps aggregator and service failures to a response status and code.
func httpStatusFromError(err error) (int, string, string) {
	switch {
	case errors.Is(err, app.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED", err.Error()
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE", err.Error()
	case errors.Is(err, domain.ErrUnknownSortKey):
		return http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
	switch de.Kind {
	case domain.KindInvalid:
		return http.StatusBadRequest, "INVALID_ARGUMENT", de.Error()
	case domain.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND", de.Error()
	case domain.KindNetwork:
		return http.StatusServiceUnavailable, "UNAVAILABLE", de.Error()
	case domain.KindServer:
		return http.StatusBadGateway, "UPSTREAM", de.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL", de.Error()
	}
}
