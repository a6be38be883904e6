package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/labstack/echo/v4"
)

// errorResponse converts a service error into an echo.HTTPError. Internal
// details never reach the client.
func errorResponse(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, common.ErrorValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized").SetInternal(err)
	case errors.Is(err, common.ErrorForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden").SetInternal(err)
	case errors.Is(err, common.ErrorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found").SetInternal(err)
	case errors.Is(err, common.ErrorAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "already exists").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
