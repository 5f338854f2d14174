package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
)

// writeError maps a typed service error onto an HTTP response. Remote
// failures surface as 502 with a retryable hint so clients know whether
// re-submitting the same logical request can help.
func writeError(c echo.Context, err error) error {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case apperr.InvalidInput:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input", "message": err.Error()})
	case apperr.Conflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": err.Error()})
	case apperr.RemoteRetryable:
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "remote_failure", "retryable": true, "message": err.Error()})
	case apperr.RemoteFatal:
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "remote_failure", "retryable": false, "message": err.Error()})
	case apperr.Inconsistency:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "inconsistency", "message": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
}
