// README: HTTP helper utilities for JSON responses and error mapping.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifeline/internal/auth"
	"lifeline/internal/modules/dispatch"
	"lifeline/internal/modules/driver"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses. Conflicts
// (lost CAS races, duplicates, illegal transitions) are all 409 so a polling
// UI knows to refresh rather than retry blindly.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, dispatch.ErrNotFound),
		errors.Is(err, dispatch.ErrDriverNotFound),
		errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrInvalidState),
		errors.Is(err, dispatch.ErrDriverUnavailable),
		errors.Is(err, dispatch.ErrDriverMismatch),
		errors.Is(err, dispatch.ErrConflict),
		errors.Is(err, driver.ErrDuplicate),
		errors.Is(err, driver.ErrDriverBusy),
		errors.Is(err, driver.ErrDriverReferenced):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrBadRequest), errors.Is(err, driver.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
