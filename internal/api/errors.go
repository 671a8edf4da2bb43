package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg   string
	param string
}

func (e invalidRequestError) Error() string { return e.msg }
func (e invalidRequestError) Unwrap() error { return ErrInvalidRequest }

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{msg: msg, param: param}
}

func writeError(c *echo.Context, status int, errType, msg, param string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Message: msg, Type: errType, Param: param},
	})
}

func writeBadRequest(c *echo.Context, err error) error {
	var ir invalidRequestError
	if errors.As(err, &ir) {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", ir.msg, ir.param)
	}
	return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "")
}
