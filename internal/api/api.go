// Package api contains the shared plumbing of the registry's HTTP handlers.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Route converts a handler returning a response value into an echo handler
// serving the value as JSON.
func Route(handler func(c echo.Context) (interface{}, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		response, err := handler(c)
		if err != nil {
			return err
		}
		if response == nil {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, response)
	}
}
