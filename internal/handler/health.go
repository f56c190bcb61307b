package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers load-balancer liveness checks with a plain "ok".  It deliberately
// touches neither the database nor the broker: during an election the
// service should stay in rotation even while a dependency flaps.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
