package http

import "github.com/labstack/echo/v4"

// Handler registers its routes on an Echo instance. The server accepts any
// implementation; a nil handler yields a server that only serves /metrics.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
