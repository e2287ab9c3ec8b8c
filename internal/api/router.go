package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/tarwick/vget/internal/api/controllers"
	"github.com/tarwick/vget/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	jobCtrl := &controllers.JobsController{App: app}

	// Job queue endpoints
	e.POST("/api/jobs", jobCtrl.HandleCreate)
	e.GET("/api/jobs", jobCtrl.HandleList)
	e.GET("/api/jobs/:id", jobCtrl.HandleGet)
	e.DELETE("/api/jobs/:id", jobCtrl.HandleCancel)

	// Size probe without downloading
	e.GET("/api/size", jobCtrl.HandleSize)
}
