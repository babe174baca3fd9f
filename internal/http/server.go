// README: API server; registers routes, middleware, and binding validators.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifeline/internal/auth"
	"lifeline/internal/http/handlers"
	"lifeline/internal/http/middleware"
	"lifeline/internal/modules/dispatch"
	"lifeline/internal/modules/driver"
)

type ServerDeps struct {
	Dispatch *dispatch.Service
	Drivers  *driver.Service
	Verifier *auth.Verifier
	Log      *slog.Logger
}

type Server struct {
	dispatch *dispatch.Service
	drivers  *driver.Service
	verifier *auth.Verifier
	log      *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	registerValidators()
	return &Server{
		dispatch: deps.Dispatch,
		drivers:  deps.Drivers,
		verifier: deps.Verifier,
		log:      deps.Log,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) { c.String(200, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(s.verifier))

	dispatchHandler := handlers.NewDispatchHandler(s.dispatch, writeServiceError)
	api.POST("/requests", dispatchHandler.Create)
	api.GET("/requests", dispatchHandler.ListMine)
	api.GET("/requests/:id", dispatchHandler.Get)
	api.POST("/requests/:id/cancel", dispatchHandler.Cancel)

	// Role checks live in the services; the /admin prefix only groups routes.
	admin := api.Group("/admin")
	admin.GET("/requests", dispatchHandler.ListAll)
	admin.POST("/requests/:id/assign", dispatchHandler.Assign)
	admin.POST("/requests/:id/complete", dispatchHandler.Complete)
	admin.GET("/requests/:id/history", dispatchHandler.History)

	driverHandler := handlers.NewDriverHandler(s.drivers, writeServiceError)
	admin.GET("/drivers", driverHandler.List)
	admin.POST("/drivers", driverHandler.Create)
	admin.PATCH("/drivers/:id", driverHandler.Update)
	admin.DELETE("/drivers/:id", driverHandler.Delete)
	admin.POST("/drivers/:id/status", driverHandler.SetStatus)

	return r
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("driverstatus", func(fl validator.FieldLevel) bool {
			return driver.ValidStatus(driver.Status(fl.Field().String()))
		})
	}
}
