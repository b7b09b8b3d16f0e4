package server

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nadimxht/stem/internal/config"
	"github.com/nadimxht/stem/internal/core/service"
	"github.com/nadimxht/stem/internal/metrics"
	"github.com/nadimxht/stem/internal/server/handlers"
	"github.com/nadimxht/stem/internal/server/middleware"
	"golang.org/x/time/rate"
)

// SetupRouter wires the echo middleware chain, the plain routes
// (health, metrics, downloads) and the huma-described v1 API.
func SetupRouter(e *echo.Echo, cfg *config.Config, svc *service.Service, health *handlers.HealthHandler) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rateLimit(cfg))))
	e.Use(metrics.Middleware())

	health.RegisterRoutes(e)
	e.GET("/metrics", metrics.Handler())

	downloadHandler := handlers.NewDownloadHandler(svc)
	downloadHandler.RegisterRoutes(e)

	handlers.InitErrors()

	v1 := e.Group("/api/v1")
	humaCfg := huma.DefaultConfig("Stem Separation API", "1.0.0")
	humaCfg.Servers = []*huma.Server{{URL: "/api/v1"}}
	humaCfg.Info.Description = "Separate an audio track into stems (vocals, drums, bass, other)"
	humaCfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"ApiKeyAuth": {
			Type:        "apiKey",
			In:          "header",
			Name:        cfg.Auth.HeaderName,
			Description: "API key",
		},
	}

	api := humaecho.NewWithGroup(e, v1, humaCfg)

	authMw := middleware.APIKey(cfg.Auth.HeaderName, cfg.Auth.APIKey)
	identityMw := middleware.Identity()

	separateHandler := handlers.NewSeparateHandler(svc, cfg.Limits.AllowedDomains)
	huma.Register(api, huma.Operation{
		OperationID:   "separate",
		Method:        http.MethodPost,
		Path:          "/separate",
		Summary:       "Submit a separation job",
		Tags:          []string{"Jobs"},
		Security:      []map[string][]string{{"ApiKeyAuth": {}}},
		Middlewares:   huma.Middlewares{authMw, identityMw},
		DefaultStatus: http.StatusCreated,
	}, separateHandler.Separate)

	jobsHandler := handlers.NewJobsHandler(svc)
	huma.Register(api, huma.Operation{
		OperationID: "jobs-get",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job status",
		Tags:        []string{"Jobs"},
	}, jobsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-list",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Tags:        []string{"Jobs"},
		Security:    []map[string][]string{{"ApiKeyAuth": {}}},
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.List)
}

func rateLimit(cfg *config.Config) rate.Limit {
	if cfg.Limits.RatePerSecond <= 0 {
		return 5
	}
	return rate.Limit(cfg.Limits.RatePerSecond)
}
