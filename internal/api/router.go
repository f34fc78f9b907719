package api

import (
	"fmt"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/diagnosphere/skincheck-api/docs"
	"github.com/diagnosphere/skincheck-api/internal/api/handler"
	"github.com/diagnosphere/skincheck-api/internal/api/middleware"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

// multipartOverhead is added to the upload cap for form boundaries and headers.
const multipartOverhead = 64 << 10

// Deps carries everything the router wires into handlers.
type Deps struct {
	AuthService      ports.AuthService
	DiagnosisService ports.DiagnosisService
	Revoker          ports.TokenRevoker

	JWTSecret      string
	MaxUploadBytes int64

	// StoreCheck feeds /health; ReadyChecks feed /health/ready.
	StoreCheck  handler.Check
	ReadyChecks map[string]handler.Check

	// Registry receives HTTP metrics. Nil uses the default Prometheus registry.
	Registry *prometheus.Registry

	Logger zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit(d.MaxUploadBytes)))
	e.Use(prometheusMiddleware(d.Registry))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.AuthService)
	diagnosisHandler := handler.NewDiagnosisHandler(d.DiagnosisService)
	imageHandler := handler.NewImageHandler(d.DiagnosisService)
	healthHandler := handler.NewHealthHandler(d.StoreCheck, d.ReadyChecks)
	authMiddleware := middleware.Auth(d.JWTSecret, d.Revoker, d.Logger)

	// Routes are served at the root and under /api for the browser client.
	for _, g := range []*echo.Group{e.Group(""), e.Group("/api")} {
		// --- Auth routes ---
		g.POST("/auth/register", authHandler.Register)
		g.POST("/auth/login", authHandler.Login)
		g.GET("/auth/user", authHandler.CurrentUser, authMiddleware)
		g.POST("/auth/logout", authHandler.Logout)

		// --- Diagnosis routes (bearer required) ---
		diag := g.Group("/diagnosis", authMiddleware)
		diag.POST("/upload", diagnosisHandler.Upload)
		diag.GET("/history", diagnosisHandler.History)
		diag.POST("/:id/symptoms", diagnosisHandler.SubmitSymptoms)
		diag.GET("/:id/results", diagnosisHandler.Results)

		// --- Health probes (no auth required) ---
		g.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
		g.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	}

	// --- Uploaded images ---
	e.GET("/uploads/*", imageHandler.Serve)

	// --- Ops ---
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

var unmeteredPaths = map[string]struct{}{
	"/metrics":          {},
	"/health":           {},
	"/health/ready":     {},
	"/api/health":       {},
	"/api/health/ready": {},
}

func prometheusMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			_, skip := unmeteredPaths[c.Path()]
			return skip
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}

// bodyLimit renders the upload cap in echo's size notation.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return fmt.Sprintf("%dK", (maxUpload+multipartOverhead+1023)/1024)
}
