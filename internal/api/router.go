package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/whisperchain/whisper-api/docs"
	"github.com/whisperchain/whisper-api/internal/api/handler"
	"github.com/whisperchain/whisper-api/internal/api/middleware"
	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
	"github.com/whisperchain/whisper-api/internal/infrastructure/http/handlers"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Log       zerolog.Logger
	JWTSecret string
	// Now defaults to time.Now.
	Now func() time.Time
	// Registry defaults to the global Prometheus registry.
	Registry *prometheus.Registry

	Auth       ports.AuthService
	Users      ports.UserService
	Issuer     ports.TokenIssuer
	Gate       ports.SendGate
	Messages   ports.MessageService
	Moderation ports.ModerationService
	Audit      ports.AuditService

	// Readiness lists the dependencies pinged by /health/ready.
	Readiness []handlers.Pinger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:                 "whisper",
		Registerer:                registerer,
		DoNotUseRequestPathFor404: true,
	}))

	// --- Ops (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Readiness...)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	userHandler := handler.NewUserHandler(d.Users)
	tokenHandler := handler.NewTokenHandler(d.Issuer, d.Now)
	messageHandler := handler.NewMessageHandler(d.Gate, d.Messages, d.Now)
	moderationHandler := handler.NewModerationHandler(d.Moderation, d.Messages, d.Now)
	auditHandler := handler.NewAuditHandler(d.Audit)

	auth := middleware.Auth(d.JWTSecret)
	approved := middleware.RequireApproved(d.Users)
	role := func(roles ...string) []echo.MiddlewareFunc {
		return []echo.MiddlewareFunc{auth, middleware.RBAC(roles...), approved}
	}

	// --- Accounts ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.GET("/users/status/:username", userHandler.Status)
	e.GET("/users/receivers", userHandler.ListReceivers, auth, approved)

	// --- Senders ---
	e.GET("/tokens/current", tokenHandler.Current, role(domain.RoleSender)...)
	// SendGate checks approval itself.
	e.POST("/messages", messageHandler.Send, auth, middleware.RBAC(domain.RoleSender))

	// --- Receivers ---
	// no group here: POST /messages shares the prefix
	e.GET("/messages/inbox", messageHandler.Inbox, role(domain.RoleReceiver)...)
	e.POST("/messages/:id/read", messageHandler.MarkRead, role(domain.RoleReceiver)...)
	e.POST("/messages/:id/flag", messageHandler.Flag, role(domain.RoleReceiver)...)

	// --- Moderators ---
	mod := e.Group("/moderation", role(domain.RoleModerator, domain.RoleAdmin)...)
	mod.GET("/flagged", moderationHandler.ListFlagged)
	mod.GET("/tokens/:token", moderationHandler.TokenStatus)
	mod.POST("/tokens/:token/warn", moderationHandler.Warn)
	mod.POST("/tokens/:token/freeze", moderationHandler.Freeze)
	mod.POST("/tokens/:token/unfreeze", moderationHandler.Unfreeze)
	mod.POST("/tokens/:token/ban", moderationHandler.Ban)
	mod.POST("/messages/:id/resolve", moderationHandler.Resolve)
	mod.GET("/audit", auditHandler.ModeratorLog)

	// --- Admin ---
	admin := e.Group("/admin", role(domain.RoleAdmin)...)
	admin.GET("/users/pending", userHandler.ListPending)
	admin.POST("/users/:id/approve", userHandler.Approve)
	admin.POST("/users/:id/reject", userHandler.Reject)
	admin.GET("/audit", auditHandler.AdminReport)

	return e
}

// requestLogger emits one structured line per request. Bodies are never
// logged: they carry ciphertext and passwords.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
