package router

import (
	"github.com/erp/dispensing/internal/infrastructure/logger"
	"github.com/erp/dispensing/internal/interfaces/http/handler"
	"github.com/erp/dispensing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DispensingRoutes builds the /dispensing route group
func DispensingRoutes(h *handler.DispensingHandler) *DomainGroup {
	g := NewDomainGroup("dispensing", "/dispensing")

	g.POST("/orders/:orderId/select", h.SelectOrder)
	g.GET("/session", h.GetSession)
	g.DELETE("/session", h.CloseSession)

	g.PUT("/lots/:key", h.SetLots)
	g.DELETE("/lots/:key/:lotId", h.RemoveLot)
	g.GET("/lots/:key/suggestion", h.SuggestLots)
	g.GET("/lots/:key/available", h.AvailableLots)

	g.POST("/tree/:materialId/toggle", h.ToggleNode)

	g.POST("/review", h.BeginReview)
	g.POST("/submit", h.Submit)
	g.POST("/document", h.GenerateDocument)
	g.POST("/refresh-historical", h.RefreshHistorical)
	return g
}

// EngineConfig wires the HTTP engine
type EngineConfig struct {
	Logger         *zap.Logger
	Validator      middleware.TokenValidator
	Tracing        middleware.TracingConfig
	AllowOrigins   []string
	MaxBodySize    int64
	TrustedProxies []string
	Dispensing     *handler.DispensingHandler
	System         *handler.SystemHandler
}

// NewEngine assembles the gin engine: global middleware, /health and the
// authenticated /api/v1/dispensing routes.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(cfg.Logger),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.DefaultCORSConfig(cfg.AllowOrigins)),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
	}

	r := NewRouter(engine, WithAPIMiddleware(
		middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			Validator: cfg.Validator,
			Logger:    cfg.Logger,
		}),
		middleware.TracingAttributeInjector(),
	))
	if cfg.Dispensing != nil {
		r.Register(DispensingRoutes(cfg.Dispensing))
	}
	r.Setup()
	return engine, nil
}
