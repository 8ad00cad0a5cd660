// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/amirphl/detailing-pricing/app/handlers"
	"github.com/amirphl/detailing-pricing/app/middleware"
	"github.com/amirphl/detailing-pricing/config"
	"github.com/amirphl/detailing-pricing/docs"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	logger         *slog.Logger
	pricingHandler handlers.PricingHandlerInterface
	serviceHandler handlers.ServiceHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	logger *slog.Logger,
	pricingHandler handlers.PricingHandlerInterface,
	serviceHandler handlers.ServiceHandlerInterface,
) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &FiberRouter{
		cfg:            cfg,
		logger:         logger,
		pricingHandler: pricingHandler,
		serviceHandler: serviceHandler,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Detailing Pricing API",
		ServerHeader: "Detailing-Pricing",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("setting up routes")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.cfg.Deployment.IsDevelopment() {
		api.Get("/docs", r.getAPIDocumentation)
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		r.logger.Info("API documentation enabled for development")
	}

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	// Service catalog
	services := api.Group("/services")
	services.Post("/", r.serviceHandler.CreateService)
	services.Get("/", r.serviceHandler.ListServices)
	services.Get("/:serviceId", r.serviceHandler.GetService)

	// Dynamic pricing
	pricing := api.Group("/pricing")
	pricing.Get("/", r.pricingHandler.ListPricing)
	pricing.Post("/initialize", r.pricingHandler.InitializePricing)

	svc := pricing.Group("/service/:serviceId")
	svc.Get("/", r.pricingHandler.GetPricing)
	svc.Delete("/", r.pricingHandler.DeactivatePricing)
	svc.Get("/price", r.pricingHandler.CalculatePrice)
	svc.Get("/quote", r.pricingHandler.GetQuote)
	svc.Put("/factors", r.pricingHandler.UpdatePricingFactors)
	svc.Put("/rules", r.pricingHandler.UpdatePricingRules)
	svc.Post("/demand", r.pricingHandler.UpdateDemand)
	svc.Post("/seasonal", r.pricingHandler.UpdateSeasonal)
	svc.Post("/time-of-day", r.pricingHandler.UpdateTimeOfDay)
	svc.Get("/history", r.pricingHandler.GetPriceHistory)
	svc.Get("/history/export", r.pricingHandler.ExportPriceHistory)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// xlsx is already zip-compressed
			return strings.HasSuffix(c.Path(), "/history/export")
		},
	}))

	// Only the static documentation listing is cacheable; pricing reads have side effects
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || c.Path() != "/api/v1/docs"
		},
		Expiration:   30 * time.Minute,
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	r.app.Use(middleware.Metrics(healthPath))

	r.app.Use(r.securityMiddleware)

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: r.cfg.Deployment.IsDevelopment(),
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				"request_id", requestid.FromContext(c),
				"error", fmt.Sprint(e),
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))
}

// securityMiddleware stamps response headers and rejects blacklisted clients
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))

	if slices.Contains(r.cfg.Security.IPBlacklist, c.IP()) {
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "Access denied from this IP address",
			Error: dto.ErrorDetail{
				Code: "ACCESS_DENIED",
			},
		})
	}

	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("starting server", "address", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":      "ok",
			"timestamp":   utils.UTCNow().Unix(),
			"version":     r.cfg.Deployment.Version,
			"environment": r.cfg.Deployment.Environment,
			"service":     "detailing-pricing-api",
		},
	})
}

func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Detailing Pricing API Documentation",
			"version":     docs.SwaggerInfo.Version,
			"description": "Dynamic pricing for mobile detailing services",
			"endpoints":   GetRouteDocumentation(),
		},
	})
}

func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	htmlContent := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Detailing Pricing API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/api/v1/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

	c.Set("Content-Type", "text/html")
	return c.SendString(htmlContent)
}

// serveSwaggerJSON serves the spec registered by the docs package
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	c.Set("Content-Type", "application/json")
	return c.SendString(docs.SwaggerInfo.ReadDoc())
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler answers errors that escaped the handlers (bad routes, body limits, panics)
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("unhandled error",
			"status", code,
			"request_id", requestid.FromContext(c),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRouteDocumentation returns a compact endpoint listing for /api/v1/docs
func GetRouteDocumentation() []map[string]any {
	svc := "/api/v1/pricing/service/:serviceId"
	return []map[string]any{
		{"method": "POST", "path": "/api/v1/services", "description": "Create a detailing service"},
		{"method": "GET", "path": "/api/v1/services", "description": "List detailing services", "parameters": map[string]any{"activeOnly": "bool (optional)"}},
		{"method": "GET", "path": "/api/v1/services/:serviceId", "description": "Get a detailing service"},
		{"method": "GET", "path": "/api/v1/pricing", "description": "List active pricing records"},
		{
			"method":      "POST",
			"path":        "/api/v1/pricing/initialize",
			"description": "Initialize pricing for a service",
			"parameters": map[string]any{
				"service":                "string (required) - service UUID",
				"basePrice":              "number (required) - greater than zero",
				"vehicleTypeMultipliers": "object (optional) - vehicle type to multiplier",
				"rules":                  "object (optional) - maxPriceIncreasePct, minPriceDecreasePct, demandThresholds",
			},
		},
		{"method": "GET", "path": svc, "description": "Get the active pricing record"},
		{"method": "DELETE", "path": svc, "description": "Deactivate the pricing record"},
		{"method": "GET", "path": svc + "/price", "description": "Recalculate the current price", "parameters": map[string]any{"vehicleType": "string (optional, default sedan)", "bookingTime": "string (optional)"}},
		{"method": "GET", "path": svc + "/quote", "description": "Preview the price for a vehicle type", "parameters": map[string]any{"vehicleType": "string (optional)"}},
		{"method": "PUT", "path": svc + "/factors", "description": "Update pricing factors"},
		{"method": "PUT", "path": svc + "/rules", "description": "Update pricing rules"},
		{"method": "POST", "path": svc + "/demand", "description": "Update the demand multiplier", "parameters": map[string]any{"bookingsCount": "number (required)", "capacity": "number (required)"}},
		{"method": "POST", "path": svc + "/seasonal", "description": "Update the seasonal multiplier", "parameters": map[string]any{"referenceDate": "string (optional)"}},
		{"method": "POST", "path": svc + "/time-of-day", "description": "Update the time of day multiplier", "parameters": map[string]any{"hour": "number (optional, 0-23)"}},
		{"method": "GET", "path": svc + "/history", "description": "Get price history", "parameters": map[string]any{"startDate": "string (optional)", "endDate": "string (optional)"}},
		{"method": "GET", "path": svc + "/history/export", "description": "Download price history as xlsx"},
		{"method": "GET", "path": healthPath, "description": "Health check endpoint"},
	}
}
