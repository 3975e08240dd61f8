// Package api exposes the task engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/audit"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
)

// APIModule is the driving adapter that exposes REST endpoints.
// It calls into the core domain (task module) via the TaskPort interface.
type APIModule struct {
	cfg         config.HTTPConfig
	logger      types.Logger
	verifier    *TokenVerifier
	now         func() time.Time
	app          *fiber.App
	taskAdapter  task.TaskPort
	auditAdapter audit.AuditPort

	limiterRedis   config.CacheConfig
	limiterStorage fiber.Storage
}

// Option configures an APIModule.
type Option func(*APIModule)

// WithRedisLimiter keeps rate-limit counters in the given Redis so every
// instance shares them. An empty RedisAddr keeps counters in memory.
func WithRedisLimiter(cfg config.CacheConfig) Option {
	return func(m *APIModule) { m.limiterRedis = cfg }
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg config.HTTPConfig, auth config.AuthConfig, logger types.Logger, opts ...Option) *APIModule {
	m := &APIModule{
		cfg:      cfg,
		logger:   logger.WithModule("api"),
		verifier: NewTokenVerifier(auth.JWTSecret, auth.Issuer),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"task", "audit"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "task":
		m.taskAdapter = task.NewTaskAdapter(container)
	case "audit":
		m.auditAdapter = audit.NewAuditAdapter(container)
	}
}

// Start initializes the Fiber HTTP server.
// Returns an error if required dependencies are not set.
func (m *APIModule) Start(_ context.Context) error {
	if m.taskAdapter == nil {
		return fmt.Errorf("taskAdapter dependency not set")
	}
	if m.auditAdapter == nil {
		return fmt.Errorf("auditAdapter dependency not set")
	}

	if m.cfg.RateLimit > 0 {
		m.limiterStorage = m.openLimiterStorage()
	}
	m.app = m.newApp(true)

	// Server availability is verified via Health() method.
	go func() {
		if err := m.app.Listen(m.cfg.Addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.cfg.Addr)
	return nil
}

// newApp builds the Fiber application. accessLog adds request logging.
func (m *APIModule) newApp(accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	if accessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New())
	if m.cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        m.cfg.RateLimit,
			Expiration: m.cfg.RateWindow,
			Storage:    m.limiterStorage,
			KeyGenerator: func(c *fiber.Ctx) string {
				return m.limiterRedis.Prefix + "ratelimit:" + c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).
					JSON(failure("Too many requests from this IP, please try again later."))
			},
		}))
	}

	m.setupRoutes(app)
	return app
}

// openLimiterStorage connects the Redis limiter storage, or returns nil for
// Fiber's in-memory storage when Redis is not configured or not reachable.
func (m *APIModule) openLimiterStorage() fiber.Storage {
	addr := m.limiterRedis.RedisAddr
	if addr == "" {
		return nil
	}

	// redis.New panics when it cannot connect, so dial first.
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		m.logger.Warn("rate limiter falling back to memory", "redis_addr", addr, "error", err)
		return nil
	}
	conn.Close()

	host, port := parseRedisAddr(addr)
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: m.limiterRedis.Password,
		Database: m.limiterRedis.DB,
		PoolSize: 10,
	})
	m.logger.Info("rate limiter using redis", "redis_addr", addr)
	return storage
}

// Stop shuts down the Fiber HTTP server and the limiter storage.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("shutting down HTTP server")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	if m.limiterStorage != nil {
		if err := m.limiterStorage.Close(); err != nil {
			return fmt.Errorf("failed to close limiter storage: %w", err)
		}
	}
	return nil
}

// parseRedisAddr splits host:port, defaulting to 127.0.0.1:6379 parts.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.cfg.Addr,
		},
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(failure(message))
}
