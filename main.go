package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/api"
	"github.com/example/task-tracker/modules/audit"
	"github.com/example/task-tracker/modules/cache"
	"github.com/example/task-tracker/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/spf13/pflag"

	// Embedded zone database for TZ_NAME on hosts without one.
	_ "time/tzdata"
)

func main() {
	cfg, ok := loadConfig()
	if !ok {
		return
	}

	log.Println("=== Task Tracker ===")

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	cacheModule := cache.NewModule(cfg.Cache, logger)

	// Order: independent modules first, then modules with dependencies
	app.Register(cacheModule)                                    // Stats cache for the task service
	app.Register(audit.NewModule(logger, audit.DefaultCapacity)) // Event consumer (task lifecycle trail)
	app.Register(task.NewModule(cfg.Store, logger,
		task.WithLocation(loc),
		task.WithStatsCache(cacheModule),
	)) // Core domain (emits events)
	app.Register(api.NewModule(cfg.HTTP, cfg.Auth, logger, api.WithRedisLimiter(cfg.Cache))) // Driving adapter (depends on task, audit)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// loadConfig parses flags and loads the configuration. It returns false
// when the process should exit without starting.
func loadConfig() (*config.Config, bool) {
	var configPath, addr, driver string

	flagSet := pflag.NewFlagSet("task-tracker", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a .toml or .yaml config file")
	flagSet.StringVar(&addr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flagSet.StringVar(&driver, "store", "", "store driver: sqlite, postgres or memory (overrides STORE_DRIVER)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil, false
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if driver != "" {
		cfg.Store.Driver = driver
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return cfg, true
}

func printStartupInfo(cfg *config.Config) {
	cacheState := "disabled"
	if cfg.CacheEnabled() {
		cacheState = cfg.Cache.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Environment: %s", cfg.Env)
	log.Printf("Store:       %s", cfg.Store.Driver)
	log.Printf("Stats cache: %s", cacheState)
	log.Printf("Timezone:    %s", cfg.Timezone)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost%s):", cfg.HTTP.Addr)
	log.Println("  GET    /api/tasks            - List tasks (status, priority, category, search, page, limit, sortBy, sortOrder)")
	log.Println("  GET    /api/tasks/stats      - Task statistics")
	log.Println("  GET    /api/tasks/:taskId    - Get a task")
	log.Println("  POST   /api/tasks            - Create a task")
	log.Println("  PUT    /api/tasks/:taskId    - Update a task")
	log.Println("  DELETE /api/tasks/:taskId    - Delete a task")
	log.Println("  GET    /health               - Health check")
	log.Println("")
	log.Println("All /api/tasks routes require an HS256 bearer token with a user_id or sub claim.")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
