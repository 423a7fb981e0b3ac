package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/TimoBecker/LingoPulse/app/repository"
	"github.com/TimoBecker/LingoPulse/internal/pkg/cache"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
	"github.com/TimoBecker/LingoPulse/internal/pkg/env"
	"github.com/TimoBecker/LingoPulse/internal/pkg/jobqueue"
	"github.com/TimoBecker/LingoPulse/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// stop background workers before the process exits
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// background workers: subscription expiry sweep + webhook log retention
	jobqueue.GetManager().Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // 1 MiB, webhook and sync payloads are small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
