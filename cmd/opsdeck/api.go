// Package main provides the Opsdeck console API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/eventbus"
	"github.com/opsdeck/opsdeck/pkg/persistence"
	"github.com/opsdeck/opsdeck/pkg/queue"
	"github.com/opsdeck/opsdeck/pkg/registry"
	"github.com/opsdeck/opsdeck/pkg/resolver"
	"github.com/opsdeck/opsdeck/pkg/schedule"
	"github.com/opsdeck/opsdeck/pkg/services"
	"github.com/opsdeck/opsdeck/pkg/synthesizer"
	"github.com/opsdeck/opsdeck/pkg/web"
)

// Config carries the console-level settings not covered by persistence or
// the event bus.
type Config struct {
	OpenAIAPIKey string
	OpenAIModel  string
	Locale       string
	Latency      time.Duration
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	config      Config
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	config Config,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		config:      config,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) (*fiber.App, error) {
	reg := registry.NewRegistry(a.logger, a.persistence.ActionRepository())
	if err := reg.Load(ctx); err != nil {
		return nil, err
	}

	var remote resolver.RemoteClient
	if a.config.OpenAIAPIKey != "" {
		remote = resolver.NewOpenAIClient(a.config.OpenAIAPIKey, a.config.OpenAIModel)
	}

	res := resolver.New(a.logger, remote)
	if res.Offline() {
		a.logger.WarnContext(ctx, "No OpenAI API key configured, intent resolution runs on the local fallback only")
	}

	synth := synthesizer.NewMock()
	sink := audit.NewSink(a.logger, a.persistence.RecordRepository(), a.eventBus)

	consoleService := services.NewConsole(
		a.logger, a.persistence, reg, res, synth, sink, a.eventBus,
		a.config.Locale, queue.WithLatency(a.config.Latency),
	)
	catalogService := services.NewCatalog(a.logger, reg, a.eventBus)

	// Scheduled runs drain through their own queue with no chat transcript.
	backgroundQueue := queue.New(a.logger, reg, synth, sink, nil,
		queue.WithLatency(a.config.Latency), queue.WithPublisher(a.eventBus))
	scheduler := schedule.NewScheduler(backgroundQueue, a.logger)
	scheduler.Start()

	handlers := web.NewAPIHandlers(consoleService, catalogService, scheduler, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Opsdeck API")
	})

	s := app.Group("/sessions")
	s.Post("/", handlers.CreateSession)
	s.Get("/", handlers.GetSessions)
	s.Get("/:id/messages", handlers.GetMessages)
	s.Post("/:id/messages", handlers.PostMessage)
	s.Post("/:id/executions", handlers.EnqueueExecution)
	s.Post("/:id/executions/cancel", handlers.CancelExecution)

	ac := app.Group("/actions")
	ac.Get("/", handlers.GetActions)
	ac.Post("/", handlers.CreateAction)
	ac.Get("/:id", handlers.GetAction)
	ac.Patch("/:id", handlers.UpdateAction)
	ac.Delete("/:id", handlers.DeleteAction)

	sc := app.Group("/schedules")
	sc.Get("/", handlers.GetSchedules)
	sc.Post("/", handlers.CreateSchedule)
	sc.Delete("/:actionId", handlers.DeleteSchedule)

	app.Get("/records", handlers.GetRecords)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(ctx context.Context, port int) error {
	app, err := a.App(ctx)
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
