package main

import (
	"context"
	"os"
	"time"

	"github.com/flowmark/journey/pkg/cmd"
	"github.com/flowmark/journey/pkg/config"
	"github.com/flowmark/journey/pkg/log"
	"github.com/flowmark/journey/pkg/otelhelper"
	"github.com/flowmark/journey/pkg/services"
	"github.com/flowmark/journey/pkg/web"
	"github.com/flowmark/journey/pkg/workflow"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-worker",
		EnableShellCompletion: true,
		Usage:                 "Run the journey workflow HTTP API and job workers",
		Flags:                 flags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			applyFlags(cfg, command)

			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Setup(cfg.LogLevel)

			logger := log.WithModule("journey-worker")
			logger.InfoContext(ctx, "Starting journey worker",
				"port", cfg.Server.Port,
				"queue_provider", cfg.Queue.Provider,
				"event_bus", cfg.EventBus.Provider,
			)

			var tracer trace.Tracer

			if cfg.Tracing.Enabled {
				var shutdown func(context.Context) error

				tracer, shutdown, err = otelhelper.NewTracer(ctx, cfg.Tracing.ServiceName)
				if err != nil {
					return err
				}

				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					if err := shutdown(shutdownCtx); err != nil {
						logger.Error("Failed to shut down tracer", "error", err)
					}
				}()
			}

			registry := cmd.NewRegistry(logger, cfg.PluginsPath, cfg.Engine.HTTPTimeout)

			persistence, err := cmd.NewPersistence(ctx, logger, cfg.Persistence.DatabaseURL)
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.Background()); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(cfg.EventBus, cfg.Tracing.ServiceName, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			jobQueue, err := cmd.NewQueue(ctx, cfg.Queue, logger, eventBus, tracer)
			if err != nil {
				return err
			}

			defer func() {
				if err := jobQueue.Close(); err != nil {
					logger.Error("Failed to close queue", "error", err)
				}
			}()

			engineOpts := []workflow.Option{
				workflow.WithLogger(logger),
				workflow.WithMaxNodeExecutions(cfg.Engine.MaxNodeExecutions),
			}

			if tracer != nil {
				engineOpts = append(engineOpts, workflow.WithTracer(tracer))
			}

			engine := workflow.NewEngine(registry, engineOpts...)

			processor := services.NewProcessor(engine, logger,
				services.WithExecutionRepository(persistence.ExecutionRepository()),
				services.WithEventPublisher(eventBus),
			)

			workflowService := services.NewWorkflow(persistence.WorkflowRepository(), jobQueue, persistence, logger)
			handlers := web.NewAPIHandlers(workflowService, web.NewValidator(), registry)

			worker := NewWorker(web.NewApp(handlers), jobQueue, processor, eventBus, logger)

			return worker.Start(ctx, cfg.Server.Port)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to a YAML configuration file",
			Sources: cli.EnvVars("JOURNEY_CONFIG"),
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "HTTP port for the API",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL (postgres://... or file://path)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "queue-provider",
			Usage:   "Job queue store (memory, redis)",
			Sources: cli.EnvVars("QUEUE_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the redis queue store",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Number of jobs processed in parallel",
			Sources: cli.EnvVars("WORKER_CONCURRENCY"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Directory with node plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
}

// applyFlags overrides the loaded configuration with flags or environment
// variables that were set explicitly.
func applyFlags(cfg *config.Config, command *cli.Command) {
	if command.IsSet("port") {
		cfg.Server.Port = command.Int("port")
	}

	if command.IsSet("database-url") {
		cfg.Persistence.DatabaseURL = command.String("database-url")
	}

	if command.IsSet("queue-provider") {
		cfg.Queue.Provider = command.String("queue-provider")
	}

	if command.IsSet("redis-url") {
		cfg.Queue.RedisURL = command.String("redis-url")
	}

	if command.IsSet("concurrency") {
		cfg.Queue.Concurrency = command.Int("concurrency")
	}

	if command.IsSet("event-bus") {
		cfg.EventBus.Provider = command.String("event-bus")
	}

	if command.IsSet("kafka-brokers") {
		cfg.EventBus.KafkaBrokers = command.String("kafka-brokers")
	}

	if command.IsSet("plugins-path") {
		cfg.PluginsPath = command.String("plugins-path")
	}

	if command.IsSet("log-level") {
		cfg.LogLevel = command.String("log-level")
	}

	if command.IsSet("tracing") {
		cfg.Tracing.Enabled = command.Bool("tracing")
	}
}
