package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/askgraph/askgraph/pkg/cache"
	"github.com/askgraph/askgraph/pkg/cmd"
	"github.com/askgraph/askgraph/pkg/log"
	"github.com/askgraph/askgraph/pkg/master"
	"github.com/askgraph/askgraph/pkg/metrics"
	"github.com/askgraph/askgraph/pkg/otelhelper"
	"github.com/askgraph/askgraph/pkg/pool"
	"github.com/askgraph/askgraph/pkg/store"
	"github.com/askgraph/askgraph/pkg/taskbus"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "askgraph-api",
		Usage:                 "Answer natural-language questions against a knowledge graph",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for workflow state (file://, redis://, memory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "task-channel",
				Usage:   "Task channel provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("TASK_CHANNEL"),
			},
			&cli.StringFlag{
				Name:    "answer-cache-url",
				Usage:   "Redis URL for the answer cache (in-memory when empty)",
				Sources: cli.EnvVars("ANSWER_CACHE_URL"),
			},
			&cli.StringFlag{
				Name:    "sparql-endpoint",
				Usage:   "SPARQL endpoint for query execution",
				Sources: cli.EnvVars("SPARQL_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "ontology-file",
				Usage:   "Path to the gazetteer and ontology term table (JSON)",
				Sources: cli.EnvVars("ONTOLOGY_FILE"),
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long terminal workflow records are retained",
				Value:   24 * time.Hour,
				Sources: cli.EnvVars("RETENTION"),
			},
			&cli.DurationFlag{
				Name:    "domain-timeout",
				Usage:   "Upper bound on one domain master invocation",
				Value:   time.Minute,
				Sources: cli.EnvVars("DOMAIN_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "workflow-timeout",
				Usage:   "Upper bound on one workflow end to end",
				Value:   2 * time.Minute,
				Sources: cli.EnvVars("WORKFLOW_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "repair-attempts",
				Usage:   "Maximum plan repair cycles before a workflow fails",
				Value:   2,
				Sources: cli.EnvVars("REPAIR_ATTEMPTS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export spans to the configured OTLP endpoint",
				Sources: cli.EnvVars("TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing AskGraph API")

			if command.Bool("tracing") {
				_, err := otelhelper.NewTracer(ctx, "askgraph-api")
				if err != nil {
					return err
				}
			}

			capCfg, err := cmd.LoadCapabilityConfig(
				command.String("ontology-file"),
				command.String("sparql-endpoint"),
			)
			if err != nil {
				return err
			}

			registry := cmd.NewRegistry(logger, capCfg)
			retention := command.Duration("retention")
			workflowStore := cmd.NewStore(command.String("database-url"), retention)

			defer func() {
				if err := workflowStore.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close store", "error", err)
				}
			}()

			bus := cmd.NewTaskBus(command.String("task-channel"), logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close task channel", "error", err)
				}
			}()

			dispatcher := taskbus.NewDispatcher(bus, logger)
			if err := dispatcher.Start(ctx); err != nil {
				return err
			}

			answers, err := newAnswerCache(command.String("answer-cache-url"), retention)
			if err != nil {
				return err
			}

			m, err := metrics.New()
			if err != nil {
				return err
			}

			orchestrator := master.NewGlobalMaster(workflowStore, answers, dispatcher, registry, m, logger, master.GlobalConfig{
				MaxRepairAttempts: command.Int("repair-attempts"),
				DomainTimeout:     command.Duration("domain-timeout"),
				WorkflowTimeout:   command.Duration("workflow-timeout"),
			})

			// The gochannel provider is in-process only, so the pools must run
			// inside the API process.
			if command.String("task-channel") == "gochannel" {
				for _, poolName := range registry.Pools() {
					p := pool.NewPool(poolName, "api-embedded", bus, registry, logger)
					if err := p.Start(ctx); err != nil {
						return err
					}
				}
			}

			reaper := store.NewReaper(workflowStore, retention, logger)
			if err := reaper.Start(ctx, "@every 1h"); err != nil {
				return err
			}
			defer reaper.Stop()

			api := NewAPI(logger, workflowStore, orchestrator)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newAnswerCache(url string, ttl time.Duration) (cache.AnswerCache, error) {
	if url == "" {
		return cache.NewMemory(ttl), nil
	}

	return cache.NewRedis(url, ttl, log.WithModule("cache"))
}
