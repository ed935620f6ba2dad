package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/askgraph/askgraph/pkg/cmd"
	"github.com/askgraph/askgraph/pkg/log"
	"github.com/askgraph/askgraph/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "askgraph-worker",
		EnableShellCompletion: true,
		Usage:                 "Start slave pools to execute pipeline tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringSliceFlag{
				Name:    "pools",
				Usage:   "Pools this worker serves (all registered pools if not provided)",
				Sources: cli.EnvVars("POOLS"),
			},
			&cli.StringFlag{
				Name:    "task-channel",
				Usage:   "Task channel provider (kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("TASK_CHANNEL"),
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

			if command.Bool("tracing") {
				_, err := otelhelper.NewTracer(ctx, "askgraph-worker")
				if err != nil {
					return err
				}
			}

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("askgraph-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing AskGraph Worker")

			capCfg, err := cmd.LoadCapabilityConfig(
				command.String("ontology-file"),
				command.String("sparql-endpoint"),
			)
			if err != nil {
				return err
			}

			registry := cmd.NewRegistry(logger, capCfg)

			bus := cmd.NewTaskBus(command.String("task-channel"), logger)
			defer func() {
				err := bus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close task channel", "error", err)
				}
			}()

			manager := NewPoolManager(workerID, bus, registry, logger, command.StringSlice("pools"))

			err = manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
