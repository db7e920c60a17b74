package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/deduplication"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// withApp builds the app, opens the database and runs fn.
func withApp(cmd *cobra.Command, state *cliState, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()

	a, err := newApp(state.cfg, state.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdown, err := tracing.Setup(ctx, state.cfg.Tracing())
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	if err := a.openDatabase(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func newMigrateCommand(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, state, func(_ context.Context, a *app) error {
				return a.migrate()
			})
		},
	}
}

func newCreateCommand(state *cliState) *cobra.Command {
	var req models.CreateDeduplicationRequest
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a deduplication job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("invalid deduplication: %w", err)
			}
			return withApp(cmd, state, func(ctx context.Context, a *app) error {
				job, err := a.jobs.Create(ctx, req)
				if err != nil {
					return err
				}
				if enqueue {
					a.openProducers()
					if a.requests == nil {
						return fmt.Errorf("cannot enqueue deduplication %s: Kafka is disabled", job.ID)
					}
					if err := a.requests.PublishDeduplicationRequest(ctx, job.ID); err != nil {
						return err
					}
				}
				return writeJSON(cmd.OutOrStdout(), job)
			})
		},
	}
	cmd.Flags().StringSliceVar(&req.Groups, "groups", nil, "only scan contacts in these groups")
	cmd.Flags().IntVar(&req.MaxDisplay, "max-display", 0, "sources per review page (default 25)")
	cmd.Flags().Float64Var(&req.MinScoreDisplay, "min-score-display", 0, "hide duplicates scoring below this (default 0.7)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "request a run from the workers")
	return cmd
}

func newRunCommand(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "run <deduplication-id>",
		Short: "Run a deduplication job in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, state, func(ctx context.Context, a *app) error {
				if err := a.openRedis(); err != nil {
					return err
				}
				a.openProducers()

				result, err := a.runner().Run(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"deduplication_id": result.DeduplicationID,
					"targets":          result.Targets,
					"sources":          len(result.Duplicates),
					"pairs":            result.Duplicates.PairCount(),
					"duration":         result.Duration.String(),
				})
			})
		},
	}
}

func newServeCommand(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume deduplication requests and serve metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			shutdown, err := tracing.Setup(ctx, state.cfg.Tracing())
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

			s, err := a.startServices(ctx)
			if err != nil {
				return err
			}

			state.logger.Info("clover is running")
			<-ctx.Done()
			state.logger.Info("Shutting down")

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			return s.Stop(stopCtx)
		},
	}
}

func newReviewCommand(state *cliState) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "review <deduplication-id>",
		Short: "Print a page of a job's duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, state, func(ctx context.Context, a *app) error {
				result, err := a.reviewer().Review(ctx, args[0], page)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to print")
	return cmd
}

func newResolveCommand(state *cliState) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "resolve <deduplication-id>",
		Short: "Apply a resolution file to a job in review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res deduplication.Resolution
			if err := readJSONFile(file, &res); err != nil {
				return err
			}
			return withApp(cmd, state, func(ctx context.Context, a *app) error {
				a.openProducers()
				result, err := a.resolver().Resolve(ctx, args[0], res)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON file with "update", "delete" and "ignore" keys`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newImportCheckCommand(state *cliState) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-check",
		Short: "Find existing contacts duplicated by rows about to be imported",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []map[string]any
			if err := readJSONFile(file, &rows); err != nil {
				return err
			}
			return withApp(cmd, state, func(ctx context.Context, a *app) error {
				contacts, err := a.contacts.List(ctx)
				if err != nil {
					return err
				}
				builder := a.newBuilder()
				space := builder.FromContacts(ctx, contacts)

				result, err := a.importer(builder).FindImportDuplicates(ctx, rows, space)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of rows keyed by contact field name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExplainCommand(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <contact-id> <contact-id>",
		Short: "Print how two contacts score against each other",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, state, func(ctx context.Context, a *app) error {
				found, err := a.contacts.GetByIDs(ctx, args)
				if err != nil {
					return err
				}
				for _, id := range args {
					if _, ok := found[id]; !ok {
						return fmt.Errorf("contact %s not found", id)
					}
				}
				builder := a.newBuilder()
				first := builder.FromContact(found[args[0]])
				second := builder.FromContact(found[args[1]])
				return writeJSON(cmd.OutOrStdout(), a.finder.Scorer().Explain(first, second))
			})
		},
	}
}
