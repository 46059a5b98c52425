package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/repositories"
	"github.com/oldrefery/summit-backend-sub001/internal/services"
	"github.com/oldrefery/summit-backend-sub001/internal/storage"
	pkglogger "github.com/oldrefery/summit-backend-sub001/pkg/logger"
	"github.com/spf13/cobra"
)

// versioning is the service graph the version commands run against
type versioning struct {
	db      *database.DB
	service *services.VersioningService
}

func (v *versioning) Close() {
	v.db.Close()
}

func openVersioning(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*versioning, error) {
	ctx := cmd.Context()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	artifacts, err := storage.NewS3ArtifactStore(ctx, cfg.Storage, nil, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	var notifier services.PublishNotifier
	sesNotifier, err := services.NewSESPublishNotifier(ctx, cfg.Email, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if sesNotifier != nil {
		notifier = sesNotifier
	}

	service := services.NewVersioningService(
		repositories.NewVersionRepository(db),
		repositories.NewChangeRepository(db),
		artifacts,
		notifier,
		services.VersioningConfig{LockKey: cfg.Publish.LockKey},
		logger,
		pkglogger.NewAuditLogger(logger, cfg.Server.Env),
		nil,
	)
	return &versioning{db: db, service: service}, nil
}

// withVersioning opens the service graph for the duration of fn
func withVersioning(cmd *cobra.Command, fn func(v *versioning) error) error {
	cfg := configFromContext(cmd.Context())
	v, err := openVersioning(cmd, cfg, commonRun())
	if err != nil {
		return err
	}
	defer v.Close()
	return fn(v)
}

func printChanges(changes models.ChangeCounters) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCHANGES")
	for _, t := range models.TrackedTables {
		fmt.Fprintf(tw, "%s\t%d\n", t, changes[t])
	}
	fmt.Fprintf(tw, "total\t%d\n", changes.Total())
	tw.Flush()
}

func versionsListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVersioning(cmd, func(v *versioning) error {
				items, err := v.service.ListVersions(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(items)
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tID\tPUBLISHED\tCHANGES\tLATEST")
				for _, item := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n",
						item.Version.Version,
						item.ID,
						item.PublishedAt.Format(time.RFC3339),
						item.Changes.Total(),
						item.Latest,
					)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func versionsPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the current data as a new version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVersioning(cmd, func(v *versioning) error {
				version, err := v.service.Publish(cmd.Context(), globalFlags.actor)
				if err != nil {
					return err
				}
				fmt.Printf("published version %s (%s)\n", version.Version, version.FileURL)
				printChanges(version.Changes)
				return nil
			})
		},
	}
}

func versionsRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version>",
		Short: "Restore every tracked table to a published version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVersioning(cmd, func(v *versioning) error {
				if err := v.service.Rollback(cmd.Context(), args[0], globalFlags.actor); err != nil {
					return err
				}
				fmt.Printf("rolled back to version %s\n", args[0])
				return nil
			})
		},
	}
}

func versionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a version record and its artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVersioning(cmd, func(v *versioning) error {
				if err := v.service.DeleteVersion(cmd.Context(), args[0], globalFlags.actor); err != nil {
					return err
				}
				fmt.Printf("deleted version %s\n", args[0])
				return nil
			})
		},
	}
}

func versionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Manage published versions",
	}
	cmd.AddCommand(versionsListCommand())
	cmd.AddCommand(versionsPublishCommand())
	cmd.AddCommand(versionsRollbackCommand())
	cmd.AddCommand(versionsDeleteCommand())
	return cmd
}

func changesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "changes",
		Short: "Show unpublished changes per table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVersioning(cmd, func(v *versioning) error {
				printChanges(v.service.GetChanges(cmd.Context()))
				return nil
			})
		},
	}
}
