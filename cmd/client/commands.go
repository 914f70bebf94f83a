package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-ref-sync/internal/client"
	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/models"
)

// clientFactory opens the client a command runs against. Tests replace it
// with a fake.
type clientFactory func(ctx context.Context, cfg *config.ClientConfig, out io.Writer, log *logger.Logger) (client.Client, error)

func openClient(ctx context.Context, cfg *config.ClientConfig, out io.Writer, log *logger.Logger) (client.Client, error) {
	return client.NewApp(ctx, cfg, out, log)
}

type clientRun func(cmd *cobra.Command, c client.Client, args []string) error

// wrapper loads config, opens a client for the duration of one command and
// hands it to a clientRun.
type wrapper func(clientRun) func(*cobra.Command, []string) error

func newRootCmd(open clientFactory) *cobra.Command {
	info := models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)

	root := &cobra.Command{
		Use:          "refsync",
		Short:        "Offline sync client for a bibliographic library",
		Version:      info.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(info.String() + "\n")
	config.RegisterFlags(root.PersistentFlags())

	var with wrapper = func(run clientRun) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetClientConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.NewClientLogger("refsync", logger.Options{
				FilePath:   cfg.Logging.File,
				Level:      cfg.Logging.Level,
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAgeDays: cfg.Logging.MaxAgeDays,
			})

			c, err := open(cmd.Context(), cfg, cmd.OutOrStdout(), log)
			if err != nil {
				log.Err(err).Msg("cannot open client")
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Err(err).Msg("cannot close client")
				}
			}()

			return run(cmd, c, args)
		}
	}

	root.AddCommand(
		newSyncCmd(with),
		newRefreshCmd(with),
		newWatchCmd(with),
		newQueueCmd(with),
		newItemCmd(with),
		newDeleteCmd(with),
		newCollectionCmd(with),
		newResolveCmd(with),
	)
	return root
}

func newSyncCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle",
		Long: `Send queued requests until the queue is drained, then upload local changes.

A transport failure ends the cycle; the failed request is retried next time.`,
		Args: cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, c client.Client, _ []string) error {
			_, err := c.Sync(cmd.Context())
			return err
		}),
	}
}

func newRefreshCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "List the whole library again and sync",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, c client.Client, _ []string) error {
			_, err := c.Refresh(cmd.Context())
			return err
		}),
	}
}

func newWatchCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync in the background until interrupted",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, c client.Client, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
			defer stop()
			return c.Watch(ctx)
		}),
	}
}

func newQueueCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:     "queue",
		Aliases: []string{"ls"},
		Short:   "Show queued requests",
		Args:    cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, c client.Client, _ []string) error {
			return c.PrintQueue(cmd.Context())
		}),
	}
}

func newItemCmd(with wrapper) *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Edit items locally"}

	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an item; it is uploaded on the next sync",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, c client.Client, args []string) error {
			itemType, _ := cmd.Flags().GetString("type")
			key, err := c.CreateItem(cmd.Context(), itemType, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CREATED %s\n", key)
			return nil
		}),
	}
	add.Flags().String("type", "document", "item type")

	retitle := &cobra.Command{
		Use:   "retitle <key> <title>",
		Short: "Change the title of a cached item",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, c client.Client, args []string) error {
			return c.RetitleItem(cmd.Context(), args[0], args[1])
		}),
	}

	item.AddCommand(add, retitle)
	return item
}

func newDeleteCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item|attachment> <key>",
		Short: "Delete an entity locally and queue its removal",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, c client.Client, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			return c.Delete(cmd.Context(), ref)
		}),
	}
}

func newCollectionCmd(with wrapper) *cobra.Command {
	coll := &cobra.Command{Use: "collection", Short: "Change collection membership"}

	coll.AddCommand(
		&cobra.Command{
			Use:   "add <collection-key> <item-key>",
			Short: "Add an item to a collection",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, c client.Client, args []string) error {
				return c.AddToCollection(cmd.Context(), args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "remove <collection-key> <item-key>",
			Short: "Remove an item from a collection",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, c client.Client, args []string) error {
				return c.RemoveFromCollection(cmd.Context(), args[0], args[1])
			}),
		},
	)
	return coll
}

func newResolveCmd(with wrapper) *cobra.Command {
	resolve := &cobra.Command{
		Use:   "resolve <item|attachment> <key>",
		Short: "Settle a conflict by keeping (default) or discarding the local edit",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, c client.Client, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			discard, _ := cmd.Flags().GetBool("discard")
			return c.Resolve(cmd.Context(), ref, discard)
		}),
	}
	resolve.Flags().Bool("discard", false, "drop the local edit and take the server copy")
	return resolve
}

func parseRef(args []string) (models.EntityRef, error) {
	t, err := models.ParseEntityType(args[0])
	if err != nil {
		return models.EntityRef{}, err
	}
	return models.EntityRef{Type: t, Key: args[1]}, nil
}
