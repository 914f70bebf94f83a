package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/service"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/internal/workers"
	"github.com/MKhiriev/go-ref-sync/models"
)

var _ Client = (*App)(nil)

type App struct {
	storages *store.ClientStorages
	services *service.ClientServices
	out      io.Writer
	logger   *logger.Logger
}

// NewApp opens the local store, builds the transport and wires the sync
// services. Command output goes to out.
func NewApp(ctx context.Context, cfg *config.ClientConfig, out io.Writer, logger *logger.Logger) (*App, error) {
	storages, err := store.NewClientStorages(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	transport, err := adapter.NewHTTPTransport(cfg.Adapter, logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create transport: %w", err)
	}

	return &App{
		storages: storages,
		services: service.NewClientServices(storages.LocalStore, transport, cfg, logger),
		out:      out,
		logger:   logger,
	}, nil
}

func (a *App) Sync(ctx context.Context) (models.SyncResult, error) {
	res, err := a.services.Engine.RunSyncCycle(ctx)
	a.printResult(res)
	return res, err
}

func (a *App) Refresh(ctx context.Context) (models.SyncResult, error) {
	if err := a.services.Engine.RequestFullSync(ctx); err != nil {
		return models.SyncResult{}, err
	}
	return a.Sync(ctx)
}

func (a *App) Watch(ctx context.Context) error {
	ws := workers.NewWorkers(
		newEventPrinter(a.services.Engine.Events(), a.out),
		a.services.SyncJob,
	)

	a.logger.Info().Str("func", "App.Watch").Msg("background sync started")
	ws.Start(ctx)
	<-ctx.Done()
	ws.Stop()
	a.logger.Info().Str("func", "App.Watch").Msg("background sync stopped")

	return nil
}

func (a *App) PrintQueue(ctx context.Context) error {
	queued, err := a.services.Engine.QueuedRequests(ctx)
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		_, err = fmt.Fprintln(a.out, "queue is empty")
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tMETHOD\tPATH\tSTATUS\tCREATED")
	for _, r := range queued {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.Method, r.PathAndQuery, r.Status, r.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) CreateItem(ctx context.Context, itemType, title string) (string, error) {
	item := &models.Item{ItemType: itemType, Title: title}
	if err := a.services.Engine.EnqueueUserEdit(ctx, item); err != nil {
		return "", err
	}
	return item.Key, nil
}

func (a *App) RetitleItem(ctx context.Context, key, title string) error {
	e, err := a.storages.LocalStore.Get(ctx, models.EntityItem, key)
	if err != nil {
		return err
	}
	item := e.(*models.Item)
	item.Title = title
	if item.Content, err = withTitle(item.Content, title); err != nil {
		return fmt.Errorf("rewrite cached content of %s: %w", key, err)
	}
	return a.services.Engine.EnqueueUserEdit(ctx, item)
}

// withTitle sets the title field of raw item JSON; empty content stays empty.
func withTitle(content json.RawMessage, title string) (json.RawMessage, error) {
	if len(content) == 0 {
		return content, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, err
	}
	fields["title"] = title
	return json.Marshal(fields)
}

func (a *App) Delete(ctx context.Context, ref models.EntityRef) error {
	return a.services.Engine.EnqueueDeletion(ctx, ref)
}

func (a *App) AddToCollection(ctx context.Context, collectionKey, itemKey string) error {
	return a.services.Engine.AddToCollection(ctx, collectionKey, itemKey)
}

func (a *App) RemoveFromCollection(ctx context.Context, collectionKey, itemKey string) error {
	return a.services.Engine.RemoveFromCollection(ctx, collectionKey, itemKey)
}

func (a *App) Resolve(ctx context.Context, ref models.EntityRef, discard bool) error {
	if discard {
		return a.services.Engine.DiscardLocalEdit(ctx, ref)
	}
	return a.services.Engine.ReconfirmEdit(ctx, ref)
}

func (a *App) Close() error {
	return a.storages.Close()
}

func (a *App) printResult(res models.SyncResult) {
	switch {
	case res.Stopped:
		fmt.Fprintln(a.out, "sync stopped")
	case res.Sent == 0 && res.UpToDate:
		fmt.Fprintln(a.out, "up to date")
	default:
		fmt.Fprintf(a.out, "sent %d: %d succeeded, %d failed, %d conflicts, %d follow-ups, %d local changes\n",
			res.Sent, res.Succeeded, res.Failed, res.Conflicts, res.FollowUps, res.Batched)
	}
}
