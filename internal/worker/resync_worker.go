package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"wunschliste/internal/adapters"
	"wunschliste/internal/amqp"
	applog "wunschliste/internal/log"
	"wunschliste/internal/metrics"
	"wunschliste/internal/storage"
)

var errUnknownCollection = errors.New("unknown collection")

// ResyncWorker pushes documents that were written to the local file while
// the remote store was down back to the remote store.
type ResyncWorker struct {
	remote  storage.Store
	local   adapters.LocalStore
	metrics *metrics.Metrics
}

func NewResyncWorker(remote storage.Store, local adapters.LocalStore, m *metrics.Metrics) *ResyncWorker {
	return &ResyncWorker{remote: remote, local: local, metrics: m}
}

// HandleResyncMessage processes a single resync message from AMQP. A
// message for a document that is no longer pending is acknowledged
// without touching the remote store.
func (w *ResyncWorker) HandleResyncMessage(ctx context.Context, msg *amqp.ResyncMessage) error {
	slog.InfoContext(ctx, "Processing resync message",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldCollection, msg.Collection,
		"reason", msg.Reason,
		"published_at", msg.Timestamp)

	pending, err := w.local.Pending()
	if err != nil {
		return fmt.Errorf("read pending markers: %w", err)
	}
	if !slices.Contains(pending, msg.Collection) {
		slog.InfoContext(ctx, "Document already in sync", "collection", msg.Collection)
		w.metrics.Resync(msg.Collection, "skipped")
		return nil
	}
	return w.push(ctx, msg.Collection)
}

// ProcessPending pushes every pending document. This is a backup mechanism
// in case AMQP messages are lost; one failing document does not stop the
// others.
func (w *ResyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.local.Pending()
	if err != nil {
		return fmt.Errorf("read pending markers: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending documents", "count", len(pending))

	var errs []error
	for _, collection := range pending {
		if err := w.push(ctx, collection); err != nil {
			slog.ErrorContext(ctx, "Failed to resync document", "collection", collection, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartupSyncCheck pushes anything left pending while the worker was down.
// Failures are logged; the periodic poll retries them.
func (w *ResyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.local.Pending()
	if err != nil {
		return fmt.Errorf("read pending markers for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending documents found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending documents on startup, processing...", "count", len(pending))

	synced := 0
	for _, collection := range pending {
		if err := w.push(ctx, collection); err != nil {
			slog.ErrorContext(ctx, "Failed to resync document during startup",
				"collection", collection, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", len(pending)-synced)
	return nil
}

// push copies the local document to the remote store and clears its
// pending marker.
func (w *ResyncWorker) push(ctx context.Context, collection string) error {
	var err error
	switch collection {
	case storage.CollectionWishes:
		items, loadErr := w.local.LoadWishes(ctx)
		if loadErr != nil {
			return fmt.Errorf("load local %s: %w", collection, loadErr)
		}
		err = w.remote.SaveWishes(ctx, items)
	case storage.CollectionPlanning:
		p, loadErr := w.local.LoadPlanning(ctx)
		if loadErr != nil {
			return fmt.Errorf("load local %s: %w", collection, loadErr)
		}
		err = w.remote.SavePlanning(ctx, p)
	default:
		return fmt.Errorf("%w: %s", errUnknownCollection, collection)
	}

	if err != nil {
		w.metrics.Resync(collection, "error")
		return fmt.Errorf("push %s to %s: %w", collection, w.remote.Name(), err)
	}

	if err := w.local.ClearPending(collection); err != nil {
		// The push worked; the next run repeats it harmlessly.
		slog.ErrorContext(ctx, "Failed to clear pending marker", "collection", collection, "error", err)
	}
	w.metrics.Resync(collection, "synced")
	slog.InfoContext(ctx, "Successfully resynced document",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldCollection, collection,
		"remote", w.remote.Name())
	return nil
}
