package backend

import (
	"context"
	"fmt"
	"log/slog"

	"wunschliste/internal/adapters"
	"wunschliste/internal/amqp"
	"wunschliste/internal/metrics"
	"wunschliste/internal/storage/file"
	"wunschliste/internal/storage/firestore"
	"wunschliste/internal/storage/memory"
	"wunschliste/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory. m may be nil.
func NewFactory(logger *slog.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:  logger,
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileBackend:
		return f.createFileBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case FirestoreBackend:
		return f.createFirestoreBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFileBackend(config Config) (*BackendResult, error) {
	store := file.New(config.WishesFile, config.PlanningFile)

	f.logger.Info("Initialized file backend",
		"wishes_file", config.WishesFile,
		"planning_file", config.PlanningFile)

	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createFirestoreBackend(ctx context.Context, config Config) (*BackendResult, error) {
	remote, err := firestore.New(ctx, config.Firestore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}
	local := file.New(config.WishesFile, config.PlanningFile)

	// AMQP is optional; without it the worker still resyncs on its timer
	var publisher adapters.ResyncPublisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without resync messages", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	store := adapters.NewFallbackStore(remote, local, publisher, f.metrics)

	f.logger.Info("Initialized Firestore backend",
		"project_id", config.Firestore.ProjectID,
		"fallback_wishes_file", config.WishesFile,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Store: store,
		Local: local,
		Cleanup: func() error {
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					f.logger.Warn("Error closing AMQP client", "error", err)
				}
			}
			return remote.Close()
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend, data is lost on restart")
	return &BackendResult{Store: memory.New()}, nil
}

// CreateSyncPair implements Factory.CreateSyncPair
func (f *DefaultFactory) CreateSyncPair(ctx context.Context, config Config) (*SyncPair, error) {
	if config.Type != FirestoreBackend {
		return nil, fmt.Errorf("resync needs the firestore backend, got %s", config.Type)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	remote, err := firestore.New(ctx, config.Firestore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}
	return &SyncPair{
		Remote:  remote,
		Local:   file.New(config.WishesFile, config.PlanningFile),
		Cleanup: remote.Close,
	}, nil
}
