package backend

import (
	"context"

	"wunschliste/internal/storage"
	"wunschliste/internal/storage/file"
	"wunschliste/internal/storage/firestore"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and optional cleanup function
type BackendResult struct {
	Store storage.Store
	// Local is the file store behind a firestore backend, nil otherwise.
	Local   *file.Store
	Cleanup CleanupFunc
}

// SyncPair is what the resync worker needs: the remote store and the
// local file it pushes from.
type SyncPair struct {
	Remote  storage.Store
	Local   *file.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a store based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateSyncPair opens the remote and local stores of a firestore backend
	CreateSyncPair(ctx context.Context, config Config) (*SyncPair, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File store, also the fallback for firestore
	WishesFile   string
	PlanningFile string

	// SQLite specific
	SQLiteDBPath string

	// Firestore specific
	Firestore firestore.Config

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend      BackendType = "file"
	SQLiteBackend    BackendType = "sqlite"
	FirestoreBackend BackendType = "firestore"
	MemoryBackend    BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, FirestoreBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
