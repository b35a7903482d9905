package backend

import (
	"fmt"

	"wunschliste/internal/config"
	"wunschliste/internal/storage/firestore"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		WishesFile:   appConfig.WishesFile,
		PlanningFile: appConfig.PlanningFile,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		Firestore: firestore.Config{
			ProjectID:       appConfig.FirestoreProjectID,
			CredentialsFile: appConfig.FirestoreCredentialsFile,
			CredentialsJSON: appConfig.FirestoreCredentialsJSON,
			Root:            appConfig.FirestoreRoot,
		},

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case FileBackend:
		if c.WishesFile == "" || c.PlanningFile == "" {
			return fmt.Errorf("wishes and planning file paths are required for file backend")
		}

	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case FirestoreBackend:
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("Firestore project ID is required for firestore backend")
		}
		// the file store is the fallback
		if c.WishesFile == "" || c.PlanningFile == "" {
			return fmt.Errorf("wishes and planning file paths are required for firestore backend")
		}

	case MemoryBackend:
		// nothing to configure
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{FileBackend, SQLiteBackend, FirestoreBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
