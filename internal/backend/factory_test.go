package backend

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"wunschliste/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:        "firestore",
		WishesFile:         "w.json",
		PlanningFile:       "p.json",
		FirestoreProjectID: "family",
		FirestoreRoot:      "xmas",
		AMQPURL:            "amqp://localhost/",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Type != FirestoreBackend || bc.Firestore.ProjectID != "family" || bc.Firestore.Root != "xmas" {
		t.Errorf("unexpected backend config %+v", bc)
	}
	if err := bc.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"file ok", Config{Type: FileBackend, WishesFile: "a", PlanningFile: "b"}, false},
		{"file without paths", Config{Type: FileBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"firestore without project", Config{Type: FirestoreBackend, WishesFile: "a", PlanningFile: "b"}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	want := []string{"file", "sqlite", "firestore", "memory"}
	if got := GetBackendTypeStrings(); !slices.Equal(got, want) {
		t.Errorf("GetBackendTypeStrings() = %v, want %v", got, want)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil, nil)
	dir := t.TempDir()

	tests := []struct {
		name     string
		config   Config
		wantName string
	}{
		{"memory", Config{Type: MemoryBackend}, "memory"},
		{"file", Config{Type: FileBackend, WishesFile: filepath.Join(dir, "w.json"), PlanningFile: filepath.Join(dir, "p.json")}, "file"},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "test.db")}, "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(ctx, tt.config)
			if err != nil {
				t.Fatal(err)
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}
			if got := res.Store.Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
			items, err := res.Store.LoadWishes(ctx)
			if err != nil || len(items) != 0 {
				t.Errorf("fresh store should be empty: %v %v", items, err)
			}
		})
	}
}

func TestCreateSyncPairRequiresFirestore(t *testing.T) {
	f := NewFactory(nil, nil)
	if _, err := f.CreateSyncPair(context.Background(), Config{Type: FileBackend, WishesFile: "a", PlanningFile: "b"}); err == nil {
		t.Fatal("expected error for non-firestore backend")
	}
}
