package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"pockets/internal/config"
	"pockets/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/x.db",
		AMQPExchange: "pockets",
		DataFile:     "/tmp/data.json",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.AMQPExchange != "pockets" || cfg.DataFile != "/tmp/data.json" {
		t.Fatalf("unexpected backend config %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown", Config{Type: "redis"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "database path"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}, "GoogleServiceAccount"},
		{"sheets with file", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc", GoogleServiceAccountFile: "sa.json"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "sqlite,sheets,memory" {
		t.Fatalf("got %q", got)
	}
}

func TestCreateMemoryBackendPersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pockets.json")
	f := NewFactory(nil)

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataFile: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if res.Publisher != nil {
		t.Fatal("memory backend should not publish")
	}
	if _, err := res.Directory.CreatePocket(ctx, core.Pocket{ID: "p1", Name: "Main", Kind: core.PocketMain}); err != nil {
		t.Fatalf("CreatePocket: %v", err)
	}
	if _, err := res.Log.Append(ctx, core.Transaction{
		ID: "t1", Kind: core.Income, Amount: core.Money{Cents: 500},
		Date: core.NewDate(2025, 1, 2), PocketID: "p1",
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataFile: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	all, err := again.Log.All(ctx)
	if err != nil || len(all) != 1 || all[0].ID != "t1" {
		t.Fatalf("expected persisted record, got %v (%v)", all, err)
	}
	if _, err := again.Directory.Pocket(ctx, "p1"); err != nil {
		t.Fatalf("expected persisted pocket: %v", err)
	}
}

func TestCreateSQLiteBackendWithoutAMQP(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "pockets.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Publisher != nil {
		t.Fatal("expected no publisher without AMQP_URL")
	}
	if _, err := res.Log.All(ctx); err != nil {
		t.Fatalf("All: %v", err)
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNilResultClose(t *testing.T) {
	var r *BackendResult
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil result: %v", err)
	}
}
