package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dipbatch/internal/config"
	"dipbatch/internal/storageservice"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func newClient(t *testing.T, handler http.HandlerFunc) *storageservice.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := storageservice.New(srv.URL, "test", "key", srv.Client())
	if err != nil {
		t.Fatalf("storageservice.New: %v", err)
	}
	return client
}

func TestCheckStorageService_OK(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "ApiKey test:key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"meta":{"total_count":1},"objects":[]}`))
	})

	result := CheckStorageService(context.Background(), client.BaseURL(), client)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckStorageService_BadKey(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	result := CheckStorageService(context.Background(), client.BaseURL(), client)
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestRunAll_MinimalConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Batch.DatabaseFile = filepath.Join(base, "aips.db")
	cfg.Batch.TmpDir = t.TempDir()
	cfg.Batch.OutputDir = t.TempDir()
	cfg.DIPCreation.Command = writeStub(t, base, "create_dip")

	results := RunAll(context.Background(), &cfg, nil)
	// ledger, tmp and output directories plus the DIP builder
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	if Failed(results) {
		t.Fatalf("unexpected failure: %+v", results)
	}
}

func TestRunAll_SSUploadChecksSharedDirectoryAndService(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"total_count":0},"objects":[]}`))
	})
	base := t.TempDir()
	cfg := config.Default()
	cfg.Batch.DatabaseFile = filepath.Join(base, "aips.db")
	cfg.Batch.TmpDir = base
	cfg.Batch.OutputDir = base
	cfg.Batch.UploadType = config.UploadStorageService
	cfg.SSUpload.SharedDirectory = filepath.Join(base, "missing-shared")
	cfg.DIPCreation.Command = writeStub(t, base, "create_dip")

	results := RunAll(context.Background(), &cfg, client)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["Storage Service"].Passed {
		t.Fatalf("expected Storage Service check to pass: %+v", byName["Storage Service"])
	}
	shared, ok := byName["Shared directory"]
	if !ok || shared.Passed {
		t.Fatalf("expected failing shared directory check, got %+v", shared)
	}
	if !Failed(results) {
		t.Fatal("expected Failed to report the missing shared directory")
	}
}

func TestCheckSystemDeps_AtoM(t *testing.T) {
	cfg := config.Default()
	cfg.Batch.UploadType = config.UploadAtoM
	cfg.DIPCreation.Command = "clearly-not-present-dip"
	cfg.AtoM.Command = "clearly-not-present-atom"

	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Available || statuses[1].Available {
		t.Fatalf("expected missing commands: %+v", statuses)
	}
	if !statuses[2].Optional {
		t.Fatal("expected rsync to be optional")
	}
}
