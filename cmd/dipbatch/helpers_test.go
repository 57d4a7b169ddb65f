package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dipbatch/internal/config"
	"dipbatch/internal/storageservice"
	"dipbatch/internal/testsupport"
)

const (
	aipA      = "aaaaaaaa-0000-4000-8000-000000000001"
	aipB      = "bbbbbbbb-0000-4000-8000-000000000002"
	aipC      = "cccccccc-0000-4000-8000-000000000003"
	otherUUID = "1c8f1e3f-1a5f-4a3d-9f8f-4b0c2a4dd2a1"
)

const dipBuilderScript = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --aip-uuid) aip="$2"; shift ;;
    --output-dir) out="$2"; shift ;;
  esac
  shift
done
echo "creating DIP"
echo "$out/dip-$aip"
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	listings   atomic.Int32
}

// setupCLITestEnv writes a config pointing at a fake Storage Service that
// lists A and C in the configured location and B elsewhere, plus a stub DIP
// builder.
func setupCLITestEnv(t *testing.T, listStatus int) *cliTestEnv {
	t.Helper()
	env := &cliTestEnv{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v2/file/"):
			env.listings.Add(1)
			if listStatus != http.StatusOK {
				w.WriteHeader(listStatus)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"meta": map[string]any{"next": nil, "total_count": 3},
				"objects": []storageservice.Package{
					{UUID: aipA, CurrentLocation: storageservice.LocationURI(testsupport.LocationUUID)},
					{UUID: aipB, CurrentLocation: storageservice.LocationURI(otherUUID)},
					{UUID: aipC, CurrentLocation: storageservice.LocationURI(testsupport.LocationUUID)},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/api/v2/location/"):
			_, _ = w.Write([]byte(`{"meta":{"next":null,"total_count":1},"objects":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithStorageServiceURL(srv.URL))
	builder := filepath.Join(testsupport.BaseDir(cfg), "create_dip")
	if err := os.WriteFile(builder, []byte(dipBuilderScript), 0o755); err != nil {
		t.Fatalf("write dip builder stub: %v", err)
	}
	cfg.DIPCreation.Command = builder

	env.cfg = cfg
	env.configPath = filepath.Join(testsupport.BaseDir(cfg), "dipbatch.toml")
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
