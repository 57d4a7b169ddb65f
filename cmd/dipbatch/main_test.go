package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dipbatch/internal/batch"
	"dipbatch/internal/testsupport"
)

func TestRunCommandCreatesDIPsAndSkipsClaimed(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)
	store := testsupport.MustOpenLedger(t, env.cfg)
	testsupport.MustClaim(t, store, aipC)

	out, _, err := runCLI(t, []string{"run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary batch.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if summary.Listed != 3 || summary.Selected != 2 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}
	byID := map[string]batch.ItemResult{}
	for _, item := range summary.Items {
		byID[item.AIPUUID] = item
	}
	if got := byID[aipA]; got.Status != batch.StatusCreated || got.DIPPath != filepath.Join(env.cfg.Batch.OutputDir, "dip-"+aipA) {
		t.Fatalf("unexpected result for A: %+v", got)
	}
	if got := byID[aipC].Status; got != batch.StatusAlreadyClaimed {
		t.Fatalf("expected C already claimed, got %q", got)
	}
	if _, ok, err := store.Claimed(context.Background(), aipA); err != nil || !ok {
		t.Fatalf("expected A in ledger (ok=%v err=%v)", ok, err)
	}

	out, _, err = runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	requireContains(t, out, "Already Claimed")
}

func TestRunCommandListingFailureExitsTwo(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusInternalServerError)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, batch.ErrListing) {
		t.Fatalf("expected listing error, got %v", err)
	}
	if code := exitCode(err); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRunCommandLedgerFailureExitsOne(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)
	missing := filepath.Join(testsupport.BaseDir(env.cfg), "missing", "aips.db")

	_, _, err := runCLI(t, []string{"run", "--database-file", missing}, env.configPath)
	if !errors.Is(err, batch.ErrLedger) {
		t.Fatalf("expected ledger error, got %v", err)
	}
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if env.listings.Load() != 0 {
		t.Fatal("listing must not happen when the ledger cannot be opened")
	}
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)

	_, _, err := runCLI(t, []string{"run", "--location-uuid", "not-a-uuid"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "batch.location_uuid")
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestLedgerListAndShow(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)
	store := testsupport.MustOpenLedger(t, env.cfg)
	testsupport.MustClaim(t, store, aipA, aipB)

	out, _, err := runCLI(t, []string{"ledger", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, aipA)
	requireContains(t, out, aipB)

	out, _, err = runCLI(t, []string{"ledger", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list --json: %v", err)
	}
	var claims []map[string]any
	if err := json.Unmarshal([]byte(out), &claims); err != nil || len(claims) != 2 {
		t.Fatalf("unexpected json claims %q (err=%v)", out, err)
	}

	out, _, err = runCLI(t, []string{"ledger", "show", aipB}, env.configPath)
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "claimed at")

	if _, _, err := runCLI(t, []string{"ledger", "show", aipC}, env.configPath); err == nil {
		t.Fatal("expected error for unclaimed AIP")
	}
}

func TestUploadCommandAlreadyExistsExitCode(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)
	dip := filepath.Join(env.cfg.Batch.OutputDir, "dip-"+aipA)
	testsupport.WriteFile(t, filepath.Join(dip, "METS.xml"), 16)
	staged := filepath.Join(env.cfg.SSUpload.SharedDirectory, "watchedDirectories", "uploadDIP", "dip-"+aipA)
	if err := os.MkdirAll(staged, 0o755); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"upload", "--dip-path", dip, "--aip-uuid", aipA, "--json"}, env.configPath)
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d (err=%v)", code, err)
	}
	requireContains(t, out, `"outcome": "already_exists"`)
	if _, err := os.Stat(filepath.Join(dip, "METS.xml")); err != nil {
		t.Fatalf("source DIP must be untouched: %v", err)
	}
}

func TestUploadCommandRequiresDIPPath(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)
	if _, _, err := runCLI(t, []string{"upload", "--aip-uuid", aipA}, env.configPath); err == nil {
		t.Fatal("expected missing --dip-path error")
	}
}

func TestPreflightCommand(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "Storage Service")
	requireContains(t, out, "[OK]")

	_, _, err = runCLI(t, []string{"preflight", "--config", env.configPath}, "")
	if err != nil {
		t.Fatalf("preflight with trailing --config: %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	env := setupCLITestEnv(t, http.StatusOK)
	if _, _, err := runCLI(t, []string{"--log-level", "loud", "config", "validate"}, env.configPath); err == nil {
		t.Fatal("expected invalid log level error")
	}
}

func TestReportError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   int
		output bool
	}{
		{name: "nil", err: nil, code: 0},
		{name: "plain", err: errors.New("boom"), code: 1, output: true},
		{name: "coded", err: withExitCode(2, fmt.Errorf("%w: down", batch.ErrListing)), code: 2, output: true},
		{name: "silent", err: withExitCode(4, nil), code: 4},
		{name: "cancelled", err: context.Canceled, code: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := reportError(&buf, tc.err); got != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, got)
			}
			if (buf.Len() > 0) != tc.output {
				t.Fatalf("unexpected output %q", buf.String())
			}
		})
	}
}

func TestDeleteLocalCopyHelpNamesDeletePolicy(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"run", "upload"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		flag := cmd.Flags().Lookup("delete-local-copy")
		if flag == nil {
			t.Fatalf("%s has no --delete-local-copy flag", name)
		}
		for _, want := range []string{"ss_upload.delete_policy", "on_success", "always"} {
			if !strings.Contains(flag.Usage, want) {
				t.Fatalf("%s --delete-local-copy usage %q does not mention %q", name, flag.Usage, want)
			}
		}
	}
}
