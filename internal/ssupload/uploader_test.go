package ssupload

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dipbatch/internal/asyncjob"
	"dipbatch/internal/config"
	"dipbatch/internal/logging"
	"dipbatch/internal/storageservice"
	"dipbatch/internal/testsupport"
)

type fakeAPI struct {
	submitted []storageservice.PackageRequest
	submitErr error
	jobURL    string
	statuses  []asyncjob.Status
	statusErr error
	checks    int
}

func (f *fakeAPI) SubmitPackage(_ context.Context, pkg storageservice.PackageRequest) (string, error) {
	f.submitted = append(f.submitted, pkg)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobURL, nil
}

func (f *fakeAPI) JobStatus(_ context.Context, jobURL string) (asyncjob.Status, error) {
	f.checks++
	if f.statusErr != nil {
		return asyncjob.Status{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return asyncjob.Status{}, nil
	}
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return status, nil
}

type fixture struct {
	shared string
	dip    string
	api    *fakeAPI
	sleeps int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dip := filepath.Join(root, "output", "dip-for-aip")
	testsupport.WriteFile(t, filepath.Join(dip, "METS.xml"), 5)
	testsupport.WriteFile(t, filepath.Join(dip, "objects", "file.jpg"), 3)
	return &fixture{
		shared: filepath.Join(root, "shared"),
		dip:    dip,
		api:    &fakeAPI{jobURL: "http://ss/api/v2/async/1/"},
	}
}

func (f *fixture) uploader(deleteLocal bool, policy string) *Uploader {
	opts := Options{
		PipelineUUID:       "pipe",
		CPLocationUUID:     "cp",
		DSLocationUUID:     "ds",
		SharedDirectory:    f.shared,
		DeleteLocalCopy:    deleteLocal,
		DeletePolicy:       policy,
		CleanFailedStaging: true,
	}
	poller := asyncjob.Poller{
		MaxAttempts: 2,
		Interval:    time.Second,
		Sleep: func(context.Context, time.Duration) error {
			f.sleeps++
			return nil
		},
	}
	u := New(f.api, opts, poller, logging.NewNop())
	u.newID = func() string { return "remote-id" }
	return u
}

func (f *fixture) stagingPath() string {
	return filepath.Join(f.shared, "watchedDirectories", "uploadDIP", "dip-for-aip")
}

func assertExists(t *testing.T, path string, want bool) {
	t.Helper()
	_, err := os.Stat(path)
	if got := err == nil; got != want {
		t.Fatalf("exists(%s) = %v, want %v (err=%v)", path, got, want, err)
	}
}

func TestUploadSuccessRegistersPackageAndCleansUp(t *testing.T) {
	f := newFixture(t)
	f.api.statuses = []asyncjob.Status{{Completed: true, Result: json.RawMessage(`{"uuid":"stored"}`)}}

	report, err := f.uploader(true, config.DeleteOnSuccess).Upload(context.Background(), f.dip, "aip-1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if report.Outcome != Uploaded || report.Outcome.ExitCode() != 0 {
		t.Fatalf("outcome = %v (err=%v)", report.Outcome, report.Err)
	}
	if len(f.api.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(f.api.submitted))
	}
	got := f.api.submitted[0]
	want := storageservice.PackageRequest{
		UUID:               "remote-id",
		OriginPipeline:     "/api/v2/pipeline/pipe/",
		OriginLocation:     "/api/v2/location/cp/",
		OriginPath:         "watchedDirectories/uploadDIP/dip-for-aip/",
		CurrentLocation:    "/api/v2/location/ds/",
		CurrentPath:        "dip-for-aip",
		PackageType:        "DIP",
		AIPSubtype:         "Archival Information Package",
		Size:               8,
		RelatedPackageUUID: "aip-1",
	}
	if got.UUID != want.UUID || got.OriginPipeline != want.OriginPipeline || got.OriginLocation != want.OriginLocation ||
		got.OriginPath != want.OriginPath || got.CurrentLocation != want.CurrentLocation || got.CurrentPath != want.CurrentPath ||
		got.PackageType != want.PackageType || got.AIPSubtype != want.AIPSubtype || got.Size != want.Size ||
		got.RelatedPackageUUID != want.RelatedPackageUUID {
		t.Fatalf("unexpected package request:\n got %+v\nwant %+v", got, want)
	}
	if got.Events == nil || got.Agents == nil || len(got.Events) != 0 || len(got.Agents) != 0 {
		t.Fatalf("expected empty events and agents, got %v / %v", got.Events, got.Agents)
	}
	if string(report.Payload) != `{"uuid":"stored"}` {
		t.Fatalf("unexpected payload %s", report.Payload)
	}
	assertExists(t, f.stagingPath(), false)
	assertExists(t, f.dip, false)
	if !report.SourceRemoved {
		t.Fatal("expected SourceRemoved")
	}
}

func TestUploadAlreadyExistsLeavesSourceUntouched(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.stagingPath(), 0o755); err != nil {
		t.Fatal(err)
	}

	report, err := f.uploader(true, config.DeleteAlways).Upload(context.Background(), f.dip, "aip-1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if report.Outcome != AlreadyExists || report.Outcome.ExitCode() != 1 {
		t.Fatalf("outcome = %v", report.Outcome)
	}
	if len(f.api.submitted) != 0 {
		t.Fatal("expected no submission")
	}
	assertExists(t, f.dip, true)
	assertExists(t, filepath.Join(f.dip, "METS.xml"), true)
	assertExists(t, f.stagingPath(), true)
}

func TestUploadCopyFailureHandlesPartialStaging(t *testing.T) {
	cases := []struct {
		name      string
		clean     bool
		wantStage bool
	}{
		{"clean removes partial copy", true, false},
		{"keep leaves partial copy", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			// Entries are copied in name order, so METS.xml and objects/
			// land in staging before the dangling link stops the copy.
			if err := os.Symlink(filepath.Join(filepath.Dir(f.dip), "gone"), filepath.Join(f.dip, "zz-broken")); err != nil {
				t.Fatal(err)
			}

			u := f.uploader(true, config.DeleteAlways)
			u.opts.CleanFailedStaging = tc.clean
			report, err := u.Upload(context.Background(), f.dip, "aip-1")
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if report.Outcome != StagingCopyFailed || report.Outcome.ExitCode() != 2 {
				t.Fatalf("outcome = %v", report.Outcome)
			}
			if report.Err == nil {
				t.Fatal("expected cause to be recorded")
			}
			if len(f.api.submitted) != 0 {
				t.Fatal("expected no submission after copy failure")
			}

			assertExists(t, f.stagingPath(), tc.wantStage)
			if tc.wantStage {
				assertExists(t, filepath.Join(f.stagingPath(), "METS.xml"), true)
				assertExists(t, filepath.Join(f.stagingPath(), "objects", "file.jpg"), true)
			}
			assertExists(t, filepath.Join(f.dip, "METS.xml"), true)
			assertExists(t, filepath.Join(f.dip, "objects", "file.jpg"), true)
		})
	}
}

func TestUploadCopyFailureWithMissingSource(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(filepath.Dir(f.dip), "dip-for-aip-missing")

	report, err := f.uploader(true, config.DeleteAlways).Upload(context.Background(), missing, "aip-1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if report.Outcome != StagingCopyFailed {
		t.Fatalf("outcome = %v", report.Outcome)
	}
	assertExists(t, filepath.Join(f.shared, "watchedDirectories", "uploadDIP", "dip-for-aip-missing"), false)
	if len(f.api.submitted) != 0 {
		t.Fatal("expected no submission after copy failure")
	}
}

func TestUploadSubmissionOutcomes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{"rejected", &storageservice.StatusError{Method: "POST", StatusCode: 500}, SubmissionRejected},
		{"transport", errors.New("connection refused"), SubmissionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.api.submitErr = tc.err

			report, err := f.uploader(true, config.DeleteOnSuccess).Upload(context.Background(), f.dip, "aip-1")
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if report.Outcome != tc.want || report.Outcome.ExitCode() != 3 {
				t.Fatalf("outcome = %v, want %v", report.Outcome, tc.want)
			}
			if f.api.checks != 0 {
				t.Fatal("expected no polling after failed submission")
			}
			assertExists(t, f.stagingPath(), false)
			assertExists(t, f.dip, true)
		})
	}
}

func TestUploadPollErrorStillCleansUpPerPolicy(t *testing.T) {
	failed := []asyncjob.Status{{Completed: true, WasError: true, Error: json.RawMessage(`"boom"`)}}

	t.Run("always deletes source", func(t *testing.T) {
		f := newFixture(t)
		f.api.statuses = failed
		report, err := f.uploader(true, config.DeleteAlways).Upload(context.Background(), f.dip, "aip-1")
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if report.Outcome != PollFailed || report.Outcome.ExitCode() != 4 {
			t.Fatalf("outcome = %v", report.Outcome)
		}
		if !errors.Is(report.Err, asyncjob.ErrJobFailed) {
			t.Fatalf("expected job failure cause, got %v", report.Err)
		}
		assertExists(t, f.stagingPath(), false)
		assertExists(t, f.dip, false)
	})

	t.Run("on_success keeps source", func(t *testing.T) {
		f := newFixture(t)
		f.api.statuses = failed
		report, err := f.uploader(true, config.DeleteOnSuccess).Upload(context.Background(), f.dip, "aip-1")
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if report.Outcome != PollFailed {
			t.Fatalf("outcome = %v", report.Outcome)
		}
		assertExists(t, f.stagingPath(), false)
		assertExists(t, f.dip, true)
		if report.SourceRemoved {
			t.Fatal("expected source to be kept")
		}
	})
}

func TestUploadPollTimeout(t *testing.T) {
	f := newFixture(t)
	f.api.statuses = []asyncjob.Status{{Completed: false}}

	report, err := f.uploader(false, config.DeleteOnSuccess).Upload(context.Background(), f.dip, "aip-1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if report.Outcome != PollTimedOut || report.Outcome.ExitCode() != 4 {
		t.Fatalf("outcome = %v", report.Outcome)
	}
	if f.api.checks != 2 || f.sleeps != 1 {
		t.Fatalf("expected 2 checks and 1 sleep, got %d and %d", f.api.checks, f.sleeps)
	}
	assertExists(t, f.stagingPath(), false)
	assertExists(t, f.dip, true)
}

func TestUploadRejectsEmptyPath(t *testing.T) {
	f := newFixture(t)
	if _, err := f.uploader(false, "").Upload(context.Background(), "  ", "aip-1"); err == nil {
		t.Fatal("expected error for empty dip path")
	}
}

func TestOutcomeExitCodes(t *testing.T) {
	want := map[Outcome]int{
		Uploaded: 0, AlreadyExists: 1, StagingCopyFailed: 2,
		SubmissionRejected: 3, SubmissionFailed: 3, PollFailed: 4, PollTimedOut: 4,
	}
	for outcome, code := range want {
		if got := outcome.ExitCode(); got != code {
			t.Fatalf("%v.ExitCode() = %d, want %d", outcome, got, code)
		}
	}
}
