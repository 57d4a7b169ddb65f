package asyncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dipbatch/internal/logging"
)

const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 10 * time.Second
)

var (
	// ErrJobFailed marks jobs the service reported as completed with an error.
	ErrJobFailed = errors.New("async job failed")
	// ErrSubmit marks failures to obtain a job handle.
	ErrSubmit = errors.New("submit async job")
)

// Status is the service's answer to a status check.
type Status struct {
	Completed bool            `json:"completed"`
	WasError  bool            `json:"was_error"`
	Error     json.RawMessage `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// ErrorMessage renders the error field for logs, unquoting plain strings.
func (s Status) ErrorMessage() string {
	return rawText(s.Error)
}

// JobError reports a job that finished unsuccessfully.
type JobError struct {
	Handle  string
	Message string
	Payload json.RawMessage
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("async job %s completed with an error", e.Handle)
	}
	return fmt.Sprintf("async job %s completed with an error: %s", e.Handle, e.Message)
}

func (e *JobError) Unwrap() error { return ErrJobFailed }

// Result describes a job that either completed successfully or ran out of
// attempts. Attempts counts status checks performed.
type Result struct {
	Payload  json.RawMessage
	TimedOut bool
	Attempts int
}

// Submitter starts a job and returns its handle.
type Submitter func(ctx context.Context) (string, error)

// Checker fetches the current status for handle.
type Checker func(ctx context.Context, handle string) (Status, error)

// Poller checks a job at most MaxAttempts times, waiting Interval between
// checks. Sleep is replaceable for tests; it must return early when ctx ends.
type Poller struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *slog.Logger
}

// SubmitAndAwait submits a job and waits for it. Submission failures are
// wrapped with ErrSubmit.
func (p Poller) SubmitAndAwait(ctx context.Context, submit Submitter, check Checker) (Result, error) {
	handle, err := submit(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	return p.Await(ctx, handle, check)
}

// Await polls handle until it completes or attempts are exhausted.
func (p Poller) Await(ctx context.Context, handle string, check Checker) (Result, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := check(ctx, handle)
		if err != nil {
			return Result{Attempts: attempt}, fmt.Errorf("check async job %s: %w", handle, err)
		}
		if status.Completed {
			if status.WasError {
				return Result{Attempts: attempt}, &JobError{Handle: handle, Message: status.ErrorMessage(), Payload: status.Result}
			}
			return Result{Payload: status.Result, Attempts: attempt}, nil
		}
		logger.Debug("async job still running",
			logging.String("job", handle),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
		)
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return Result{Attempts: attempt}, err
		}
	}
	return Result{TimedOut: true, Attempts: attempts}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func rawText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return trimmed
}
