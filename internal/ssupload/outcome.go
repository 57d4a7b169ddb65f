package ssupload

// Outcome classifies how an upload attempt ended.
type Outcome int

const (
	Uploaded Outcome = iota
	AlreadyExists
	StagingCopyFailed
	SubmissionRejected
	SubmissionFailed
	PollFailed
	PollTimedOut
)

var outcomeNames = map[Outcome]string{
	Uploaded:           "uploaded",
	AlreadyExists:      "already_exists",
	StagingCopyFailed:  "staging_copy_failed",
	SubmissionRejected: "submission_rejected",
	SubmissionFailed:   "submission_failed",
	PollFailed:         "poll_failed",
	PollTimedOut:       "poll_timed_out",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// ExitCode maps an outcome onto the standalone upload command's exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case Uploaded:
		return 0
	case AlreadyExists:
		return 1
	case StagingCopyFailed:
		return 2
	case SubmissionRejected, SubmissionFailed:
		return 3
	default:
		return 4
	}
}

// Succeeded reports whether the Storage Service confirmed storage.
func (o Outcome) Succeeded() bool {
	return o == Uploaded
}
