package domain

// Task is one filename/URL pair taken from the input list.
// Tasks are immutable; identity is positional, duplicate filenames are
// tolerated and processed independently.
type Task struct {
	Filename string
	URL      string
}

// Folder is a destination subfolder under the download root.
type Folder string

const (
	FolderEmbeddings Folder = "embeddings"
	FolderLoras      Folder = "loras"
	FolderModels     Folder = "models"
)

// Folders lists every destination folder, in the order the existence
// check scans them.
func Folders() []Folder {
	return []Folder{FolderEmbeddings, FolderLoras, FolderModels}
}

// Outcome is the terminal result of one attempt at one task.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FailureKind classifies a failed attempt.
type FailureKind string

const (
	FailureInvalidFilename FailureKind = "invalid_filename"
	FailureHTTPStatus      FailureKind = "http_status"
	FailureTimeout         FailureKind = "timeout"
	FailureTransport       FailureKind = "transport"
	FailureIO              FailureKind = "io"
)

// AttemptResult is the per-task outcome of a single attempt. Failed tasks
// re-enter the next attempt's pending set; Success and Skipped remove the
// task permanently.
type AttemptResult struct {
	Task           Task
	Outcome        Outcome
	SanitizedName  string
	Folder         Folder
	BytesRead      int64
	AlreadyPresent bool
	Kind           FailureKind
	Reason         string
}

// Succeeded builds a Success result for a freshly downloaded file.
func Succeeded(task Task, name string, folder Folder, bytes int64) AttemptResult {
	return AttemptResult{
		Task:          task,
		Outcome:       OutcomeSuccess,
		SanitizedName: name,
		Folder:        folder,
		BytesRead:     bytes,
	}
}

// AlreadyExists builds a Success result for a file found on disk before
// any network call.
func AlreadyExists(task Task, name string) AttemptResult {
	return AttemptResult{
		Task:           task,
		Outcome:        OutcomeSuccess,
		SanitizedName:  name,
		AlreadyPresent: true,
	}
}

// Skipped builds a Skipped result. Skips are not failures and never
// re-enter the pending set.
func Skipped(task Task, name, reason string) AttemptResult {
	return AttemptResult{
		Task:          task,
		Outcome:       OutcomeSkipped,
		SanitizedName: name,
		Reason:        reason,
	}
}

// Failed builds a Failed result with its classification.
func Failed(task Task, name string, kind FailureKind, reason string) AttemptResult {
	return AttemptResult{
		Task:          task,
		Outcome:       OutcomeFailed,
		SanitizedName: name,
		Kind:          kind,
		Reason:        reason,
	}
}

// Report is the final state of a run across all attempts.
type Report struct {
	Downloaded     int
	AlreadyPresent int
	Skipped        int
	Attempts       int
	// Failures holds the still-failing results after the last attempt,
	// one per task.
	Failures []AttemptResult
}

// Resolved reports whether every task ended as Success or Skipped.
func (r *Report) Resolved() bool {
	return len(r.Failures) == 0
}
