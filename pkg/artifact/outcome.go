package artifact

import (
	"errors"
	"fmt"
)

// Status is the result of persisting one item.
type Status string

const (
	// StatusWritten means the artifact is on disk.
	StatusWritten Status = "written"

	// StatusFailed means the item was counted as a download error.
	StatusFailed Status = "failed"
)

// Reason classifies a failed outcome.
type Reason string

const (
	ReasonFetchFailed     Reason = "fetch_failed"
	ReasonNoContentSource Reason = "no_content_source"
	ReasonRenderFailed    Reason = "render_failed"
	ReasonWriteFailed     Reason = "write_failed"
	ReasonInvalidRecord   Reason = "invalid_record"
)

// ErrNoContentSource is reported for campaigns without a permalink.
var ErrNoContentSource = errors.New("no content source")

// Outcome is what a Writer (or an export variant) reports for one item.
type Outcome struct {
	Status Status
	Path   string
	Reason Reason
	Err    error
}

// Written returns a successful outcome for path.
func Written(path string) Outcome {
	return Outcome{Status: StatusWritten, Path: path}
}

// Failed returns a failed outcome.
func Failed(reason Reason, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}

// OK reports whether the artifact was written.
func (o Outcome) OK() bool {
	return o.Status == StatusWritten
}

// String renders the outcome for diagnostics.
func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("written %s", o.Path)
	}
	if o.Err != nil {
		return fmt.Sprintf("failed (%s): %v", o.Reason, o.Err)
	}
	return fmt.Sprintf("failed (%s)", o.Reason)
}
