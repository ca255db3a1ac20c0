package export

import (
	"errors"

	"github.com/Sternrassler/cc-export/pkg/artifact"
)

// ErrEmptyPage is returned when a listing page carries no items.
var ErrEmptyPage = errors.New("listing page has no items")

// Tally counts item outcomes of one run.
type Tally struct {
	Downloaded int64 `json:"downloaded"`
	Failed     int64 `json:"failed"`
}

// Add folds another tally into t.
func (t *Tally) Add(other Tally) {
	t.Downloaded += other.Downloaded
	t.Failed += other.Failed
}

// Total returns the number of items processed.
func (t Tally) Total() int64 {
	return t.Downloaded + t.Failed
}

func (t *Tally) record(o artifact.Outcome) {
	if o.OK() {
		t.Downloaded++
		return
	}
	t.Failed++
}
