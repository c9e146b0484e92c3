package importer

import (
	"context"
	"sync"

	"photosphere/internal/logging"
)

// OutcomeKind is the terminal state of one file in a batch.
type OutcomeKind string

const (
	OutcomeImported           OutcomeKind = "imported"
	OutcomeDuplicate          OutcomeKind = "duplicate"
	OutcomeUnreadable         OutcomeKind = "unreadable"
	OutcomeUnsupported        OutcomeKind = "unsupported"
	OutcomeCorrupt            OutcomeKind = "corrupt"
	OutcomeConstraint         OutcomeKind = "constraint"
	OutcomeStorageUnavailable OutcomeKind = "storage_unavailable"
	// OutcomeCancelled marks files that were never processed because
	// the batch was cancelled before they were dispatched.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// IsError reports whether the kind counts as an error in the batch
// summary. Duplicates are skips and cancellations are neither.
func (k OutcomeKind) IsError() bool {
	switch k {
	case OutcomeUnreadable, OutcomeUnsupported, OutcomeCorrupt,
		OutcomeConstraint, OutcomeStorageUnavailable:
		return true
	}
	return false
}

// Outcome is the terminal result for one file.
type Outcome struct {
	Path    string      `json:"path"`
	Kind    OutcomeKind `json:"kind"`
	PhotoID int64       `json:"photoId,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// Progress is a monotonic completed/total pair.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Request describes one import batch: the files to catalog and tags to
// assign to every imported photo.
type Request struct {
	Paths  []string
	TagIDs []int64
}

// Hooks receive batch events. All hooks are optional and are called
// from pipeline goroutines; implementations must not block for long.
// Workers never touch shared presentation state, they only emit these
// immutable events.
type Hooks struct {
	OnProgress func(Progress)
	OnOutcome  func(Outcome)
	OnComplete func(Snapshot)
}

// Snapshot is a point-in-time view of a batch.
type Snapshot struct {
	ID        string    `json:"id"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Errored   int       `json:"errored"`
	Cancelled int       `json:"cancelled"`
	Done      bool      `json:"done"`
	Aborted   bool      `json:"aborted"`
	Outcomes  []Outcome `json:"outcomes,omitempty"`
}

// Batch is the handle for one in-flight import.
type Batch struct {
	id     string
	total  int
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	completed int
	imported  int
	skipped   int
	errored   int
	cancelled int
	aborted   bool
	outcomes  []Outcome

	hooks Hooks
}

// ID returns the batch identifier.
func (b *Batch) ID() string { return b.id }

// Cancel requests cooperative cancellation: files already being
// processed finish, undispatched files are marked cancelled.
func (b *Batch) Cancel() {
	logging.Info("Import batch %s: cancellation requested", b.id)
	b.cancel()
}

// Wait blocks until every dispatched file has a terminal outcome.
func (b *Batch) Wait() {
	<-b.done
}

// Done exposes the completion channel for select loops.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Snapshot returns the batch's current counters and outcomes.
func (b *Batch) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		ID:        b.id,
		Total:     b.total,
		Completed: b.completed,
		Imported:  b.imported,
		Skipped:   b.skipped,
		Errored:   b.errored,
		Cancelled: b.cancelled,
		Aborted:   b.aborted,
		Outcomes:  make([]Outcome, len(b.outcomes)),
	}
	copy(snap.Outcomes, b.outcomes)

	select {
	case <-b.done:
		snap.Done = true
	default:
	}
	return snap
}

// record stores a terminal outcome and emits progress events. Progress
// is monotonic: completed only ever grows, by one per terminal file.
func (b *Batch) record(outcome Outcome) {
	b.mu.Lock()
	b.completed++
	switch outcome.Kind {
	case OutcomeImported:
		b.imported++
	case OutcomeDuplicate:
		b.skipped++
	case OutcomeCancelled:
		b.cancelled++
	default:
		b.errored++
	}
	if outcome.Kind == OutcomeStorageUnavailable {
		b.aborted = true
	}
	b.outcomes = append(b.outcomes, outcome)
	progress := Progress{Completed: b.completed, Total: b.total}
	b.mu.Unlock()

	if b.hooks.OnOutcome != nil {
		b.hooks.OnOutcome(outcome)
	}
	if b.hooks.OnProgress != nil {
		b.hooks.OnProgress(progress)
	}
}
