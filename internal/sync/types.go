// Package sync implements the two-pass synchronizer (spec.md §4.5): Pass 1
// reconciles the filesystem against the store in deterministic order
// (deleted, moved, modified, new), writing every touched entity with
// checksum = NULL; Pass 2 resolves relations and flips the checksum back,
// marking the entity sync-complete (invariant I6).
package sync

// MoveDetection configures whether the scanner treats a same-checksum
// new/deleted pair as a rename (spec.md §4.5 step 3, "moved (optional)").
type MoveDetection int

const (
	// MoveDetectionChecksumOnly is the default (and the zero value, so a
	// Config built without setting this field still gets it): an
	// unambiguous checksum match between one new and one deleted path is
	// treated as a rename.
	MoveDetectionChecksumOnly MoveDetection = iota
	// MoveDetectionOff never synthesizes a move; a same-checksum rename is
	// reported as a plain delete + create, losing the entity's identity.
	MoveDetectionOff
)

// FileError pairs a path with the error encountered reconciling it. A
// file-level error never aborts the batch (spec.md §4.5 failure semantics);
// it's recorded here and the file is retried on the next sync.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}
