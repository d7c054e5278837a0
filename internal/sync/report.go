package sync

// Report is the outcome of one sync batch, returned to the caller (the
// watcher's driver loop, or a manual/CLI sync). Grounded on the teacher's
// syncAccumulator/ImportResult split: a mutable accumulator built up during
// the run, projected into an immutable result at the end.
type Report struct {
	Created      int
	Updated      int
	Deleted      int
	Moved        int
	Unchanged    int
	RelationsSet int
	Errors       []error
}

// accumulator is the mutable counterpart to Report, built up over a sync
// run and finalized once via result().
type accumulator struct {
	created      int
	updated      int
	deleted      int
	moved        int
	unchanged    int
	relationsSet int
	errors       []error
}

func newAccumulator() *accumulator {
	return &accumulator{errors: []error{}}
}

func (a *accumulator) addError(path string, err error) {
	if err == nil {
		return
	}
	a.errors = append(a.errors, &FileError{Path: path, Err: err})
}

func (a *accumulator) result() *Report {
	return &Report{
		Created:      a.created,
		Updated:      a.updated,
		Deleted:      a.deleted,
		Moved:        a.moved,
		Unchanged:    a.unchanged,
		RelationsSet: a.relationsSet,
		Errors:       a.errors,
	}
}
