package transfer

// RollbackManager is a scoped cleanup-list resource: each pipeline step
// that can fail registers a cleanup closure before doing its work, and
// Run executes every registered closure in reverse order unless Success
// was called first. This generalizes atomicfile's "reverse already-
// renamed pairs on failure" pattern from temp-file renames to any
// failable step (delete temp file, delete stored file, revert a stat
// counter, ...).
type RollbackManager struct {
	cleanups []func()
	done     bool
}

// NewRollbackManager returns an empty, armed rollback manager.
func NewRollbackManager() *RollbackManager {
	return &RollbackManager{}
}

// Add registers a cleanup to run if Run is called before Success.
func (r *RollbackManager) Add(cleanup func()) {
	r.cleanups = append(r.cleanups, cleanup)
}

// Success disarms the manager: a subsequent Run becomes a no-op. Call
// this once the operation has fully committed.
func (r *RollbackManager) Success() {
	r.done = true
}

// Run executes every registered cleanup in reverse registration order,
// unless Success has already been called. Safe to call via defer
// unconditionally at the top of a pipeline step.
func (r *RollbackManager) Run() {
	if r.done {
		return
	}
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}
