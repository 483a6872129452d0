package domain

// PurgeRequest describes one reconciliation pass.
type PurgeRequest struct {
	// ManagedDirs are the roots whose contents may be deleted. They are never deleted themselves.
	ManagedDirs []string
	// Desired are paths that must survive, with their whole subtree.
	Desired []string
	// Exclusions are glob patterns protecting matching paths.
	Exclusions []string
	// DryRun computes the stale set without deleting anything.
	DryRun bool
}

// PurgeFailure records a path that could not be read or removed.
type PurgeFailure struct {
	Path string
	Err  error
}

// PurgeReport lists what a purge pass did.
type PurgeReport struct {
	// Removed lists deleted paths, children before parents. In dry-run mode
	// it lists the paths that would be deleted.
	Removed []string
	// Excluded lists paths kept because they matched an exclusion rule.
	Excluded []string
	Failures []PurgeFailure
}

// OK reports whether the pass completed without failures.
func (r *PurgeReport) OK() bool {
	return len(r.Failures) == 0
}
