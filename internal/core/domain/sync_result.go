package domain

// SyncStatus is the outcome of one module sync attempt.
type SyncStatus string

const (
	// StatusSynced means the install path now holds the desired revision.
	StatusSynced SyncStatus = "synced"
	// StatusFailed means the sync attempt failed; Err holds the cause.
	StatusFailed SyncStatus = "failed"
)

// SyncResult is the per-module outcome of a sync attempt.
type SyncResult struct {
	Module ModuleSpec
	Status SyncStatus
	Err    error
	// Changed is false when the install path already held the desired content.
	Changed bool
}

// Synced builds a successful result.
func Synced(spec ModuleSpec, changed bool) SyncResult {
	return SyncResult{Module: spec, Status: StatusSynced, Changed: changed}
}

// Failed builds a failed result.
func Failed(spec ModuleSpec, err error) SyncResult {
	return SyncResult{Module: spec, Status: StatusFailed, Err: err}
}

// OK reports whether the module synced.
func (r SyncResult) OK() bool {
	return r.Status == StatusSynced
}

// Kind classifies the failure, or returns "" for a synced module.
func (r SyncResult) Kind() ErrorKind {
	if r.OK() {
		return ""
	}
	return ClassifyError(r.Err)
}

// InstallReport aggregates the outcome of one install run.
type InstallReport struct {
	// Results holds one entry per module, in manifest order.
	Results []SyncResult
	// Purge is nil when purging was disabled.
	Purge *PurgeReport
}

// OK reports whether every module synced and purge had no failures.
func (r *InstallReport) OK() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return r.Purge == nil || len(r.Purge.Failures) == 0
}

// Failed returns the results of the modules that failed to sync.
func (r *InstallReport) Failed() []SyncResult {
	var failed []SyncResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// DesiredPaths returns the install paths owned by synced modules only.
func (r *InstallReport) DesiredPaths() []string {
	var paths []string
	for _, res := range r.Results {
		if res.OK() {
			paths = append(paths, res.Module.DesiredPaths()...)
		}
	}
	return paths
}
