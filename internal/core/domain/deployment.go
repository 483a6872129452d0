package domain

import "time"

// Deployment records what was last materialized at an install path.
type Deployment struct {
	Module      string     `json:"module,omitzero"`
	InstallPath string     `json:"install_path,omitzero"`
	Kind        SourceKind `json:"kind,omitzero"`
	Location    string     `json:"location,omitzero"`
	Ref         string     `json:"ref,omitzero"`
	ContentHash string     `json:"content_hash,omitzero"`
	DeployedAt  time.Time  `json:"deployed_at,omitzero"`
}

// Matches reports whether the deployment was made from the given source.
func (d *Deployment) Matches(src Source) bool {
	if d == nil {
		return false
	}
	return d.Kind == src.Kind &&
		NewCacheKey(Source{Kind: d.Kind, Location: d.Location}) == NewCacheKey(src) &&
		d.Ref == src.Ref
}
