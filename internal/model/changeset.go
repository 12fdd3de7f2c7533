package model

// ChangeSet is the reconstructed "what changed since baseline" envelope. It is
// computed lazily per (tenant, table, baseline) and cached so repeated pulls
// at the same baseline (page 0, then page 1) do not re-scan the log.
type ChangeSet struct {
	// LatestVersion is max(baseline, every entry version seen). It never
	// regresses below the baseline even when nothing changed.
	LatestVersion int64 `json:"latest_version"`

	// AllIDs holds every changed id exactly once, in first-encounter order
	// across the filtered, version-ascending entries.
	AllIDs []string `json:"all_ids"`

	// IDVersions maps each changed id to the version at which it last changed.
	IDVersions map[string]int64 `json:"id_versions"`

	// Entries is the filtered log slice: each id attributed to exactly one
	// entry, the one carrying its most recent version.
	Entries []ChangeLogEntry `json:"entries"`
}
