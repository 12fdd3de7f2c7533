package model

// Row is a stored row. The payload is an opaque blob; any schema lives
// entirely with the caller.
type Row struct {
	ID      string
	Tenant  string
	Payload string
}

// ChangeLogEntry records the row ids touched by a single write, stamped with
// the version minted for that write. Entries are append-only and ordered by
// version ascending within a tenant+table.
type ChangeLogEntry struct {
	Version int64
	Tenant  string
	IDs     []string
}

// SyncRow is a row as returned to clients. TS is the version at which the row
// last changed; it is set only on incremental reads.
type SyncRow struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	TS   int64  `json:"ts,omitempty"`
}

// FetchResult is the envelope returned by fetch operations. Version is the
// high-water version of the table at read time and never regresses below the
// baseline the client supplied.
type FetchResult struct {
	Rows    []SyncRow `json:"rows"`
	Version int64     `json:"version"`
}

// WriteResult is the envelope returned by upsert and delete operations.
type WriteResult struct {
	Version int64 `json:"version"`
}
