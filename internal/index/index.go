package index

// ItemIndex is the storage side of Sync and Watch.
type ItemIndex interface {
	UpsertItem(it ItemRow, body string, links []string) error
	DeleteItem(uid string) error
	GetChecksum(uid string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Stats() (Stats, error)
	Close() error
}

var _ ItemIndex = (*DB)(nil)
