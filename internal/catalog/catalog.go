package catalog

// PostCatalog defines the operations the rest of the app needs from the
// post mirror. Consumers should depend on this interface rather than the
// concrete *DB type.
type PostCatalog interface {
	Upsert(row Row) error
	Delete(file string) error
	Get(file string) (*Row, error)
	Count() (int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies PostCatalog at compile time.
var _ PostCatalog = (*DB)(nil)
