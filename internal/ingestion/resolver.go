package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/csolorzano/importaciones/internal/database"
	"github.com/csolorzano/importaciones/internal/models"
)

// Resolver deduplicates reference entities and hands out their surrogate ids.
// The cache is seeded from the store and extended with one batch insert per
// category per file, so resolving is order-independent and a re-run never
// creates duplicates.
type Resolver struct {
	store database.Store
	cache map[models.ReferenceKind]map[string]int64
}

func NewResolver(store database.Store) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[models.ReferenceKind]map[string]int64),
	}
}

// MissingColumnsError reports a header that cannot feed master-data loading.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s (available columns: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// BuildFromRows loads master data for a whole file: it collects the distinct
// natural keys per category, diffs them against what is already persisted and
// inserts the difference. Reference rows commit here, before the fact pass;
// they are idempotently reusable if a later stage aborts.
func (r *Resolver) BuildFromRows(header []string, rows []models.RawRow) error {
	have := make(map[string]bool, len(header))
	for _, col := range header {
		have[col] = true
	}
	var missing []string
	for _, col := range models.RequiredColumns() {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing, Available: header}
	}

	for _, kind := range models.ReferenceKinds() {
		distinct := make(map[string]bool)
		for _, row := range rows {
			if key := row.Get(string(kind)); key != "" {
				distinct[key] = true
			}
		}

		existing, err := r.store.ReferenceIDs(kind)
		if err != nil {
			return err
		}

		var newKeys []string
		for key := range distinct {
			if _, ok := existing[key]; !ok {
				newKeys = append(newKeys, key)
			}
		}
		sort.Strings(newKeys)

		inserted, err := r.store.InsertReferences(kind, newKeys)
		if err != nil {
			return err
		}

		ids := make(map[string]int64, len(existing)+len(inserted))
		for key, id := range existing {
			ids[key] = id
		}
		for key, id := range inserted {
			ids[key] = id
		}
		r.cache[kind] = ids
	}

	return nil
}

// Resolve returns the surrogate id for a natural key. Lookup is an exact
// match on the key as received; any normalization happened upstream.
func (r *Resolver) Resolve(kind models.ReferenceKind, key string) (int64, bool) {
	id, ok := r.cache[kind][key]
	return id, ok
}

// CachedCount reports how many keys a category currently resolves, for logs.
func (r *Resolver) CachedCount(kind models.ReferenceKind) int {
	return len(r.cache[kind])
}
