package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csolorzano/importaciones/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.CreateTables())
	return store
}

// seedRefs inserts one key per category and returns the ids keyed by kind.
func seedRefs(t *testing.T, store *SQLiteStore) map[models.ReferenceKind]int64 {
	t.Helper()
	keys := map[models.ReferenceKind]string{
		models.PortOfEntry:     "Puerto Cortes",
		models.Country:         "China",
		models.RegimeType:      "4000",
		models.MeasurementUnit: "KG",
		models.TariffCode:      "84713000",
	}
	ids := make(map[models.ReferenceKind]int64)
	for kind, key := range keys {
		inserted, err := store.InsertReferences(kind, []string{key})
		require.NoError(t, err)
		ids[kind] = inserted[key]
	}
	return ids
}

func makeDecl(ids map[models.ReferenceKind]int64, correlativo, description string, date time.Time, cif float64) *models.Declaration {
	return &models.Declaration{
		Correlativo:     correlativo,
		DeclarationDate: date,
		Description:     description,
		CIFValueUSD:     cif,
		PortID:          ids[models.PortOfEntry],
		CountryID:       ids[models.Country],
		RegimeID:        ids[models.RegimeType],
		UnitID:          ids[models.MeasurementUnit],
		TariffID:        ids[models.TariffCode],
	}
}

func TestSQLiteStore_References(t *testing.T) {
	t.Run("Expect: inserted keys to resolve to stable ids", func(t *testing.T) {
		store := newTestStore(t)

		first, err := store.InsertReferences(models.Country, []string{"China", "Mexico"})
		require.NoError(t, err)
		assert.Len(t, first, 2)
		assert.NotEqual(t, first["China"], first["Mexico"])

		// Re-inserting an existing key keeps its id.
		second, err := store.InsertReferences(models.Country, []string{"Mexico", "Brasil"})
		require.NoError(t, err)
		assert.Equal(t, first["Mexico"], second["Mexico"])

		all, err := store.ReferenceIDs(models.Country)
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, first["China"], all["China"])
	})

	t.Run("Expect: no work for an empty key list", func(t *testing.T) {
		store := newTestStore(t)

		inserted, err := store.InsertReferences(models.TariffCode, nil)

		require.NoError(t, err)
		assert.Empty(t, inserted)
	})

	t.Run("Expect: an unknown category to be rejected", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.InsertReferences(models.ReferenceKind("bogus"), []string{"x"})

		assert.Error(t, err)
	})
}

func TestSQLiteStore_Declarations(t *testing.T) {
	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Expect: committed declarations to round-trip through the view", func(t *testing.T) {
		store := newTestStore(t)
		ids := seedRefs(t, store)

		require.NoError(t, store.InsertDeclarations([]*models.Declaration{
			makeDecl(ids, "COR001", "Laptops", date, 1200.5),
			makeDecl(ids, "COR002", "Monitores", date.AddDate(0, 1, 0), 800),
		}))

		views, err := store.Declarations(10, 0)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "COR001", views[0].Correlativo)
		assert.Equal(t, "Puerto Cortes", views[0].PortName)
		assert.Equal(t, "China", views[0].CountryName)
		assert.Equal(t, "84713000", views[0].TariffCode)
		assert.Equal(t, date, views[0].DeclarationDate)
		assert.Equal(t, 1200.5, views[0].CIFValueUSD)

		paged, err := store.Declarations(1, 1)
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, "COR002", paged[0].Correlativo)
	})

	t.Run("Expect: the natural key check to match persisted rows", func(t *testing.T) {
		store := newTestStore(t)
		ids := seedRefs(t, store)
		require.NoError(t, store.InsertDeclarations([]*models.Declaration{
			makeDecl(ids, "COR001", "Laptops", date, 100),
		}))

		exists, err := store.DeclarationExists("COR001", ids[models.TariffCode], "Laptops")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.DeclarationExists("COR001", ids[models.TariffCode], "Monitores")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Expect: lookups by correlativo and tariff code", func(t *testing.T) {
		store := newTestStore(t)
		ids := seedRefs(t, store)
		require.NoError(t, store.InsertDeclarations([]*models.Declaration{
			makeDecl(ids, "COR001", "Laptops", date, 100),
			makeDecl(ids, "COR001", "Monitores", date, 200),
			makeDecl(ids, "COR002", "Teclados", date, 300),
		}))

		byCorr, err := store.DeclarationsByCorrelativo("COR001")
		require.NoError(t, err)
		assert.Len(t, byCorr, 2)

		byCode, err := store.DeclarationsByTariffCode("84713000", 10, 0)
		require.NoError(t, err)
		assert.Len(t, byCode, 3)

		none, err := store.DeclarationsByCorrelativo("NOPE")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSQLiteStore_Analytics(t *testing.T) {
	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Expect: stats to aggregate totals", func(t *testing.T) {
		store := newTestStore(t)
		ids := seedRefs(t, store)
		require.NoError(t, store.InsertDeclarations([]*models.Declaration{
			makeDecl(ids, "COR001", "Laptops", date, 100),
			makeDecl(ids, "COR002", "Monitores", date, 200),
		}))

		stats, err := store.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalDeclarations)
		assert.Equal(t, int64(1), stats.TotalCountries)
		assert.Equal(t, int64(1), stats.TotalTariffCodes)
		assert.InDelta(t, 300.0, stats.TotalCIFValueUSD, 1e-9)
	})

	t.Run("Expect: stats on an empty database to be zero", func(t *testing.T) {
		store := newTestStore(t)

		stats, err := store.Stats()
		require.NoError(t, err)
		assert.Zero(t, stats.TotalDeclarations)
		assert.Zero(t, stats.TotalCIFValueUSD)
	})

	t.Run("Expect: the top country per tariff code", func(t *testing.T) {
		store := newTestStore(t)
		ids := seedRefs(t, store)
		countries, err := store.InsertReferences(models.Country, []string{"Mexico"})
		require.NoError(t, err)
		codes, err := store.InsertReferences(models.TariffCode, []string{"85000000"})
		require.NoError(t, err)

		d1 := makeDecl(ids, "COR001", "Laptops", date, 1000)
		d2 := makeDecl(ids, "COR002", "Monitores", date, 400)
		d2.CountryID = countries["Mexico"]
		d3 := makeDecl(ids, "COR003", "Cables", date, 700)
		d3.TariffID = codes["85000000"]
		require.NoError(t, store.InsertDeclarations([]*models.Declaration{d1, d2, d3}))

		ranking, err := store.TopCountriesByTariff(1)
		require.NoError(t, err)
		require.Len(t, ranking, 2)
		assert.Equal(t, "84713000", ranking[0].TariffCode)
		assert.Equal(t, "China", ranking[0].CountryName)
		assert.InDelta(t, 1000.0, ranking[0].TotalCIF, 1e-9)
		assert.Equal(t, "85000000", ranking[1].TariffCode)
		assert.Equal(t, "China", ranking[1].CountryName)
	})

	t.Run("Expect: monthly totals grouped and filtered by date", func(t *testing.T) {
		store := newTestStore(t)
		ids := seedRefs(t, store)
		require.NoError(t, store.InsertDeclarations([]*models.Declaration{
			makeDecl(ids, "COR001", "Laptops", date, 100),
			makeDecl(ids, "COR002", "Monitores", date, 200),
			makeDecl(ids, "COR003", "Teclados", date.AddDate(0, 1, 0), 300),
			makeDecl(ids, "COR004", "Viejo", time.Date(2022, time.January, 5, 0, 0, 0, 0, time.UTC), 999),
		}))

		months, err := store.MonthlyTotals(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, months, 2)
		assert.Equal(t, 2024, months[0].Year)
		assert.Equal(t, 3, months[0].Month)
		assert.Equal(t, int64(2), months[0].Count)
		assert.InDelta(t, 300.0, months[0].TotalCIF, 1e-9)
		assert.Equal(t, 4, months[1].Month)
	})
}

func TestSQLiteStore_LoadRecords(t *testing.T) {
	store := newTestStore(t)

	id, err := store.InsertLoadRecord(&models.LoadRecord{
		FileName:    "pr.csv",
		Checksum:    "abc123",
		ProcessedAt: time.Now().UTC(),
		Status:      LOAD_STATUS_PROCESSING,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	result := &models.LoadResult{RowsRead: 10, RecordsLoaded: 8, Duplicates: 1, Rejected: 1}
	require.NoError(t, store.UpdateLoadRecord(id, LOAD_STATUS_DONE_WITH_ERRORS, result))

	var status string
	var loaded int
	require.NoError(t, store.db.QueryRow(
		`SELECT status, records_loaded FROM load_records WHERE id = ?`, id).Scan(&status, &loaded))
	assert.Equal(t, LOAD_STATUS_DONE_WITH_ERRORS, status)
	assert.Equal(t, 8, loaded)
}

func TestOpen(t *testing.T) {
	t.Run("Expect: sqlite scheme to open the file backend", func(t *testing.T) {
		store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "x.db"))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("Expect: a bare path to be treated as sqlite", func(t *testing.T) {
		store, err := Open(filepath.Join(t.TempDir(), "y.db"))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("Expect: an empty URL to be rejected", func(t *testing.T) {
		_, err := Open("")
		assert.Error(t, err)
	})
}
