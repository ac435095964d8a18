package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csolorzano/importaciones/internal/models"
)

func factRow(line int, correlativo, date, country, description, cif string) models.RawRow {
	return models.RawRow{Line: line, Fields: map[string]string{
		models.ColCorrelativo: correlativo,
		models.ColDate:        date,
		models.ColPort:        "Puerto Cortes",
		models.ColCountry:     country,
		models.ColRegime:      "4000",
		models.ColUnit:        "KG",
		models.ColTariff:      "84713000",
		models.ColDescription: description,
		models.ColCIFValue:    cif,
	}}
}

var factHeader = []string{
	models.ColCorrelativo, models.ColDate, models.ColPort, models.ColCountry,
	models.ColRegime, models.ColUnit, models.ColTariff, models.ColDescription,
	models.ColCIFValue,
}

func buildLoader(t *testing.T, store *memStore, rows []models.RawRow) (*Loader, *Resolver) {
	t.Helper()
	resolver := NewResolver(store)
	require.NoError(t, resolver.BuildFromRows(factHeader, rows))
	return NewLoader(store, resolver), resolver
}

func TestLoader_ProcessRow(t *testing.T) {
	t.Run("Expect: a valid row to be staged and committed", func(t *testing.T) {
		store := newMemStore()
		row := factRow(2, "COR001", "15/03/2024", "China", "Laptops", "1200,50")
		loader, resolver := buildLoader(t, store, []models.RawRow{row})

		outcome, rejection, err := loader.ProcessRow(row)

		require.NoError(t, err)
		assert.Nil(t, rejection)
		assert.Equal(t, RowLoaded, outcome)
		assert.Equal(t, 1, loader.StagedCount())

		require.NoError(t, loader.Commit())
		require.Len(t, store.decls, 1)
		decl := store.decls[0]
		assert.Equal(t, "COR001", decl.Correlativo)
		assert.Equal(t, 1200.5, decl.CIFValueUSD)
		wantTariff, _ := resolver.Resolve(models.TariffCode, "84713000")
		assert.Equal(t, wantTariff, decl.TariffID)
	})

	t.Run("Expect: malformed numbers to default to zero, not reject", func(t *testing.T) {
		store := newMemStore()
		row := factRow(2, "COR001", "15/03/2024", "China", "Laptops", "n/a")
		loader, _ := buildLoader(t, store, []models.RawRow{row})

		outcome, _, err := loader.ProcessRow(row)

		require.NoError(t, err)
		assert.Equal(t, RowLoaded, outcome)
		require.NoError(t, loader.Commit())
		assert.Zero(t, store.decls[0].CIFValueUSD)
	})

	t.Run("Expect: an empty reference column to reject the row", func(t *testing.T) {
		store := newMemStore()
		row := factRow(2, "COR001", "15/03/2024", "", "Laptops", "100")
		loader, _ := buildLoader(t, store, []models.RawRow{row})

		outcome, rejection, err := loader.ProcessRow(row)

		require.NoError(t, err)
		assert.Equal(t, RowRejected, outcome)
		require.NotNil(t, rejection)
		assert.Equal(t, models.ReasonMissingField, rejection.Reason)
		assert.Equal(t, 2, rejection.Line)
	})

	t.Run("Expect: an empty date to reject the row", func(t *testing.T) {
		store := newMemStore()
		row := factRow(3, "COR001", "", "China", "Laptops", "100")
		loader, _ := buildLoader(t, store, []models.RawRow{row})

		outcome, rejection, err := loader.ProcessRow(row)

		require.NoError(t, err)
		assert.Equal(t, RowRejected, outcome)
		require.NotNil(t, rejection)
		assert.Equal(t, models.ReasonMissingField, rejection.Reason)
	})

	t.Run("Expect: an unparseable date to reject the row", func(t *testing.T) {
		store := newMemStore()
		row := factRow(2, "COR001", "31/02/2024", "China", "Laptops", "100")
		loader, _ := buildLoader(t, store, []models.RawRow{row})

		outcome, rejection, err := loader.ProcessRow(row)

		require.NoError(t, err)
		assert.Equal(t, RowRejected, outcome)
		require.NotNil(t, rejection)
		assert.Equal(t, models.ReasonBadDate, rejection.Reason)
	})

	t.Run("Expect: a reference unseen during resolution to reject the row", func(t *testing.T) {
		store := newMemStore()
		seen := factRow(2, "COR001", "15/03/2024", "China", "Laptops", "100")
		loader, _ := buildLoader(t, store, []models.RawRow{seen})

		outcome, rejection, err := loader.ProcessRow(
			factRow(3, "COR002", "15/03/2024", "Brasil", "Monitores", "200"))

		require.NoError(t, err)
		assert.Equal(t, RowRejected, outcome)
		require.NotNil(t, rejection)
		assert.Equal(t, models.ReasonUnresolvedReference, rejection.Reason)
	})

	t.Run("Expect: a repeated natural key within the batch to be skipped", func(t *testing.T) {
		store := newMemStore()
		row := factRow(2, "COR001", "15/03/2024", "China", "Laptops", "100")
		loader, _ := buildLoader(t, store, []models.RawRow{row})

		first, _, err := loader.ProcessRow(row)
		require.NoError(t, err)
		second, _, err := loader.ProcessRow(row)
		require.NoError(t, err)

		assert.Equal(t, RowLoaded, first)
		assert.Equal(t, RowDuplicate, second)
		assert.Equal(t, 1, loader.StagedCount())
	})

	t.Run("Expect: an already persisted natural key to be skipped", func(t *testing.T) {
		store := newMemStore()
		row := factRow(2, "COR001", "15/03/2024", "China", "Laptops", "100")
		loader, resolver := buildLoader(t, store, []models.RawRow{row})

		tariffID, ok := resolver.Resolve(models.TariffCode, "84713000")
		require.True(t, ok)
		require.NoError(t, store.InsertDeclarations([]*models.Declaration{{
			Correlativo: "COR001",
			TariffID:    tariffID,
			Description: "Laptops",
		}}))

		outcome, rejection, err := loader.ProcessRow(row)

		require.NoError(t, err)
		assert.Nil(t, rejection)
		assert.Equal(t, RowDuplicate, outcome)
		assert.Zero(t, loader.StagedCount())
	})
}
