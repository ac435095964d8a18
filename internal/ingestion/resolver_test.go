package ingestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csolorzano/importaciones/internal/models"
)

func TestResolver_BuildFromRows(t *testing.T) {
	t.Run("Expect: missing header columns to be reported with the available ones", func(t *testing.T) {
		resolver := NewResolver(newMemStore())
		header := []string{models.ColCorrelativo, models.ColPort}

		err := resolver.BuildFromRows(header, nil)

		var mce *MissingColumnsError
		require.True(t, errors.As(err, &mce))
		assert.Equal(t, []string{models.ColCountry, models.ColRegime, models.ColUnit, models.ColTariff}, mce.Missing)
		assert.Equal(t, header, mce.Available)
		assert.Contains(t, err.Error(), "missing required columns")
		assert.Contains(t, err.Error(), models.ColCorrelativo)
	})

	t.Run("Expect: only unseen keys to be inserted", func(t *testing.T) {
		store := newMemStore()
		_, err := store.InsertReferences(models.Country, []string{"China"})
		require.NoError(t, err)
		existingID := store.refs[models.Country]["China"]

		resolver := NewResolver(store)
		rows := []models.RawRow{
			factRow(2, "COR001", "15/03/2024", "China", "Laptops", "100"),
			factRow(3, "COR002", "15/03/2024", "Mexico", "Monitores", "200"),
			factRow(4, "COR003", "15/03/2024", "China", "Teclados", "300"),
		}

		require.NoError(t, resolver.BuildFromRows(factHeader, rows))

		assert.Len(t, store.refs[models.Country], 2)
		assert.Equal(t, 2, resolver.CachedCount(models.Country))

		id, ok := resolver.Resolve(models.Country, "China")
		assert.True(t, ok)
		assert.Equal(t, existingID, id)
		_, ok = resolver.Resolve(models.Country, "Mexico")
		assert.True(t, ok)
	})

	t.Run("Expect: blank values to not create reference entities", func(t *testing.T) {
		store := newMemStore()
		resolver := NewResolver(store)
		rows := []models.RawRow{
			factRow(2, "COR001", "15/03/2024", "", "Laptops", "100"),
		}

		require.NoError(t, resolver.BuildFromRows(factHeader, rows))

		assert.Empty(t, store.refs[models.Country])
		_, ok := resolver.Resolve(models.Country, "")
		assert.False(t, ok)
	})

	t.Run("Expect: unknown keys to not resolve", func(t *testing.T) {
		resolver := NewResolver(newMemStore())
		require.NoError(t, resolver.BuildFromRows(factHeader, nil))

		_, ok := resolver.Resolve(models.TariffCode, "00000000")
		assert.False(t, ok)
	})
}
