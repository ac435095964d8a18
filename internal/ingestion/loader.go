package ingestion

import (
	"fmt"

	"github.com/csolorzano/importaciones/internal/database"
	"github.com/csolorzano/importaciones/internal/models"
	"github.com/csolorzano/importaciones/internal/normalize"
)

// RowOutcome classifies what happened to one input row.
type RowOutcome int

const (
	RowLoaded RowOutcome = iota
	RowDuplicate
	RowRejected
)

// Loader builds fact records from raw rows and stages them for a single
// atomic commit. It maintains the cross-row dedup state, so it must run as
// one logical writer.
type Loader struct {
	store      database.Store
	resolver   *Resolver
	staged     []*models.Declaration
	stagedKeys map[models.NaturalKey]bool
}

func NewLoader(store database.Store, resolver *Resolver) *Loader {
	return &Loader{
		store:      store,
		resolver:   resolver,
		stagedKeys: make(map[models.NaturalKey]bool),
	}
}

// ProcessRow runs the per-row pipeline: required fields, reference resolution,
// date validation, natural-key dedup, then permissive numeric normalization.
// Bad numbers never reject a row; they default to zero so a single malformed
// value does not lose the record.
func (l *Loader) ProcessRow(row models.RawRow) (RowOutcome, *models.RowRejection, error) {
	for _, col := range models.RequiredColumns() {
		if row.Get(col) == "" {
			return RowRejected, &models.RowRejection{
				Line:   row.Line,
				Reason: models.ReasonMissingField,
				Detail: fmt.Sprintf("column %q is empty", col),
			}, nil
		}
	}
	if row.Get(models.ColDate) == "" {
		return RowRejected, &models.RowRejection{
			Line:   row.Line,
			Reason: models.ReasonMissingField,
			Detail: fmt.Sprintf("column %q is empty", models.ColDate),
		}, nil
	}

	refs := make(map[models.ReferenceKind]int64, 5)
	for _, kind := range models.ReferenceKinds() {
		id, ok := l.resolver.Resolve(kind, row.Get(string(kind)))
		if !ok {
			return RowRejected, &models.RowRejection{
				Line:   row.Line,
				Reason: models.ReasonUnresolvedReference,
				Detail: fmt.Sprintf("no %s entity for %q", kind, row.Get(string(kind))),
			}, nil
		}
		refs[kind] = id
	}

	date, ok := normalize.ParseDate(row.Get(models.ColDate))
	if !ok {
		return RowRejected, &models.RowRejection{
			Line:   row.Line,
			Reason: models.ReasonBadDate,
			Detail: fmt.Sprintf("unrecognized date %q", row.Get(models.ColDate)),
		}, nil
	}

	key := models.NaturalKey{
		Correlativo: row.Get(models.ColCorrelativo),
		TariffID:    refs[models.TariffCode],
		Description: row.Get(models.ColDescription),
	}
	if l.stagedKeys[key] {
		return RowDuplicate, nil, nil
	}
	exists, err := l.store.DeclarationExists(key.Correlativo, key.TariffID, key.Description)
	if err != nil {
		return RowRejected, nil, err
	}
	if exists {
		return RowDuplicate, nil, nil
	}

	exchangeRate, _ := normalize.ParseDecimal(row.Get(models.ColExchangeRate))
	fractionQty, _ := normalize.ParseDecimal(row.Get(models.ColFractionQty))
	dutyRate, _ := normalize.ParseDecimal(row.Get(models.ColDutyRate))
	dutyValue, _ := normalize.ParseDecimal(row.Get(models.ColDutyValue))
	cifValue, _ := normalize.ParseDecimal(row.Get(models.ColCIFValue))
	cifFractionRate, _ := normalize.ParseDecimal(row.Get(models.ColCIFFractionRate))

	l.staged = append(l.staged, &models.Declaration{
		Correlativo:      key.Correlativo,
		DeclarationDate:  date,
		ExchangeRate:     exchangeRate,
		Description:      key.Description,
		FractionQuantity: fractionQty,
		DutyRate:         dutyRate,
		DutyValue:        dutyValue,
		CIFValueUSD:      cifValue,
		CIFFractionRate:  cifFractionRate,
		PortID:           refs[models.PortOfEntry],
		CountryID:        refs[models.Country],
		RegimeID:         refs[models.RegimeType],
		UnitID:           refs[models.MeasurementUnit],
		TariffID:         refs[models.TariffCode],
	})
	l.stagedKeys[key] = true

	return RowLoaded, nil, nil
}

// StagedCount reports how many declarations are waiting for commit.
func (l *Loader) StagedCount() int {
	return len(l.staged)
}

// Commit writes every staged declaration in one transaction. On failure the
// store rolls the whole batch back and nothing is partially visible.
func (l *Loader) Commit() error {
	return l.store.InsertDeclarations(l.staged)
}
