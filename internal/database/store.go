// Package database implements the relational store behind the ingestion
// pipeline and the query API. Two backends satisfy the same contract: Postgres
// (pgx) and SQLite (modernc), selected by the DATABASE_URL scheme.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/csolorzano/importaciones/internal/models"
)

// Load audit statuses recorded in load_records.
const (
	LOAD_STATUS_PROCESSING       = "PROCESSING"
	LOAD_STATUS_DONE             = "DONE"
	LOAD_STATUS_DONE_WITH_ERRORS = "DONE_WITH_ERRORS"
	LOAD_STATUS_FATAL            = "FATAL"
)

// Store is the relational contract the pipeline writes through and the query
// API reads through. Reference entities are persisted as they are first seen;
// declarations commit atomically in one transaction per load.
type Store interface {
	CreateTables() error

	// Write contract.
	ReferenceIDs(kind models.ReferenceKind) (map[string]int64, error)
	InsertReferences(kind models.ReferenceKind, keys []string) (map[string]int64, error)
	DeclarationExists(correlativo string, tariffID int64, description string) (bool, error)
	InsertDeclarations(decls []*models.Declaration) error
	InsertLoadRecord(rec *models.LoadRecord) (int64, error)
	UpdateLoadRecord(id int64, status string, result *models.LoadResult) error

	// Read contract.
	Declarations(limit, offset int) ([]models.DeclarationView, error)
	DeclarationsByCorrelativo(correlativo string) ([]models.DeclarationView, error)
	DeclarationsByTariffCode(code string, limit, offset int) ([]models.DeclarationView, error)
	Stats() (*models.Stats, error)
	TopCountriesByTariff(limit int) ([]models.CountryValueByTariff, error)
	MonthlyTotals(since time.Time) ([]models.MonthlyImports, error)

	Close()
}

// referenceTable maps each category to its table and natural-key column.
type referenceTable struct {
	table  string
	column string
}

var referenceTables = map[models.ReferenceKind]referenceTable{
	models.PortOfEntry:     {table: "aduanas", column: "nombre"},
	models.Country:         {table: "paises", column: "nombre"},
	models.RegimeType:      {table: "tipos_regimen", column: "nombre"},
	models.MeasurementUnit: {table: "unidades_medida", column: "nombre"},
	models.TariffCode:      {table: "codigos_sac", column: "codigo"},
}

func tableFor(kind models.ReferenceKind) (referenceTable, error) {
	rt, ok := referenceTables[kind]
	if !ok {
		return referenceTable{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return rt, nil
}

// viewSelect is the joined projection shared by both backends.
const viewSelect = `
	SELECT d.id, d.correlativo, d.fecha_declaracion, d.tipo_cambio_dolar, d.descripcion,
	       d.cantidad_fraccion, d.tasa_dai, d.valor_dai, d.valor_cif_usd, d.tasa_cif_cantidad_fraccion,
	       a.nombre, p.nombre, r.nombre, u.nombre, s.codigo
	FROM declaraciones_importacion d
	JOIN aduanas a ON a.id = d.aduana_id
	JOIN paises p ON p.id = d.pais_id
	JOIN tipos_regimen r ON r.id = d.tipo_regimen_id
	JOIN unidades_medida u ON u.id = d.unidad_medida_id
	JOIN codigos_sac s ON s.id = d.codigo_sac_id`

// Open picks a backend from the database URL. The original deployment defaults
// to a local SQLite file and switches to Postgres when the URL says so.
func Open(databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresStore(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(databaseURL, "sqlite://"))
	case databaseURL == "":
		return nil, fmt.Errorf("database URL is empty")
	default:
		// Bare paths are treated as SQLite files.
		return NewSQLiteStore(databaseURL)
	}
}
