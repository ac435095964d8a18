package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csolorzano/importaciones/internal/models"
)

type PostgresStore struct {
	dbpool *pgxpool.Pool
	ctx    context.Context
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	dbpool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	return &PostgresStore{dbpool: dbpool, ctx: context.Background()}, nil
}

func (s *PostgresStore) Close() {
	s.dbpool.Close()
}

func (s *PostgresStore) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS aduanas (
			id SERIAL PRIMARY KEY,
			nombre VARCHAR(100) UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS paises (
			id SERIAL PRIMARY KEY,
			nombre VARCHAR(100) UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tipos_regimen (
			id SERIAL PRIMARY KEY,
			nombre VARCHAR(100) UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS unidades_medida (
			id SERIAL PRIMARY KEY,
			nombre VARCHAR(50) UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS codigos_sac (
			id SERIAL PRIMARY KEY,
			codigo VARCHAR(20) UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS declaraciones_importacion (
			id BIGSERIAL PRIMARY KEY,
			correlativo VARCHAR(20) NOT NULL,
			fecha_declaracion DATE NOT NULL,
			tipo_cambio_dolar DOUBLE PRECISION NOT NULL,
			descripcion VARCHAR(500) NOT NULL,
			cantidad_fraccion DOUBLE PRECISION NOT NULL,
			tasa_dai DOUBLE PRECISION NOT NULL,
			valor_dai DOUBLE PRECISION NOT NULL,
			valor_cif_usd DOUBLE PRECISION NOT NULL,
			tasa_cif_cantidad_fraccion DOUBLE PRECISION NOT NULL,
			aduana_id INTEGER NOT NULL REFERENCES aduanas(id),
			pais_id INTEGER NOT NULL REFERENCES paises(id),
			tipo_regimen_id INTEGER NOT NULL REFERENCES tipos_regimen(id),
			unidad_medida_id INTEGER NOT NULL REFERENCES unidades_medida(id),
			codigo_sac_id INTEGER NOT NULL REFERENCES codigos_sac(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_declaraciones_correlativo ON declaraciones_importacion (correlativo);`,
		`CREATE INDEX IF NOT EXISTS idx_declaraciones_natural_key ON declaraciones_importacion (correlativo, codigo_sac_id, descripcion);`,
		`CREATE INDEX IF NOT EXISTS idx_declaraciones_fecha ON declaraciones_importacion (fecha_declaracion);`,
		`CREATE TABLE IF NOT EXISTS load_records (
			id SERIAL PRIMARY KEY,
			file_name VARCHAR(255) NOT NULL,
			checksum VARCHAR(64),
			processed_at TIMESTAMP NOT NULL,
			status VARCHAR(50) NOT NULL CHECK (status IN ('PROCESSING', 'DONE', 'DONE_WITH_ERRORS', 'FATAL')),
			rows_read INTEGER NOT NULL DEFAULT 0,
			records_loaded INTEGER NOT NULL DEFAULT 0,
			duplicates_skipped INTEGER NOT NULL DEFAULT 0,
			rows_rejected INTEGER NOT NULL DEFAULT 0
		);`,
	}

	for _, query := range queries {
		if _, err := s.dbpool.Exec(s.ctx, query); err != nil {
			return fmt.Errorf("error creating tables: %v", err)
		}
	}
	return nil
}

func (s *PostgresStore) ReferenceIDs(kind models.ReferenceKind) (map[string]int64, error) {
	rt, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, %s FROM %s`, rt.column, rt.table)
	rows, err := s.dbpool.Query(s.ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %v", rt.table, err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("error scanning %s row: %v", rt.table, err)
		}
		ids[key] = id
	}
	return ids, rows.Err()
}

func (s *PostgresStore) InsertReferences(kind models.ReferenceKind, keys []string) (map[string]int64, error) {
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	rt, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	// The on-conflict update is a no-op write that makes RETURNING yield the
	// id whether the key is new or was raced in by an earlier run.
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s RETURNING id`,
		rt.table, rt.column, rt.column, rt.column, rt.column)

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(query, key)
	}

	br := s.dbpool.SendBatch(s.ctx, batch)
	defer br.Close()

	ids := make(map[string]int64, len(keys))
	for _, key := range keys {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			return nil, fmt.Errorf("error inserting into %s: %v", rt.table, err)
		}
		ids[key] = id
	}
	return ids, nil
}

func (s *PostgresStore) DeclarationExists(correlativo string, tariffID int64, description string) (bool, error) {
	var exists bool
	err := s.dbpool.QueryRow(s.ctx,
		`SELECT EXISTS (
			SELECT 1 FROM declaraciones_importacion
			WHERE correlativo = $1 AND codigo_sac_id = $2 AND descripcion = $3
		)`, correlativo, tariffID, description).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking declaration existence: %v", err)
	}
	return exists, nil
}

// InsertDeclarations commits the staged fact batch in a single transaction;
// any failure rolls the whole batch back.
func (s *PostgresStore) InsertDeclarations(decls []*models.Declaration) error {
	if len(decls) == 0 {
		return nil
	}

	tx, err := s.dbpool.Begin(s.ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}

	batch := &pgx.Batch{}
	for _, d := range decls {
		batch.Queue(`INSERT INTO declaraciones_importacion (
			correlativo, fecha_declaracion, tipo_cambio_dolar, descripcion,
			cantidad_fraccion, tasa_dai, valor_dai, valor_cif_usd, tasa_cif_cantidad_fraccion,
			aduana_id, pais_id, tipo_regimen_id, unidad_medida_id, codigo_sac_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			d.Correlativo, d.DeclarationDate, d.ExchangeRate, d.Description,
			d.FractionQuantity, d.DutyRate, d.DutyValue, d.CIFValueUSD, d.CIFFractionRate,
			d.PortID, d.CountryID, d.RegimeID, d.UnitID, d.TariffID)
	}

	br := tx.SendBatch(s.ctx, batch)
	for range decls {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if rx := tx.Rollback(s.ctx); rx != nil {
				log.Printf("Error rolling back transaction: %v", rx)
			}
			return fmt.Errorf("error inserting declarations: %v", err)
		}
	}
	if err := br.Close(); err != nil {
		if rx := tx.Rollback(s.ctx); rx != nil {
			log.Printf("Error rolling back transaction: %v", rx)
		}
		return fmt.Errorf("error closing declaration batch: %v", err)
	}

	if err := tx.Commit(s.ctx); err != nil {
		return fmt.Errorf("error committing declarations: %v", err)
	}
	return nil
}

func (s *PostgresStore) InsertLoadRecord(rec *models.LoadRecord) (int64, error) {
	var id int64
	err := s.dbpool.QueryRow(s.ctx,
		`INSERT INTO load_records (file_name, checksum, processed_at, status)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.FileName, rec.Checksum, rec.ProcessedAt, rec.Status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting load record: %v", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateLoadRecord(id int64, status string, result *models.LoadResult) error {
	_, err := s.dbpool.Exec(s.ctx,
		`UPDATE load_records
		 SET status = $1, rows_read = $2, records_loaded = $3, duplicates_skipped = $4, rows_rejected = $5
		 WHERE id = $6`,
		status, result.RowsRead, result.RecordsLoaded, result.Duplicates, result.Rejected, id)
	if err != nil {
		return fmt.Errorf("error updating load record %d: %v", id, err)
	}
	return nil
}

func (s *PostgresStore) Declarations(limit, offset int) ([]models.DeclarationView, error) {
	rows, err := s.dbpool.Query(s.ctx, viewSelect+` ORDER BY d.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying declarations: %v", err)
	}
	defer rows.Close()
	return scanPgViews(rows)
}

func (s *PostgresStore) DeclarationsByCorrelativo(correlativo string) ([]models.DeclarationView, error) {
	rows, err := s.dbpool.Query(s.ctx, viewSelect+` WHERE d.correlativo = $1 ORDER BY d.id`, correlativo)
	if err != nil {
		return nil, fmt.Errorf("error querying declarations by correlativo: %v", err)
	}
	defer rows.Close()
	return scanPgViews(rows)
}

func (s *PostgresStore) DeclarationsByTariffCode(code string, limit, offset int) ([]models.DeclarationView, error) {
	rows, err := s.dbpool.Query(s.ctx, viewSelect+` WHERE s.codigo = $1 ORDER BY d.id LIMIT $2 OFFSET $3`, code, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying declarations by tariff code: %v", err)
	}
	defer rows.Close()
	return scanPgViews(rows)
}

func (s *PostgresStore) Stats() (*models.Stats, error) {
	stats := &models.Stats{}
	err := s.dbpool.QueryRow(s.ctx, `
		SELECT
			(SELECT COUNT(*) FROM declaraciones_importacion),
			(SELECT COUNT(*) FROM aduanas),
			(SELECT COUNT(*) FROM paises),
			(SELECT COUNT(*) FROM tipos_regimen),
			(SELECT COUNT(*) FROM unidades_medida),
			(SELECT COUNT(*) FROM codigos_sac),
			COALESCE((SELECT SUM(valor_cif_usd) FROM declaraciones_importacion), 0)`).
		Scan(&stats.TotalDeclarations, &stats.TotalPorts, &stats.TotalCountries,
			&stats.TotalRegimes, &stats.TotalUnits, &stats.TotalTariffCodes, &stats.TotalCIFValueUSD)
	if err != nil {
		return nil, fmt.Errorf("error querying stats: %v", err)
	}
	return stats, nil
}

func (s *PostgresStore) TopCountriesByTariff(limit int) ([]models.CountryValueByTariff, error) {
	rows, err := s.dbpool.Query(s.ctx, `
		SELECT codigo_sac, pais, valor_total FROM (
			SELECT s.codigo AS codigo_sac, p.nombre AS pais,
			       SUM(d.valor_cif_usd) AS valor_total,
			       ROW_NUMBER() OVER (PARTITION BY s.codigo ORDER BY SUM(d.valor_cif_usd) DESC) AS ranking
			FROM declaraciones_importacion d
			JOIN codigos_sac s ON s.id = d.codigo_sac_id
			JOIN paises p ON p.id = d.pais_id
			GROUP BY s.codigo, p.nombre
		) ranked
		WHERE ranking <= $1
		ORDER BY codigo_sac, valor_total DESC`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying top countries by tariff: %v", err)
	}
	defer rows.Close()

	var out []models.CountryValueByTariff
	for rows.Next() {
		var row models.CountryValueByTariff
		if err := rows.Scan(&row.TariffCode, &row.CountryName, &row.TotalCIF); err != nil {
			return nil, fmt.Errorf("error scanning ranking row: %v", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MonthlyTotals(since time.Time) ([]models.MonthlyImports, error) {
	rows, err := s.dbpool.Query(s.ctx, `
		SELECT EXTRACT(YEAR FROM fecha_declaracion)::int,
		       EXTRACT(MONTH FROM fecha_declaracion)::int,
		       COUNT(id), COALESCE(SUM(valor_cif_usd), 0)
		FROM declaraciones_importacion
		WHERE fecha_declaracion >= $1
		GROUP BY 1, 2
		ORDER BY 1, 2`, since)
	if err != nil {
		return nil, fmt.Errorf("error querying monthly totals: %v", err)
	}
	defer rows.Close()

	var out []models.MonthlyImports
	for rows.Next() {
		var row models.MonthlyImports
		if err := rows.Scan(&row.Year, &row.Month, &row.Count, &row.TotalCIF); err != nil {
			return nil, fmt.Errorf("error scanning monthly row: %v", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanPgViews(rows pgx.Rows) ([]models.DeclarationView, error) {
	var out []models.DeclarationView
	for rows.Next() {
		var v models.DeclarationView
		if err := rows.Scan(&v.ID, &v.Correlativo, &v.DeclarationDate, &v.ExchangeRate, &v.Description,
			&v.FractionQuantity, &v.DutyRate, &v.DutyValue, &v.CIFValueUSD, &v.CIFFractionRate,
			&v.PortName, &v.CountryName, &v.RegimeName, &v.UnitName, &v.TariffCode); err != nil {
			return nil, fmt.Errorf("error scanning declaration view: %v", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
