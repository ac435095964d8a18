package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/csolorzano/importaciones/internal/models"
)

const dateLayout = "2006-01-02"

// SQLiteStore is the default backend; the loader runs against a local file
// unless DATABASE_URL points at Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %s: %v", path, err)
	}
	// The natural-key check runs row by row in the same process as the single
	// writer, so one connection is enough and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("error enabling foreign keys: %v", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("Error closing sqlite database: %v", err)
	}
}

func (s *SQLiteStore) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS aduanas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nombre TEXT UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS paises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nombre TEXT UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tipos_regimen (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nombre TEXT UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS unidades_medida (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nombre TEXT UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS codigos_sac (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			codigo TEXT UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS declaraciones_importacion (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			correlativo TEXT NOT NULL,
			fecha_declaracion TEXT NOT NULL,
			tipo_cambio_dolar REAL NOT NULL,
			descripcion TEXT NOT NULL,
			cantidad_fraccion REAL NOT NULL,
			tasa_dai REAL NOT NULL,
			valor_dai REAL NOT NULL,
			valor_cif_usd REAL NOT NULL,
			tasa_cif_cantidad_fraccion REAL NOT NULL,
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_name TEXT NOT NULL,
			checksum TEXT,
			processed_at TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('PROCESSING', 'DONE', 'DONE_WITH_ERRORS', 'FATAL')),
			rows_read INTEGER NOT NULL DEFAULT 0,
			records_loaded INTEGER NOT NULL DEFAULT 0,
			duplicates_skipped INTEGER NOT NULL DEFAULT 0,
			rows_rejected INTEGER NOT NULL DEFAULT 0
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error creating tables: %v", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ReferenceIDs(kind models.ReferenceKind) (map[string]int64, error) {
	rt, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(fmt.Sprintf(`SELECT id, %s FROM %s`, rt.column, rt.table))
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

func (s *SQLiteStore) InsertReferences(kind models.ReferenceKind, keys []string) (map[string]int64, error) {
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	rt, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s) VALUES (?)`, rt.table, rt.column)
	lookup := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ?`, rt.table, rt.column)

	ids := make(map[string]int64, len(keys))
	for _, key := range keys {
		if _, err := tx.Exec(insert, key); err != nil {
			return nil, fmt.Errorf("error inserting into %s: %v", rt.table, err)
		}
		var id int64
		if err := tx.QueryRow(lookup, key).Scan(&id); err != nil {
			return nil, fmt.Errorf("error resolving id in %s: %v", rt.table, err)
		}
		ids[key] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing %s inserts: %v", rt.table, err)
	}
	return ids, nil
}

func (s *SQLiteStore) DeclarationExists(correlativo string, tariffID int64, description string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM declaraciones_importacion
		 WHERE correlativo = ? AND codigo_sac_id = ? AND descripcion = ?
		 LIMIT 1`, correlativo, tariffID, description).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking declaration existence: %v", err)
	}
	return true, nil
}

func (s *SQLiteStore) InsertDeclarations(decls []*models.Declaration) error {
	if len(decls) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO declaraciones_importacion (
		correlativo, fecha_declaracion, tipo_cambio_dolar, descripcion,
		cantidad_fraccion, tasa_dai, valor_dai, valor_cif_usd, tasa_cif_cantidad_fraccion,
		aduana_id, pais_id, tipo_regimen_id, unidad_medida_id, codigo_sac_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing declaration insert: %v", err)
	}
	defer stmt.Close()

	for _, d := range decls {
		if _, err := stmt.Exec(
			d.Correlativo, d.DeclarationDate.Format(dateLayout), d.ExchangeRate, d.Description,
			d.FractionQuantity, d.DutyRate, d.DutyValue, d.CIFValueUSD, d.CIFFractionRate,
			d.PortID, d.CountryID, d.RegimeID, d.UnitID, d.TariffID); err != nil {
			return fmt.Errorf("error inserting declarations: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing declarations: %v", err)
	}
	return nil
}

func (s *SQLiteStore) InsertLoadRecord(rec *models.LoadRecord) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO load_records (file_name, checksum, processed_at, status) VALUES (?, ?, ?, ?)`,
		rec.FileName, rec.Checksum, rec.ProcessedAt.Format(time.RFC3339), rec.Status)
	if err != nil {
		return 0, fmt.Errorf("error inserting load record: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading load record id: %v", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateLoadRecord(id int64, status string, result *models.LoadResult) error {
	_, err := s.db.Exec(
		`UPDATE load_records
		 SET status = ?, rows_read = ?, records_loaded = ?, duplicates_skipped = ?, rows_rejected = ?
		 WHERE id = ?`,
		status, result.RowsRead, result.RecordsLoaded, result.Duplicates, result.Rejected, id)
	if err != nil {
		return fmt.Errorf("error updating load record %d: %v", id, err)
	}
	return nil
}

func (s *SQLiteStore) Declarations(limit, offset int) ([]models.DeclarationView, error) {
	rows, err := s.db.Query(viewSelect+` ORDER BY d.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying declarations: %v", err)
	}
	defer rows.Close()
	return scanSQLViews(rows)
}

func (s *SQLiteStore) DeclarationsByCorrelativo(correlativo string) ([]models.DeclarationView, error) {
	rows, err := s.db.Query(viewSelect+` WHERE d.correlativo = ? ORDER BY d.id`, correlativo)
	if err != nil {
		return nil, fmt.Errorf("error querying declarations by correlativo: %v", err)
	}
	defer rows.Close()
	return scanSQLViews(rows)
}

func (s *SQLiteStore) DeclarationsByTariffCode(code string, limit, offset int) ([]models.DeclarationView, error) {
	rows, err := s.db.Query(viewSelect+` WHERE s.codigo = ? ORDER BY d.id LIMIT ? OFFSET ?`, code, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying declarations by tariff code: %v", err)
	}
	defer rows.Close()
	return scanSQLViews(rows)
}

func (s *SQLiteStore) Stats() (*models.Stats, error) {
	stats := &models.Stats{}
	err := s.db.QueryRow(`
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

func (s *SQLiteStore) TopCountriesByTariff(limit int) ([]models.CountryValueByTariff, error) {
	rows, err := s.db.Query(`
		SELECT codigo_sac, pais, valor_total FROM (
			SELECT s.codigo AS codigo_sac, p.nombre AS pais,
			       SUM(d.valor_cif_usd) AS valor_total,
			       ROW_NUMBER() OVER (PARTITION BY s.codigo ORDER BY SUM(d.valor_cif_usd) DESC) AS ranking
			FROM declaraciones_importacion d
			JOIN codigos_sac s ON s.id = d.codigo_sac_id
			JOIN paises p ON p.id = d.pais_id
			GROUP BY s.codigo, p.nombre
		) ranked
		WHERE ranking <= ?
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

func (s *SQLiteStore) MonthlyTotals(since time.Time) ([]models.MonthlyImports, error) {
	rows, err := s.db.Query(`
		SELECT CAST(strftime('%Y', fecha_declaracion) AS INTEGER),
		       CAST(strftime('%m', fecha_declaracion) AS INTEGER),
		       COUNT(id), COALESCE(SUM(valor_cif_usd), 0)
		FROM declaraciones_importacion
		WHERE fecha_declaracion >= ?
		GROUP BY 1, 2
		ORDER BY 1, 2`, since.Format(dateLayout))
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

func scanSQLViews(rows *sql.Rows) ([]models.DeclarationView, error) {
	var out []models.DeclarationView
	for rows.Next() {
		var v models.DeclarationView
		var dateStr string
		if err := rows.Scan(&v.ID, &v.Correlativo, &dateStr, &v.ExchangeRate, &v.Description,
			&v.FractionQuantity, &v.DutyRate, &v.DutyValue, &v.CIFValueUSD, &v.CIFFractionRate,
			&v.PortName, &v.CountryName, &v.RegimeName, &v.UnitName, &v.TariffCode); err != nil {
			return nil, fmt.Errorf("error scanning declaration view: %v", err)
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing stored date %q: %v", dateStr, err)
		}
		v.DeclarationDate = date
		out = append(out, v)
	}
	return out, rows.Err()
}
