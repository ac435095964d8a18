package ingestion

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/csolorzano/importaciones/internal/database"
	"github.com/csolorzano/importaciones/internal/models"
	"github.com/csolorzano/importaciones/internal/parser"
	"github.com/csolorzano/importaciones/pkg/checksum"
)

// Service runs the whole load pipeline for one file. Loads are single-writer
// batch jobs: concurrent loads against the same store must be serialized
// externally, because the natural-key dedup state lives in this process.
type Service struct {
	store   database.Store
	decoder *parser.Decoder
}

func NewService(store database.Store, decoder *parser.Decoder) *Service {
	return &Service{store: store, decoder: decoder}
}

// Load ingests one file and always returns a structured result; no error
// escapes to the caller. A missing file is not an error, it signals the
// caller to fall back to whatever sample path it prefers.
func (s *Service) Load(filePath string) *models.LoadResult {
	result := &models.LoadResult{Status: models.StatusError, State: models.StateNotStarted}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		log.Printf("File %s not found, nothing to load", filePath)
		result.Status = models.StatusSkipped
		result.Message = fmt.Sprintf("file %s not found", filePath)
		return result
	}

	recordID := s.openLoadRecord(filePath)

	// Step 1: decode the raw bytes into row mappings. Structural faults are
	// repaired or counted here; only a fully unreadable stream is terminal.
	result.State = models.StateDecoding
	rows, report, err := s.decoder.DecodeFile(filePath)
	if err != nil {
		return s.fail(result, recordID, err.Error())
	}
	result.Decode = report
	result.RowsRead = len(rows)
	log.Printf("Decoded %d rows from %s (strategy=%s encoding=%s, %d dropped, %d repaired)",
		len(rows), filePath, report.Strategy, report.Encoding,
		len(report.DroppedLines), len(report.RepairedLines))

	if len(rows) == 0 {
		// Empty or header-only file: a successful no-op load.
		result.Status = models.StatusSuccess
		result.State = models.StateCommitted
		result.Message = "no data rows in file"
		s.closeLoadRecord(recordID, database.LOAD_STATUS_DONE, result)
		return result
	}

	// Step 2: first pass over the whole file, deduplicating and persisting
	// the reference entities.
	result.State = models.StateResolvingReferences
	resolver := NewResolver(s.store)
	if err := resolver.BuildFromRows(report.Header, rows); err != nil {
		return s.fail(result, recordID, err.Error())
	}

	// Step 3: second pass, building and staging fact records row by row.
	result.State = models.StateLoadingFacts
	loader := NewLoader(s.store, resolver)
	for _, row := range rows {
		outcome, rejection, err := loader.ProcessRow(row)
		if err != nil {
			return s.fail(result, recordID, err.Error())
		}
		switch outcome {
		case RowLoaded:
		case RowDuplicate:
			result.Duplicates++
		case RowRejected:
			result.Rejected++
			result.Rejections = append(result.Rejections, *rejection)
		}
	}

	// Step 4: commit the staged batch atomically.
	if err := loader.Commit(); err != nil {
		return s.fail(result, recordID, err.Error())
	}

	result.Status = models.StatusSuccess
	result.State = models.StateCommitted
	result.RecordsLoaded = loader.StagedCount()
	result.Message = fmt.Sprintf("loaded %d of %d rows (%d duplicates skipped, %d rejected)",
		result.RecordsLoaded, result.RowsRead, result.Duplicates, result.Rejected)
	log.Printf("Load finished: %s", result.Message)
	for _, rej := range result.FirstRejections() {
		log.Printf("First rejection for %q: %s", rej.Reason, rej.Error())
	}

	status := database.LOAD_STATUS_DONE
	if result.Rejected > 0 {
		status = database.LOAD_STATUS_DONE_WITH_ERRORS
	}
	s.closeLoadRecord(recordID, status, result)
	return result
}

// Diagnose profiles a file without mutating anything.
func (s *Service) Diagnose(filePath string, sampleSize int) (*parser.Diagnostic, error) {
	return parser.Diagnose(filePath, s.decoder.Delimiter, sampleSize)
}

func (s *Service) fail(result *models.LoadResult, recordID int64, message string) *models.LoadResult {
	result.Status = models.StatusError
	result.State = models.StateFailed
	result.Message = message
	log.Printf("Load failed: %s", message)
	s.closeLoadRecord(recordID, database.LOAD_STATUS_FATAL, result)
	return result
}

// openLoadRecord writes the audit row for this run. The audit trail is best
// effort: a failure here is logged, never fatal to the load.
func (s *Service) openLoadRecord(filePath string) int64 {
	sum, err := checksum.FileChecksum(filePath)
	if err != nil {
		log.Printf("Could not checksum %s: %v", filePath, err)
	}
	id, err := s.store.InsertLoadRecord(&models.LoadRecord{
		FileName:    filePath,
		Checksum:    sum,
		ProcessedAt: time.Now().UTC(),
		Status:      database.LOAD_STATUS_PROCESSING,
	})
	if err != nil {
		log.Printf("Could not record load start for %s: %v", filePath, err)
		return 0
	}
	return id
}

func (s *Service) closeLoadRecord(recordID int64, status string, result *models.LoadResult) {
	if recordID == 0 {
		return
	}
	if err := s.store.UpdateLoadRecord(recordID, status, result); err != nil {
		log.Printf("Could not update load record %d: %v", recordID, err)
	}
}
