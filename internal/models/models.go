package models

import (
	"fmt"
	"time"
)

// ReferenceKind identifies one of the five lookup-table categories. The value
// of each kind is the source column it is populated from.
type ReferenceKind string

const (
	PortOfEntry     ReferenceKind = "aduana"
	Country         ReferenceKind = "pais"
	RegimeType      ReferenceKind = "tipo_regimen"
	MeasurementUnit ReferenceKind = "tipo_unidad_medida"
	TariffCode      ReferenceKind = "sac"
)

// ReferenceKinds returns all categories in a fixed order.
func ReferenceKinds() []ReferenceKind {
	return []ReferenceKind{PortOfEntry, Country, RegimeType, MeasurementUnit, TariffCode}
}

// Source column names expected in the input header.
const (
	ColPort            = "aduana"
	ColCountry         = "pais"
	ColRegime          = "tipo_regimen"
	ColUnit            = "tipo_unidad_medida"
	ColTariff          = "sac"
	ColCorrelativo     = "correlativo"
	ColDate            = "fecha_declaracion"
	ColExchangeRate    = "tipo_cambio_dolar"
	ColDescription     = "descripcion"
	ColFractionQty     = "cantidad_fraccion"
	ColDutyRate        = "tasa_dai"
	ColDutyValue       = "valor_dai"
	ColCIFValue        = "valor_cif_uds"
	ColCIFFractionRate = "tasa_cif_cantidad_fraccion"
)

// RequiredColumns are the columns a row must carry for master-data and fact
// loading to proceed.
func RequiredColumns() []string {
	return []string{ColPort, ColCountry, ColRegime, ColUnit, ColTariff}
}

// RawRow is one decoded input line: raw string values keyed by header column,
// plus the 1-based source line for diagnostics. Transient; consumed by the
// loader and discarded.
type RawRow struct {
	Line   int
	Fields map[string]string
}

func (r RawRow) Get(col string) string {
	return r.Fields[col]
}

// Declaration is the fact record built from one valid input row.
type Declaration struct {
	ID               int64
	Correlativo      string
	DeclarationDate  time.Time
	ExchangeRate     float64
	Description      string
	FractionQuantity float64
	DutyRate         float64
	DutyValue        float64
	CIFValueUSD      float64
	CIFFractionRate  float64
	PortID           int64
	CountryID        int64
	RegimeID         int64
	UnitID           int64
	TariffID         int64
}

// NaturalKey is the uniqueness rule used to detect re-ingestion of an
// already-loaded declaration. It intentionally omits the other foreign keys:
// the upstream dataset treats (correlativo, tariff code, description) as the
// document identity.
type NaturalKey struct {
	Correlativo string
	TariffID    int64
	Description string
}

func (d *Declaration) NaturalKey() NaturalKey {
	return NaturalKey{Correlativo: d.Correlativo, TariffID: d.TariffID, Description: d.Description}
}

// DeclarationView is the read-side shape with reference names joined in.
type DeclarationView struct {
	ID               int64     `json:"id"`
	Correlativo      string    `json:"correlativo"`
	DeclarationDate  time.Time `json:"fecha_declaracion"`
	ExchangeRate     float64   `json:"tipo_cambio_dolar"`
	Description      string    `json:"descripcion"`
	FractionQuantity float64   `json:"cantidad_fraccion"`
	DutyRate         float64   `json:"tasa_dai"`
	DutyValue        float64   `json:"valor_dai"`
	CIFValueUSD      float64   `json:"valor_cif_usd"`
	CIFFractionRate  float64   `json:"tasa_cif_cantidad_fraccion"`
	PortName         string    `json:"aduana"`
	CountryName      string    `json:"pais"`
	RegimeName       string    `json:"tipo_regimen"`
	UnitName         string    `json:"unidad_medida"`
	TariffCode       string    `json:"codigo_sac"`
}

// RejectReason classifies why a row was rejected during loading.
type RejectReason string

const (
	ReasonMissingField        RejectReason = "missing required field"
	ReasonBadDate             RejectReason = "bad date"
	ReasonUnresolvedReference RejectReason = "unresolved reference"
)

// RowRejection records one rejected input row.
type RowRejection struct {
	Line   int          `json:"line"`
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

func (r RowRejection) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("line %d: %s (%s)", r.Line, r.Reason, r.Detail)
	}
	return fmt.Sprintf("line %d: %s", r.Line, r.Reason)
}

// LineIssue records a structural problem handled by the decoder.
type LineIssue struct {
	Line   int    `json:"line"`
	Detail string `json:"detail"`
}

// DecodeReport summarizes how a file was decoded.
type DecodeReport struct {
	Strategy      string      `json:"strategy"`
	Encoding      string      `json:"encoding"`
	Header        []string    `json:"header"`
	RowsDecoded   int         `json:"rows_decoded"`
	DroppedLines  []LineIssue `json:"dropped_lines,omitempty"`
	RepairedLines []LineIssue `json:"repaired_lines,omitempty"`
}

// LoadState tracks pipeline progress for reporting.
type LoadState string

const (
	StateNotStarted          LoadState = "NotStarted"
	StateDecoding            LoadState = "Decoding"
	StateResolvingReferences LoadState = "ResolvingReferences"
	StateLoadingFacts        LoadState = "LoadingFacts"
	StateCommitted           LoadState = "Committed"
	StateFailed              LoadState = "Failed"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// LoadResult is the structured outcome every load returns. The load entry
// point never lets an error escape: failures land here with StatusError.
type LoadResult struct {
	Status        string         `json:"status"`
	RecordsLoaded int            `json:"records_loaded"`
	Message       string         `json:"message,omitempty"`
	State         LoadState      `json:"state"`
	RowsRead      int            `json:"rows_read"`
	Duplicates    int            `json:"duplicates_skipped"`
	Rejected      int            `json:"rows_rejected"`
	Rejections    []RowRejection `json:"rejections,omitempty"`
	Decode        *DecodeReport  `json:"decode,omitempty"`
}

// FirstRejections keeps the first occurrence of each rejection reason, for
// human-readable summaries.
func (r *LoadResult) FirstRejections() []RowRejection {
	seen := make(map[RejectReason]bool)
	var firsts []RowRejection
	for _, rej := range r.Rejections {
		if !seen[rej.Reason] {
			seen[rej.Reason] = true
			firsts = append(firsts, rej)
		}
	}
	return firsts
}

// LoadRecord is the audit row written for every load run.
type LoadRecord struct {
	ID            int64
	FileName      string
	Checksum      string
	ProcessedAt   time.Time
	Status        string
	RowsRead      int
	RecordsLoaded int
	Duplicates    int
	Rejected      int
}

// Stats aggregates totals for the read API.
type Stats struct {
	TotalDeclarations int64   `json:"total_declaraciones"`
	TotalPorts        int64   `json:"total_aduanas"`
	TotalCountries    int64   `json:"total_paises"`
	TotalRegimes      int64   `json:"total_tipos_regimen"`
	TotalUnits        int64   `json:"total_unidades_medida"`
	TotalTariffCodes  int64   `json:"total_codigos_sac"`
	TotalCIFValueUSD  float64 `json:"valor_total_importaciones"`
}

// CountryValueByTariff is one row of the top-country-per-tariff ranking.
type CountryValueByTariff struct {
	TariffCode  string  `json:"codigo_sac"`
	CountryName string  `json:"pais"`
	TotalCIF    float64 `json:"valor_total"`
}

// MonthlyImports is one month of aggregated import volume.
type MonthlyImports struct {
	Year     int     `json:"anio"`
	Month    int     `json:"mes"`
	Count    int64   `json:"cantidad_importaciones"`
	TotalCIF float64 `json:"valor_total"`
}
