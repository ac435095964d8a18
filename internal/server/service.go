package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/csolorzano/importaciones/internal/database"
)

// DeclarationService serves the read-only query and analytics endpoints over
// the loaded dataset.
type DeclarationService struct {
	Store database.Store
}

func NewDeclarationService(store database.Store) *DeclarationService {
	return &DeclarationService{Store: store}
}

func (h *DeclarationService) GetIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{
		"message": "Sistema de Importaciones API",
		"endpoints": []string{
			"/declaraciones",
			"/declaraciones/correlativo/{correlativo}",
			"/declaraciones/sac/{codigo_sac}",
			"/analytics/top-pais-por-sac",
			"/analytics/importaciones-por-mes",
			"/stats",
		},
	})
}

func (h *DeclarationService) GetDeclarations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	views, err := h.Store.Declarations(limit, offset)
	if err != nil {
		http.Error(w, "Failed to retrieve declarations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, views)
}

func (h *DeclarationService) GetByCorrelativo(w http.ResponseWriter, r *http.Request) {
	correlativo := strings.TrimPrefix(r.URL.Path, "/declaraciones/correlativo/")
	if correlativo == "" {
		http.Error(w, "Correlativo is required in the URL path /declaraciones/correlativo/{correlativo}", http.StatusBadRequest)
		return
	}

	views, err := h.Store.DeclarationsByCorrelativo(correlativo)
	if err != nil {
		http.Error(w, "Failed to retrieve declarations", http.StatusInternalServerError)
		return
	}
	if len(views) == 0 {
		http.Error(w, "No declarations found for correlativo "+correlativo, http.StatusNotFound)
		return
	}
	writeJSON(w, views)
}

func (h *DeclarationService) GetByTariffCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/declaraciones/sac/")
	if code == "" {
		http.Error(w, "Tariff code is required in the URL path /declaraciones/sac/{codigo_sac}", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	views, err := h.Store.DeclarationsByTariffCode(code, limit, offset)
	if err != nil {
		http.Error(w, "Failed to retrieve declarations", http.StatusInternalServerError)
		return
	}
	if len(views) == 0 {
		http.Error(w, "No declarations found for tariff code "+code, http.StatusNotFound)
		return
	}
	writeJSON(w, views)
}

func (h *DeclarationService) GetTopCountriesByTariff(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)

	rows, err := h.Store.TopCountriesByTariff(limit)
	if err != nil {
		http.Error(w, "Failed to retrieve ranking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *DeclarationService) GetMonthlyImports(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, 0, -365)

	rows, err := h.Store.MonthlyTotals(since)
	if err != nil {
		http.Error(w, "Failed to retrieve monthly totals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *DeclarationService) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats()
	if err != nil {
		http.Error(w, "Failed to retrieve stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
