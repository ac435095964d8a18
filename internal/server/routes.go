package server

import (
	"net/http"
)

func SetupRoutes(declarationHandler *DeclarationService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", declarationHandler.GetIndex)
	mux.HandleFunc("/declaraciones", declarationHandler.GetDeclarations)
	mux.HandleFunc("/declaraciones/correlativo/", declarationHandler.GetByCorrelativo)
	mux.HandleFunc("/declaraciones/sac/", declarationHandler.GetByTariffCode)
	mux.HandleFunc("/analytics/top-pais-por-sac", declarationHandler.GetTopCountriesByTariff)
	mux.HandleFunc("/analytics/importaciones-por-mes", declarationHandler.GetMonthlyImports)
	mux.HandleFunc("/stats", declarationHandler.GetStats)

	return mux
}
