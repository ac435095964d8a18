package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/csolorzano/importaciones/internal/config"
	"github.com/csolorzano/importaciones/internal/database"
	"github.com/csolorzano/importaciones/internal/ingestion"
	"github.com/csolorzano/importaciones/internal/parser"
	"github.com/csolorzano/importaciones/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer store.Close()

	if err := store.CreateTables(); err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}

	// Ingest the configured file on startup when present; its absence just
	// means the API serves whatever was loaded before.
	if _, err := os.Stat(cfg.CSVFile); err == nil {
		loadService := ingestion.NewService(store, parser.NewDecoder(cfg.Delimiter))
		result := loadService.Load(cfg.CSVFile)
		log.Printf("Startup load: status=%s records_loaded=%d message=%q",
			result.Status, result.RecordsLoaded, result.Message)
	}

	router := server.SetupRoutes(server.NewDeclarationService(store))

	log.Printf("Server starting on port %s", cfg.APIPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.APIPort), router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
