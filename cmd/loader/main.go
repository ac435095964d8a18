package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/csolorzano/importaciones/internal/config"
	"github.com/csolorzano/importaciones/internal/database"
	"github.com/csolorzano/importaciones/internal/ingestion"
	"github.com/csolorzano/importaciones/internal/models"
	"github.com/csolorzano/importaciones/internal/parser"
)

func setup() (string, *ingestion.Service, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return "", nil, nil, err
	}

	filePath := cfg.CSVFile
	if len(os.Args) > 1 {
		filePath = os.Args[1]
	}

	store, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return "", nil, nil, err
	}

	if err := store.CreateTables(); err != nil {
		store.Close()
		return "", nil, nil, err
	}

	service := ingestion.NewService(store, parser.NewDecoder(cfg.Delimiter))
	return filePath, service, store.Close, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	startTime := time.Now()

	filePath, service, cleanup, err := setup()
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	result := service.Load(filePath)
	log.Printf("Load result: status=%s records_loaded=%d duplicates=%d rejected=%d message=%q",
		result.Status, result.RecordsLoaded, result.Duplicates, result.Rejected, result.Message)
	log.Printf("Execution time: %s", time.Since(startTime))

	if result.Status == models.StatusError {
		os.Exit(1)
	}
}
