package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/csolorzano/importaciones/internal/analysis"
	"github.com/csolorzano/importaciones/internal/config"
	"github.com/csolorzano/importaciones/internal/parser"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	filePath := cfg.CSVFile
	if len(os.Args) > 1 {
		filePath = os.Args[1]
	}

	decoder := parser.NewDecoder(cfg.Delimiter)
	rows, report, err := decoder.DecodeFile(filePath)
	if err != nil {
		log.Fatalf("Decode failed: %v", err)
	}
	log.Printf("Decoded %d rows (strategy=%s encoding=%s)", len(rows), report.Strategy, report.Encoding)

	header, cleaned := analysis.Clean(report.Header, rows)
	analysis.Analyze(header, cleaned).Write(os.Stdout)
}
