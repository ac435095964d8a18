package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

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

	diag, err := parser.Diagnose(filePath, cfg.Delimiter, cfg.SampleSize)
	if err != nil {
		log.Fatalf("Diagnosis failed: %v", err)
	}

	fmt.Printf("First bytes: %s\n", diag.FirstBytes)
	fmt.Printf("Total lines: %d\n", diag.TotalLines)
	fmt.Printf("Most common column count: %d\n", diag.MostCommonWidth)

	widths := make([]int, 0, len(diag.ColumnCounts))
	for width := range diag.ColumnCounts {
		widths = append(widths, width)
	}
	sort.Ints(widths)
	fmt.Println("Column count distribution:")
	for _, width := range widths {
		fmt.Printf("  %d columns: %d lines\n", width, diag.ColumnCounts[width])
	}

	fmt.Println("Sample lines:")
	for i, line := range diag.SampleLines {
		fmt.Printf("  %d: %s\n", i+1, line)
	}
}
