package config

import (
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"
)

type Config struct {
	DatabaseURL string
	CSVFile     string
	Delimiter   rune
	APIPort     string
	SampleSize  int
}

func New() (*Config, error) {
	cfg := &Config{
		DatabaseURL: "sqlite://importaciones.db",
		CSVFile:     "pr.csv",
		Delimiter:   ';',
		APIPort:     "8080",
		SampleSize:  10,
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CSV_FILE"); v != "" {
		cfg.CSVFile = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.APIPort = v
	}
	if v := os.Getenv("CSV_DELIMITER"); v != "" {
		r, size := utf8.DecodeRuneInString(v)
		if size != len(v) {
			return nil, fmt.Errorf("invalid value for CSV_DELIMITER: expected a single character, got %q", v)
		}
		cfg.Delimiter = r
	}

	var err error
	cfg.SampleSize, err = getEnvAsInt("DIAGNOSE_SAMPLE_SIZE", cfg.SampleSize)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}
