package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/billscan/invoice-extraction/internal/extraction"
	"github.com/billscan/invoice-extraction/internal/models"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml configuration")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(config.Logging.Level)
	pipeline := extraction.NewPipeline(logger)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract [-config config.yaml] result.json ...")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read input", "path", path, "error", err)
			failed++
			continue
		}

		result, err := extraction.DecodeResult(data)
		if err != nil {
			logger.Error("failed to decode input", "path", path, "error", err)
			failed++
			continue
		}
		if result.Currency == "" {
			result.Currency = config.DefaultCurrency
		}

		result = pipeline.Process(result)

		if !result.Processed || result.OverallConfidence < config.Review.MinConfidence {
			logger.Warn("document needs manual review",
				"id", result.ID, "path", path,
				"confidence", result.OverallConfidence,
				"error_message", result.ErrorMessage)
		} else {
			logger.Info("document auto-approved",
				"id", result.ID, "path", path,
				"confidence", result.OverallConfidence)
		}

		if err := enc.Encode(result); err != nil {
			logger.Error("failed to write result", "path", path, "error", err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// loadConfig reads the yaml configuration and applies environment
// overrides. A missing config file is fine, defaults cover everything.
func loadConfig(path string) (*models.Config, error) {
	var config models.Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables if present
	if currency := os.Getenv("DEFAULT_CURRENCY"); currency != "" {
		config.DefaultCurrency = currency
	}
	if threshold := os.Getenv("REVIEW_MIN_CONFIDENCE"); threshold != "" {
		v, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REVIEW_MIN_CONFIDENCE %q: %w", threshold, err)
		}
		config.Review.MinConfidence = v
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	config.ApplyDefaults()
	return &config, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
