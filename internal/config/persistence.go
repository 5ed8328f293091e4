// file: internal/config/persistence.go
// version: 2.0.0
// guid: 9c8d7e6f-5a4b-3c2d-1e0f-9a8b7c6d5e4f

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFilePath returns the path to the YAML config file next to the database.
func ConfigFilePath() string {
	if AppConfig.DatabasePath != "" {
		return filepath.Join(filepath.Dir(AppConfig.DatabasePath), "config.yaml")
	}
	return ""
}

// LoadConfigFromFile loads settings from the YAML config file as a fallback.
// Called after InitConfig so file values only fill in gaps left by env and
// flags; a populated key is never overwritten.
func LoadConfigFromFile() error {
	path := ConfigFilePath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig map[string]any
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		log.Printf("[WARN] Failed to parse config file %s: %v", path, err)
		return nil
	}

	applied := 0

	stringFallbacks := map[string]*string{
		"google_books_api_key": &AppConfig.APIKeys.GoogleBooks,
		"openai_api_key":       &AppConfig.APIKeys.OpenAI,
	}
	for key, ptr := range stringFallbacks {
		if *ptr == "" {
			if val, ok := fileConfig[key].(string); ok && val != "" {
				*ptr = val
				applied++
				log.Printf("[INFO] Loaded %s from config file", key)
			}
		}
	}

	if applied > 0 {
		log.Printf("Applied %d settings from config file %s", applied, path)
	}
	return nil
}

// SaveConfigToFile writes key settings to a YAML config file next to the
// database. Secrets are stored in plaintext here, file permissions restrict
// access.
func SaveConfigToFile() error {
	path := ConfigFilePath()
	if path == "" {
		return fmt.Errorf("cannot determine config file path")
	}

	fileConfig := map[string]any{
		"server_port":            AppConfig.ServerPort,
		"database_path":          AppConfig.DatabasePath,
		"provider_search_limit":  AppConfig.Provider.SearchLimit,
		"rate_limit_per_minute":  AppConfig.RateLimit.PerMinute,
		"unified_envelope":       AppConfig.Features.UnifiedEnvelope,
		"cache_quality_floor":    AppConfig.Cache.QualityFloor,
		"cache_negative_ttl":     AppConfig.Cache.NegativeTTL.String(),
		"batch_item_concurrency": AppConfig.Batch.ItemConcurrency,
	}

	// Only write secrets if they're set.
	if AppConfig.APIKeys.GoogleBooks != "" {
		fileConfig["google_books_api_key"] = AppConfig.APIKeys.GoogleBooks
	}
	if AppConfig.APIKeys.OpenAI != "" {
		fileConfig["openai_api_key"] = AppConfig.APIKeys.OpenAI
	}

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	// Write with restrictive permissions since it may contain secrets
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Printf("Configuration saved to file: %s", path)
	return nil
}
