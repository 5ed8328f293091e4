// file: internal/config/config_test.go
// version: 2.0.0
// guid: b2c3d4e5-f6a7-8b9c-0d1e-2f3a4b5c6d7e

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestInitConfig tests configuration initialization with defaults
func TestInitConfig(t *testing.T) {
	// Arrange
	viper.Reset()

	// Act
	InitConfig()

	// Assert - server and storage defaults
	if AppConfig.ServerPort != 8080 {
		t.Errorf("Expected server port 8080, got %d", AppConfig.ServerPort)
	}
	if AppConfig.DatabasePath != "data/bookstrack" {
		t.Errorf("Expected database_path 'data/bookstrack', got '%s'", AppConfig.DatabasePath)
	}

	// Verify cache TTL defaults
	if AppConfig.Cache.EdgeTTL != 60*time.Second {
		t.Errorf("Expected edge TTL 60s, got %v", AppConfig.Cache.EdgeTTL)
	}
	if AppConfig.Cache.ISBNEnrich != 8760*time.Hour {
		t.Errorf("Expected ISBN enrich TTL 365d, got %v", AppConfig.Cache.ISBNEnrich)
	}
	if AppConfig.Cache.ISBNSearch != 168*time.Hour {
		t.Errorf("Expected ISBN search TTL 7d, got %v", AppConfig.Cache.ISBNSearch)
	}
	if AppConfig.Cache.TitleSearch != 6*time.Hour {
		t.Errorf("Expected title search TTL 6h, got %v", AppConfig.Cache.TitleSearch)
	}
	if AppConfig.Cache.Cover != 720*time.Hour {
		t.Errorf("Expected cover TTL 30d, got %v", AppConfig.Cache.Cover)
	}
	if AppConfig.Cache.AIParse != 24*time.Hour {
		t.Errorf("Expected AI parse TTL 24h, got %v", AppConfig.Cache.AIParse)
	}

	// Negative caching is off unless configured
	if AppConfig.Cache.NegativeTTL != 0 {
		t.Errorf("Expected negative TTL disabled by default, got %v", AppConfig.Cache.NegativeTTL)
	}
}

// TestProviderDefaults tests provider fan-out configuration defaults
func TestProviderDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.Provider.Timeout != 5*time.Second {
		t.Errorf("Expected provider timeout 5s, got %v", AppConfig.Provider.Timeout)
	}
	if AppConfig.Provider.SearchLimit != 20 {
		t.Errorf("Expected search limit 20, got %d", AppConfig.Provider.SearchLimit)
	}
}

// TestRateLimitDefaults tests rate limit defaults
func TestRateLimitDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.RateLimit.PerMinute != 100 {
		t.Errorf("Expected 100 requests per minute, got %d", AppConfig.RateLimit.PerMinute)
	}
	if AppConfig.RateLimit.Window != time.Minute {
		t.Errorf("Expected 1m window, got %v", AppConfig.RateLimit.Window)
	}
}

// TestBatchDefaults tests batch job configuration defaults
func TestBatchDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if AppConfig.Batch.TokenLifetime != 2*time.Hour {
		t.Errorf("Expected token lifetime 2h, got %v", AppConfig.Batch.TokenLifetime)
	}
	if AppConfig.Batch.RefreshWindow != 30*time.Minute {
		t.Errorf("Expected refresh window 30m, got %v", AppConfig.Batch.RefreshWindow)
	}
	if AppConfig.Batch.Cleanup != 24*time.Hour {
		t.Errorf("Expected cleanup after 24h, got %v", AppConfig.Batch.Cleanup)
	}
	if AppConfig.Batch.PersistUpdateCount != 10 {
		t.Errorf("Expected persist every 10 updates, got %d", AppConfig.Batch.PersistUpdateCount)
	}
	if AppConfig.Batch.PersistInterval != 5*time.Second {
		t.Errorf("Expected persist interval 5s, got %v", AppConfig.Batch.PersistInterval)
	}
	if AppConfig.Batch.ItemConcurrency != 3 {
		t.Errorf("Expected item concurrency 3, got %d", AppConfig.Batch.ItemConcurrency)
	}
}

// TestFeatureDefaults tests feature toggle defaults
func TestFeatureDefaults(t *testing.T) {
	viper.Reset()
	InitConfig()

	if !AppConfig.Features.UnifiedEnvelope {
		t.Error("Expected unified envelope to be on by default")
	}
}

// TestConfigOverrides tests that viper values override defaults
func TestConfigOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("server.port", 9090)
	viper.Set("cache.ttl.title_search", "12h")
	viper.Set("feature.unified_envelope", false)

	InitConfig()

	if AppConfig.ServerPort != 9090 {
		t.Errorf("Expected server port override 9090, got %d", AppConfig.ServerPort)
	}
	if AppConfig.Cache.TitleSearch != 12*time.Hour {
		t.Errorf("Expected title search TTL override 12h, got %v", AppConfig.Cache.TitleSearch)
	}
	if AppConfig.Features.UnifiedEnvelope {
		t.Error("Expected unified envelope override to false")
	}
}

// TestAPIKeysFromViper tests API key plumbing
func TestAPIKeysFromViper(t *testing.T) {
	viper.Reset()
	viper.Set("api_keys.google_books", "gb-key")
	viper.Set("api_keys.openai", "sk-test")

	InitConfig()

	if AppConfig.APIKeys.GoogleBooks != "gb-key" {
		t.Errorf("Expected Google Books key 'gb-key', got '%s'", AppConfig.APIKeys.GoogleBooks)
	}
	if AppConfig.APIKeys.OpenAI != "sk-test" {
		t.Errorf("Expected OpenAI key 'sk-test', got '%s'", AppConfig.APIKeys.OpenAI)
	}
}
