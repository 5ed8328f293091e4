// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	ServerPort   int
	DatabasePath string

	APIKeys struct {
		GoogleBooks string // plain value or "env:NAME"
		OpenAI      string
	}

	Cache struct {
		EdgeTTL      time.Duration
		ISBNEnrich   time.Duration
		ISBNSearch   time.Duration
		TitleSearch  time.Duration
		Cover        time.Duration
		AIParse      time.Duration
		QualityFloor int
		NegativeTTL  time.Duration
	}

	Provider struct {
		Timeout     time.Duration
		SearchLimit int
	}

	RateLimit struct {
		PerMinute int
		Window    time.Duration
	}

	Batch struct {
		TokenLifetime      time.Duration
		RefreshWindow      time.Duration
		Cleanup            time.Duration
		PersistUpdateCount int
		PersistInterval    time.Duration
		ItemConcurrency    int
	}

	Features struct {
		UnifiedEnvelope bool
	}
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() {
	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database_path", "data/bookstrack")

	viper.SetDefault("cache.edge_ttl", "60s")
	viper.SetDefault("cache.ttl.isbn_enrich", "8760h") // 365 days
	viper.SetDefault("cache.ttl.isbn_search", "168h")  // 7 days
	viper.SetDefault("cache.ttl.title_search", "6h")
	viper.SetDefault("cache.ttl.cover", "720h") // 30 days
	viper.SetDefault("cache.ttl.ai_parse", "24h")
	viper.SetDefault("cache.quality_floor", 0)
	viper.SetDefault("cache.negative_ttl", "0s")

	viper.SetDefault("provider.timeout", "5s")
	viper.SetDefault("provider.search_limit", 20)

	viper.SetDefault("rate_limit.per_minute", 100)
	viper.SetDefault("rate_limit.window", "1m")

	viper.SetDefault("batch.token_lifetime", "2h")
	viper.SetDefault("batch.refresh_window", "30m")
	viper.SetDefault("batch.cleanup", "24h")
	viper.SetDefault("batch.persist.update_count", 10)
	viper.SetDefault("batch.persist.time_ms", 5000)
	viper.SetDefault("batch.item_concurrency", 3)

	viper.SetDefault("feature.unified_envelope", true)

	AppConfig = Config{
		ServerPort:   viper.GetInt("server.port"),
		DatabasePath: viper.GetString("database_path"),
	}

	// API Keys
	AppConfig.APIKeys.GoogleBooks = viper.GetString("api_keys.google_books")
	AppConfig.APIKeys.OpenAI = viper.GetString("api_keys.openai")

	AppConfig.Cache.EdgeTTL = viper.GetDuration("cache.edge_ttl")
	AppConfig.Cache.ISBNEnrich = viper.GetDuration("cache.ttl.isbn_enrich")
	AppConfig.Cache.ISBNSearch = viper.GetDuration("cache.ttl.isbn_search")
	AppConfig.Cache.TitleSearch = viper.GetDuration("cache.ttl.title_search")
	AppConfig.Cache.Cover = viper.GetDuration("cache.ttl.cover")
	AppConfig.Cache.AIParse = viper.GetDuration("cache.ttl.ai_parse")
	AppConfig.Cache.QualityFloor = viper.GetInt("cache.quality_floor")
	AppConfig.Cache.NegativeTTL = viper.GetDuration("cache.negative_ttl")

	AppConfig.Provider.Timeout = viper.GetDuration("provider.timeout")
	AppConfig.Provider.SearchLimit = viper.GetInt("provider.search_limit")

	AppConfig.RateLimit.PerMinute = viper.GetInt("rate_limit.per_minute")
	AppConfig.RateLimit.Window = viper.GetDuration("rate_limit.window")

	AppConfig.Batch.TokenLifetime = viper.GetDuration("batch.token_lifetime")
	AppConfig.Batch.RefreshWindow = viper.GetDuration("batch.refresh_window")
	AppConfig.Batch.Cleanup = viper.GetDuration("batch.cleanup")
	AppConfig.Batch.PersistUpdateCount = viper.GetInt("batch.persist.update_count")
	AppConfig.Batch.PersistInterval = time.Duration(viper.GetInt("batch.persist.time_ms")) * time.Millisecond
	AppConfig.Batch.ItemConcurrency = viper.GetInt("batch.item_concurrency")

	AppConfig.Features.UnifiedEnvelope = viper.GetBool("feature.unified_envelope")
}
