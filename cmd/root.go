// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Shapuzzz/bookstrack-backend/internal/cache"
	"github.com/Shapuzzz/bookstrack-backend/internal/config"
	"github.com/Shapuzzz/bookstrack-backend/internal/jobs"
	"github.com/Shapuzzz/bookstrack-backend/internal/orchestrator"
	"github.com/Shapuzzz/bookstrack-backend/internal/providers"
	"github.com/Shapuzzz/bookstrack-backend/internal/server"
	"github.com/Shapuzzz/bookstrack-backend/internal/storage"
)

var cfgFile string
var databasePath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookstrack-backend",
	Short: "Book metadata enrichment and batch orchestration service",
	Long: `Bookstrack Backend resolves book metadata from Google Books and
Open Library, merges and caches the results, and runs batch enrichment
jobs with real-time progress streaming.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server with the search, cache, and batch enrichment endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig

		kv, err := cache.OpenKVCache(filepath.Join(cfg.DatabasePath, "cache"))
		if err != nil {
			return fmt.Errorf("failed to open cache store: %w", err)
		}
		defer kv.Close()

		jobStore, err := storage.NewPebbleStore(filepath.Join(cfg.DatabasePath, "jobs"))
		if err != nil {
			return fmt.Errorf("failed to open job store: %w", err)
		}
		defer jobStore.Close()

		cacheSvc := cache.NewService(
			cache.NewEdgeCache(cfg.Cache.EdgeTTL),
			kv,
			cache.Options{
				Policy: cache.TTLPolicy{
					ISBNEnrich:  cfg.Cache.ISBNEnrich,
					ISBNSearch:  cfg.Cache.ISBNSearch,
					TitleSearch: cfg.Cache.TitleSearch,
					Cover:       cfg.Cache.Cover,
					AIParse:     cfg.Cache.AIParse,
				},
				EdgeTTL:      cfg.Cache.EdgeTTL,
				QualityFloor: cfg.Cache.QualityFloor,
				NegativeTTL:  cfg.Cache.NegativeTTL,
			},
		)

		clients := []providers.Client{
			providers.NewGoogleBooksClient(cfg.APIKeys.GoogleBooks, cfg.Provider.Timeout),
			providers.NewOpenLibraryClient(cfg.Provider.Timeout),
		}
		covers := providers.NewOpenLibraryCoversClient(cfg.Provider.Timeout)
		orch := orchestrator.New(clients, covers, 5*time.Second)

		registry := jobs.NewRegistry(jobs.Config{
			TokenLifetime:      cfg.Batch.TokenLifetime,
			RefreshWindow:      cfg.Batch.RefreshWindow,
			CleanupAfter:       cfg.Batch.Cleanup,
			PersistUpdateCount: cfg.Batch.PersistUpdateCount,
			PersistInterval:    cfg.Batch.PersistInterval,
			ItemConcurrency:    cfg.Batch.ItemConcurrency,
		}, jobStore, jobs.NewCachedEnricher(cacheSvc, orch))

		vision := providers.NewVisionParser(cfg.APIKeys.OpenAI)

		srv := server.NewServer(server.Options{
			Cache:           cacheSvc,
			Orchestrator:    orch,
			Registry:        registry,
			Vision:          vision,
			UnifiedEnvelope: cfg.Features.UnifiedEnvelope,
			SearchLimit:     cfg.Provider.SearchLimit,
			RateLimit:       cfg.RateLimit.PerMinute,
			RateWindow:      cfg.RateLimit.Window,
		})

		serverCfg := server.ServerConfig{
			Port:         fmt.Sprintf("%d", cfg.ServerPort),
			Host:         "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Override with command line flags if provided
		if port := cmd.Flag("port").Value.String(); port != "" {
			serverCfg.Port = port
		}
		if host := cmd.Flag("host").Value.String(); host != "" {
			serverCfg.Host = host
		}
		if rt := cmd.Flag("read-timeout").Value.String(); rt != "" {
			if d, err := time.ParseDuration(rt); err == nil {
				serverCfg.ReadTimeout = d
			}
		}
		if wt := cmd.Flag("write-timeout").Value.String(); wt != "" {
			if d, err := time.ParseDuration(wt); err == nil {
				serverCfg.WriteTimeout = d
			}
		}

		fmt.Printf("Using data directory: %s\n", cfg.DatabasePath)
		return srv.Start(serverCfg)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bookstrack-backend.yaml)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "data/bookstrack", "data directory for caches and job state")

	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(serveCmd)

	// Add serve command specific flags
	serveCmd.Flags().String("port", "", "port to run the API server on")
	serveCmd.Flags().String("host", "", "host to bind the API server to")
	serveCmd.Flags().String("read-timeout", "15s", "read timeout (e.g. 15s, 1m)")
	serveCmd.Flags().String("write-timeout", "15s", "write timeout (e.g. 15s, 1m)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bookstrack-backend")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	// Ensure the data directory exists
	if databasePath != "" {
		if err := os.MkdirAll(databasePath, 0755); err != nil {
			fmt.Printf("Error creating data directory: %v\n", err)
		}
	}

	config.InitConfig()

	// File fallback fills API-key gaps left by env and flags.
	if err := config.LoadConfigFromFile(); err != nil {
		fmt.Printf("Error loading config file fallback: %v\n", err)
	}
}
