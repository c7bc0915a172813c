// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package matcher wires the matching engine, billing ledger, and match
// persistence into the matchd HTTP service.
package matcher

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"meshmatch/platform/billing"
	"meshmatch/platform/matcher/engine"
	"meshmatch/platform/matcher/inference"
	"meshmatch/platform/matcher/inference/anthropic"
	"meshmatch/platform/matcher/inference/bedrock"
	"meshmatch/platform/matcher/matches"
	"meshmatch/platform/matcher/profile"
	"meshmatch/platform/shared/logger"
)

// Run starts the matchd service. Configuration comes from the environment:
//   - DATABASE_HOST / DATABASE_PORT / DATABASE_NAME / DATABASE_USER /
//     DATABASE_PASSWORD / DATABASE_SSLMODE: PostgreSQL connection
//   - DATABASE_URL: legacy single-string alternative to the above
//   - REDIS_URL: optional enrichment cache (e.g. redis://localhost:6379)
//   - INFERENCE_PROVIDER: "anthropic" (default) or "bedrock"
//   - ANTHROPIC_API_KEY: required for the anthropic provider
//   - INFERENCE_MODEL: model override for the chosen provider
//   - BEDROCK_REGION: AWS region for the bedrock provider
//   - MESHMATCH_PRICING_CONFIG: JSON pricing overrides
//   - MATCH_CONCURRENCY: ranking fan-out bound (default 8)
//   - PORT: HTTP listen port (default 8083)
func Run() {
	log.Println("Starting MeshMatch matcher...")

	appLog := logger.New("matchd")

	db, err := openDatabase()
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	pricing := billing.LoadPricingFromEnv()
	billingSvc := billing.NewService(billing.NewPostgresRepository(db), pricing)

	var cache *profile.EnrichmentCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = profile.NewEnrichmentCacheFromURL(redisURL, 0)
		if err != nil {
			// The cache is an optimization; a dead Redis only costs
			// recomputed enrichments.
			appLog.Warn("", "", "Enrichment cache unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() {
				_ = cache.Close()
			}()
		}
	}

	provider, err := buildProvider()
	if err != nil {
		log.Fatalf("Inference provider initialization failed: %v", err)
	}
	log.Printf("Using inference provider %s (model %s)", provider.Name(), provider.Model())

	eng, err := engine.New(engine.Config{
		Inference:           provider,
		Store:               profile.NewPostgresStore(db),
		Cache:               cache,
		Meter:               billingSvc,
		MaxConcurrentScores: envInt("MATCH_CONCURRENCY", engine.DefaultMaxConcurrentScores),
		Logger:              logger.New("matching-engine"),
	})
	if err != nil {
		log.Fatalf("Engine initialization failed: %v", err)
	}

	h := NewHandler(eng, matches.NewPostgresRepository(db), appLog)

	r := mux.NewRouter()

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Health and metrics
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	// Matching endpoints
	h.RegisterRoutes(r)

	// Billing and pricing endpoints
	billing.NewHandler(billingSvc).RegisterRoutes(r)

	port := getEnv("PORT", "8083")
	handler := c.Handler(r)
	log.Printf("MeshMatch matcher listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

// openDatabase builds the connection string from separate env vars
// (12-Factor style), falling back to DATABASE_URL, and verifies the
// connection before returning.
func openDatabase() (*sql.DB, error) {
	dbHost := os.Getenv("DATABASE_HOST")
	dbPort := os.Getenv("DATABASE_PORT")
	dbName := os.Getenv("DATABASE_NAME")
	dbUser := os.Getenv("DATABASE_USER")
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	dbSSLMode := os.Getenv("DATABASE_SSLMODE")

	dbURL := os.Getenv("DATABASE_URL")
	if dbHost != "" && dbPassword != "" {
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbName == "" {
			dbName = "meshmatch"
		}
		if dbUser == "" {
			dbUser = "meshmatch_app"
		}
		if dbSSLMode == "" {
			dbSSLMode = "require"
		}
		// URL-encode credentials to handle special characters
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			url.QueryEscape(dbUser), url.QueryEscape(dbPassword), dbHost, dbPort, dbName, dbSSLMode)
	}
	if dbURL == "" {
		return nil, fmt.Errorf("no database configured: set DATABASE_HOST/DATABASE_PASSWORD or DATABASE_URL")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// buildProvider selects the inference provider from the environment
func buildProvider() (inference.Service, error) {
	switch getEnv("INFERENCE_PROVIDER", "anthropic") {
	case "bedrock":
		return bedrock.NewProvider(context.Background(), bedrock.Config{
			Region: os.Getenv("BEDROCK_REGION"),
			Model:  os.Getenv("INFERENCE_MODEL"),
		})
	case "anthropic":
		return anthropic.NewProvider(anthropic.Config{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  os.Getenv("INFERENCE_MODEL"),
		})
	default:
		return nil, fmt.Errorf("unknown INFERENCE_PROVIDER %q", os.Getenv("INFERENCE_PROVIDER"))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
