// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the MeshMatch matcher service.
//
// matchd serves the AI compatibility-matching API: profile enrichment,
// pairwise scoring, candidate ranking, match persistence, and the
// usage-metering/billing endpoints that account for every inference call.
//
// Usage:
//
//	./matchd
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8083)
//	DATABASE_URL - PostgreSQL connection string
//	REDIS_URL - enrichment cache (optional)
//	INFERENCE_PROVIDER - "anthropic" (default) or "bedrock"
//	ANTHROPIC_API_KEY - Anthropic API key
//	BEDROCK_REGION - AWS Bedrock region (optional)
package main

import (
	"meshmatch/platform/matcher"
)

func main() {
	matcher.Run()
}
