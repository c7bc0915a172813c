// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger provides structured JSON logging for MeshMatch services.

Log entries are written to stdout as single-line JSON so they can be
consumed directly by CloudWatch, ELK, or any other log aggregator.

Each entry includes:
  - Timestamp (RFC3339Nano)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (matcher, billing, etc.)
  - Instance ID and container name
  - User ID (the platform member the operation concerns)
  - Request ID (for correlation)
  - Custom fields

Create a logger for your component:

	log := logger.New("matcher")

Log messages with user and request context:

	log.Info("user-123", "req-456", "Scoring candidate pair", map[string]interface{}{
	    "candidate": "user-789",
	})

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
