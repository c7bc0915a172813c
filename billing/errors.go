// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import "errors"

var (
	// ErrUnknownModel is returned when a price lookup targets a model
	// absent from the pricing table. Cost is never silently guessed.
	ErrUnknownModel = errors.New("unknown model: no pricing configured")

	// ErrAccountNotFound is returned when a billing account does not exist
	ErrAccountNotFound = errors.New("billing account not found")

	// ErrInvalidUserID is returned for an empty user ID
	ErrInvalidUserID = errors.New("invalid user ID")

	// ErrInvalidTokenCount is returned for negative token counts
	ErrInvalidTokenCount = errors.New("token counts must be non-negative")

	// ErrInvalidInput is returned for general invalid input
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentUpdate is returned when the cycle counter update loses
	// the optimistic-concurrency race too many times in a row
	ErrConcurrentUpdate = errors.New("concurrent billing account update")
)
