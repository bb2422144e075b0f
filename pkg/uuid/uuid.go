// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package uuid provides random unique identifiers for process-local
resources.

Task identifiers (spec §4.9) are not persisted to any database and have
no clustered-index concern, so plain Version 4 (random) UUIDs are used
instead of the time-ordered Version 7 scheme the ambient request-tracing
layer uses; see [github.com/novelforge/novelforge/pkg/uuidv7].
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new random UUIDv4 string.
func New() string {
	return uuid.New().String()
}

// Must is an alias for [New] kept for call-site readability.
func Must() string {
	return New()
}
