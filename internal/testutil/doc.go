// Package testutil provides fluent builders for messages and memory
// entries so tests read as scenarios instead of struct literals. Tests
// only; nothing here is part of the public API.
package testutil
