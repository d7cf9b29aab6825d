// Package model defines the generation collaborator: a Model turns an
// agent's system prompt and visible history into a single response.
// Failures are surfaced as one error outcome; callers never retry
// through this layer. Provider adapters live in subpackages, and
// MockModel serves tests and examples.
package model
