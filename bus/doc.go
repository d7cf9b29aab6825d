// Package bus implements per-world message dispatch: an explicit
// subscription registry created per world, exactly-once delivery to
// subscribed agents that pass the response decision, strict per-agent
// FIFO ordering, and failure isolation so one broken handler never
// stalls its siblings.
//
// Publish schedules work and returns; handler completion is never
// awaited. Unsubscribe is synchronous: once it returns, the agent's
// handler will not be invoked again.
package bus
