// Package engine provides the concurrent workflow execution engine.
// It resolves action dependencies in rounds, dispatches every ready action
// of a round concurrently, persists a progress checkpoint after each round,
// and streams progress events to subscribers. Cancellation is cooperative
// and takes effect at round boundaries.
package engine
