// Package workflow defines the Temporal workflows for durable evaluation.
//
// A workflow only validates input, sets activity options and schedules the
// evaluation activity. Completion calls, clocks and randomness live in
// activities so workflow code stays deterministic on replay.
package workflow
