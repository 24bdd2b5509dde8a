// Package report times benchmark calls and writes one row per sweep leaf.
//
// A sweep talks to a Sink in a fixed order: Begin once per build
// combination, Emit once per leaf, End when the combination is done.
// Emit is synchronous and flushes before returning, so an interrupted run
// leaves a complete partial report.
package report
