// Package engine implements the incremental batch pipeline that turns an
// identifier list into one output artifact per identifier and bundles them
// into a timestamped archive.
//
// # Overview
//
// A run moves through fixed stages, each owned by one type:
//
//  1. Manifest - read the list, apply the duplicate policy (Pipeline.Manifest)
//  2. Plan - write a trigger for every identifier without an output (Planner)
//  3. Provision - fetch the shared resource once, atomically (Provisioner)
//  4. Execute - transform each pending trigger with bounded fan-out (Executor)
//  5. Aggregate - verify completeness and build the archive (Aggregator)
//  6. Publish - optionally ship the archive (Publisher)
//
// Resetter is a separate entry point that deletes artifacts by convention.
//
// # Memoization
//
// The presence of an identifier's output file is the only signal that its
// work is done. Timestamps are never consulted, so appending identifiers to
// the list schedules exactly the new ones:
//
//	run 1: 6kiv 6kix 6kiz  -> 3 triggers, 3 executions, archive of 3
//	run 2: (nothing new)   -> 0 triggers, archive of 3
//	run 3: + 1abc          -> 1 trigger, 1 execution, archive of 4
//
// A trigger's content, not its name, is the identifier handed to the
// transformer. A failed execution leaves its trigger behind, so the next run
// retries exactly the failed identifiers.
//
// # Error Classification
//
// Errors are PipelineError values classified by ErrorKind:
//
//   - not_found, invalid, fetch, incomplete, publish, internal: fatal, Run returns them
//   - execution: per item, collected into RunReport.ItemErrors
//
// Use the helpers to inspect them:
//
//	if engine.IsIncomplete(err) {
//	    // some outputs are missing; re-run to retry them
//	}
//
// # Thread Safety
//
// Pipeline.Run may be called repeatedly but not concurrently for the same
// work directory. Provisioner.Ensure is safe for concurrent use.
package engine
