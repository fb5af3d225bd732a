// Package preflight validates the environment before docsift starts
// ingesting or serving queries.
//
// The package checks:
//   - Disk space at the data directory (minimum 100MB)
//   - Write permissions at the data directory
//   - File descriptor limits (minimum 1024)
//   - Embedding provider reachability and model availability
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
