// Package processing runs the simulated enrichment step.
//
// Run drives a progress bar on a ticker and cycles through a list of
// company names, the same animation the processing view shows. A Runner
// starts one Run per wizard session, fans progress out to SSE subscribers,
// calls the enrichment provider once the bar is full, and hands the result
// back to the wizard. A Limiter caps the number of runs across sessions.
package processing
