// Package bikecounters exports NYC automated bicycle counts from the
// Eco-Counter API for the Open Data portal.
//
// # Architecture
//
// The job is structured into several key packages:
//   - config: YAML and environment configuration, secret file loading
//   - api: Eco-Counter client for tokens, sites and count series
//   - models: ordered records, steps and date handling
//   - export: dated run directory and CSV tables
//   - pipeline: the fetch, filter and write run
//   - database: optional TimescaleDB store for published counts
//   - metrics: Prometheus collectors written to a textfile
//   - scheduler: cron-driven repeated runs
//
// Key Features
//
//   - Completed months only:
//     Count rows dated on or after the first day of the current month
//     are never published.
//
//   - Partial output:
//     A site that cannot be fetched is reported at the end of the run
//     while every other site is still written.
//
//   - Repeatable:
//     Re-running on the same day rewrites the same dated directory with
//     identical content.
//
// Example Usage
//
//	client := api.NewClient(opts, http.DefaultClient, logger, m)
//	tokens := api.NewTokenSource(client, creds, 0)
//	report, err := pipeline.NewExporter(client, tokens, nil, m, logger, pipeline.Options{
//	    OutputRoot: ".",
//	    Step:       models.Step15m,
//	    Workers:    1,
//	    Combined:   true,
//	}).Run(ctx)
//
// For more information about specific packages, see their respective
// documentation.
package bikecounters
