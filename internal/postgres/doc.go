// Package postgres wires pgx connection pools for the assessment store.
//
// Every query passes through a tracer that layers structured logging,
// per-request statistics, and a pluggable duration observer on top of the
// otelpgx spans. Query arguments are never logged since they carry patient
// symptom text; only their count is recorded.
package postgres
