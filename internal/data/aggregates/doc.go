// Package aggregates implements the quest write path.
//
// The stamp aggregate composes the progress and ledger repos from
// internal/data/repos and owns the transaction that keeps the ledger and the
// guest counters in step.
package aggregates
