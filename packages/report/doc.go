// Package report aggregates terminal test outcomes across concurrently
// running workers into one run summary.
//
// An Aggregator is created once per run and shared by reference. Counter
// updates are atomic and listeners are invoked outside of any lock, so
// workers never wait on each other's I/O.
package report
