// Package retry decides whether a failed test is re-run. Attempts are
// counted per test identity, so concurrent workers running different tests
// never share a counter and a test that eventually passes starts fresh.
package retry
