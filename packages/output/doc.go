// Package output renders run results.
//
// The console listener prints progress live as workers report. The other
// formats write a complete report once the run has finished:
//   - JSON: machine-readable records and summary
//   - JUnit: JUnit XML for CI integration
//   - TAP: Test Anything Protocol
//   - HTML: a standalone page linking failure screenshots
package output
