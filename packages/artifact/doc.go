// Package artifact captures screenshots from live sessions and writes them
// to the configured directory as {test}_{timestamp}.png.
//
// Capture failures are reported as *CaptureError. Callers log them and
// carry on; a missing screenshot never changes a test's outcome.
package artifact
