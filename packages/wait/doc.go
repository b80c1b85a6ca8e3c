// Package wait polls a predicate against a live session until it is ready,
// a deadline passes, or the predicate reports an error it cannot recover from.
//
// Predicates return a tri-state Result instead of signalling "not yet" with
// errors: Ready carries the value, NotReady keeps polling, Fatal aborts at
// once. Errors listed in a Descriptor's Ignore set are downgraded from Fatal
// to NotReady, which is how element-not-found and stale references are
// tolerated while a page renders.
package wait
