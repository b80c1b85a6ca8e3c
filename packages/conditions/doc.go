// Package conditions provides the readiness predicates page steps wait on:
// visibility, clickability, presence, text, URL, alerts, frames and the
// document ready state. Each predicate is a wait.Predicate; Waiter bundles
// them with the configured timeout and polling interval.
package conditions
