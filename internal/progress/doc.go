// Package progress provides encoding.Reporter sinks: a Tracker that keeps
// the latest snapshot of the running session for the HTTP progress
// endpoint, a log sink, and a fan-out combinator.
package progress
