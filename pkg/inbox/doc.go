// Package inbox implements the Inbox Consumer Worker (spec.md §4.4): the
// transport-side counterpart of pkg/outbox. It subscribes to a set of
// destinations, deduplicates deliveries, invokes a dispatcher in a
// per-message scope, and reports completions/failures through the
// coordinator strategy.
//
// Delivery and handling are split. pkg/transport calls the worker's handler
// on every delivery, and that handler only dedup-checks the message and
// queues it as a new inbox row on the strategy. Like the outbox worker, Run
// polls: it flushes the strategy, handles only the inbox rows that flush
// claimed under lease, and reports each outcome (plus any cascade events the
// handler produced) on a later flush.
package inbox
