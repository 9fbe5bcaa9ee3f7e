/*
Package outbox implements the Outbox Publisher Worker (spec.md §2 component
D, §4.3): wait for the transport to be ready, flush the strategy for the
current outbox batch, publish each message in parallel, queue completions
or failures for the next flush, and repeat.

Publishing within a batch is parallel; the coordinator — not this worker —
guarantees per-stream ordering, so the worker never assumes anything about
the order results arrive in.
*/
package outbox
