/*
Package strategy implements the Coordinator Strategy accumulator (spec.md
§2 component C, §4.2): six in-memory, non-blocking, thread-safe queue
operations plus Flush, which moves the accumulated set to one
coordinator.Coordinator.Flush call and returns the claimed work.

If two handlers queue items against the same Strategy before the next
Flush, their items travel in one atomic process_work_batch call — the
"business change + outgoing events + inbox completion" transactional
envelope described in spec.md §4.2.
*/
package strategy
