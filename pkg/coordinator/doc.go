/*
Package coordinator is the Work Coordinator client (spec.md §2 component B):
it serializes one Request into a workqueue.BatchRequest carrying this
instance's identity, issues a single ProcessBatch call, and returns the
claimed work. It holds no state of its own beyond identity and tunables —
accumulation lives one layer up, in pkg/strategy.
*/
package coordinator
