/*
Package concurrency provides the bounded-concurrency primitives the outbox
and inbox workers run claimed batches through.

Features:
  - SafeGo: panic-recovering goroutine launch
  - FanOut: unbounded parallel fan-out over a batch, used where the batch
    size itself is the only bound that matters
  - Semaphore: weighted semaphore, used to cap concurrent handler execution
  - WorkerPool: bounded goroutine pool, used where a batch must be
    published/processed with a hard concurrency ceiling
*/
package concurrency
