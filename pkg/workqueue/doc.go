/*
Package workqueue implements the durable store and its single atomic
entry point, ProcessBatch, the "process_work_batch" unit-of-work that backs
the outbox/inbox publish-and-consume loop.

One call performs, inside a single transaction: heartbeat upsert, applying
reported completions and failures, cascading a stream's failure to its
later messages, inserting newly produced messages, renewing leases, and
claiming the next batch of work this instance is entitled to under modulo
partitioning and cross-instance stream ordering.

# Architecture

The package follows the same adapter pattern as pkg/messaging:
  - Store is defined here (zero external dependencies beyond domain types)
  - Each backing engine lives in its own sub-package (adapters/{postgres,memory})
  - Callers only import the adapter they deploy

# Usage

	import (
	    "github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	    "github.com/chris-alexander-pop/streamwork/pkg/workqueue/adapters/postgres"
	)

	store, err := postgres.New(postgres.Config{SQL: sqlAdapter})
	result, err := store.ProcessBatch(ctx, workqueue.BatchRequest{
	    InstanceID:  instanceID,
	    ServiceName: "order-service",
	})
*/
package workqueue
