/*
Package eventstore implements the append-only per-stream event log: the
durable backbone read models replay from. Every append allocates the next
monotonic sequence number for its stream; reads are ordered ascending by
sequence and make no promise across streams.

# Usage

	import (
	    "github.com/chris-alexander-pop/streamwork/pkg/eventstore"
	    "github.com/chris-alexander-pop/streamwork/pkg/eventstore/adapters/postgres"
	)

	store, err := postgres.New(postgres.Config{SQL: sqlAdapter})
	seq, err := store.Append(ctx, streamID, eventID, "order.created", payload)
*/
package eventstore
