package coordinator

import (
	"context"

	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
)

// Identity is the instance-identifying information attached to every
// ProcessBatch call.
type Identity struct {
	InstanceID  string
	ServiceName string
	HostName    string
	ProcessID   int
}

// Request is the accumulated set of queued operations pkg/strategy flushes
// through a Coordinator in one call. It omits identity and tunables, which
// the Coordinator fills in from its own configuration.
type Request struct {
	Metadata []byte

	OutboxCompletions []workqueue.Completion
	OutboxFailures    []workqueue.Failure
	InboxCompletions  []workqueue.Completion
	InboxFailures     []workqueue.Failure

	NewOutboxMessages []workqueue.NewMessage
	NewInboxMessages  []workqueue.NewMessage

	RenewOutboxLeaseIDs []uuid.UUID
	RenewInboxLeaseIDs  []uuid.UUID
}

// Coordinator is the interface pkg/strategy depends on: one call in, one
// batch result out. No back-pointer to the strategy (spec.md §9).
type Coordinator interface {
	Flush(ctx context.Context, req Request) (*workqueue.BatchResult, error)
}

// Client is the default Coordinator: a thin wrapper over a workqueue.Store
// plus this instance's identity and tunables.
type Client struct {
	store    workqueue.Store
	identity Identity
	cfg      workqueue.Config
}

// New builds a Client over store for the given instance identity.
func New(store workqueue.Store, identity Identity, cfg workqueue.Config) *Client {
	return &Client{store: store, identity: identity, cfg: cfg}
}

// Flush issues one process_work_batch call carrying req plus this client's
// identity and configured tunables.
func (c *Client) Flush(ctx context.Context, req Request) (*workqueue.BatchResult, error) {
	batchReq := c.cfg.Apply(workqueue.BatchRequest{
		InstanceID:  c.identity.InstanceID,
		ServiceName: c.identity.ServiceName,
		HostName:    c.identity.HostName,
		ProcessID:   c.identity.ProcessID,
		Metadata:    req.Metadata,

		OutboxCompletions: req.OutboxCompletions,
		OutboxFailures:    req.OutboxFailures,
		InboxCompletions:  req.InboxCompletions,
		InboxFailures:     req.InboxFailures,

		NewOutboxMessages: req.NewOutboxMessages,
		NewInboxMessages:  req.NewInboxMessages,

		RenewOutboxLeaseIDs: req.RenewOutboxLeaseIDs,
		RenewInboxLeaseIDs:  req.RenewInboxLeaseIDs,
	})

	return c.store.ProcessBatch(ctx, batchReq)
}
