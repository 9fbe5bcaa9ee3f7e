/*
Package transport defines the capability contract consumed by the outbox
and inbox workers (spec.md §6): Publish for fire-and-forget delivery,
Subscribe for a pausable/resumable/disposable subscription, and an optional
Send for request/reply. Adapters declare which of PublishSubscribe,
Reliable, and RequestResponse they support via a capability bitmap.

# Architecture

Same adapter pattern as pkg/messaging and pkg/workqueue:
  - Core interfaces are defined here
  - Each adapter lives in its own sub-package (adapters/{memory,kafka,nats,rabbitmq})
*/
package transport
