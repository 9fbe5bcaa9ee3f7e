/*
Package dispatch routes a decoded inbox payload to its registered handler
and collects the cascade of outgoing events the handler produces.

Spec.md §9 describes the source's handler-return cascade (recursively
walking tuples/arrays for embedded event instances) and specifies the
target shape instead: a handler returns a tagged HandlerResult{Primary,
Events[]}, and the inbox worker walks Events explicitly — no reflection.
*/
package dispatch
