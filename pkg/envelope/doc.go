/*
Package envelope defines the wire format exchanged over pkg/transport —
{message_id, hops[], payload} — and the explicit type registry the inbox
worker uses to decode a payload once its out-of-band envelope_type header
names which Go type it is.
*/
package envelope
