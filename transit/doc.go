// Package transit maps the inter-node packet protocol onto broker primitives.
//
// Each packet category gets a distinct delivery topology, reliability mode and
// lifetime policy:
//   - REQUEST/RESPONSE: point-to-point queues, permanent
//   - balanced REQUEST and grouped EVENT: shared queues with competing
//     consumers and ack-guarded redelivery
//   - control traffic (DISCOVER, INFO, HEARTBEAT, ...): fanout exchanges with
//     short-lived auto-deleting per-node queues, fire-and-forget
//
// The Subscriber declares the fixed category topology, the Publisher routes
// outgoing packets, and the TopologyBuilder declares the action and grouped
// event queues whose names are only known once the local service set is.
// All three share one channel through a ChannelProvider and treat an absent
// channel as "complete as a no-op" since disconnection mid-flight is an
// expected race.
package transit
