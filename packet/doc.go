// Package packet defines the inter-node packet protocol carried over the bus.
//
// A Packet is the unit of exchange between nodes:
//   - REQUEST/RESPONSE: point-to-point calls between nodes
//   - EVENT: broadcast or group-balanced notifications
//   - DISCOVER/INFO/DISCONNECT/HEARTBEAT/PING/PONG: node lifecycle control traffic
//
// The wire encoding is pluggable through the Serializer interface; the default
// implementation is JSON so any runtime speaking the same topic naming
// convention can interoperate.
package packet
