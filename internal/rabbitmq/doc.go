// Package rabbitmq owns the single broker connection and channel shared by
// every publisher and subscriber in the process.
//
// The manager deliberately performs no reconnection: a connection or channel
// error is terminal for this instance, surfaced to state listeners and to any
// pending Connect call. Retry and backoff, if wanted, are the caller's policy.
// The channel's prefetch limit is the sole backpressure mechanism, bounding
// how many unacknowledged deliveries the process accepts at once.
package rabbitmq
