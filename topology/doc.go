// Package topology encodes the broker-side shape of the packet protocol: the
// queue and exchange naming convention, the per-category lifetime policy, and
// the registry of bindings a node must unwind on disconnect.
package topology
