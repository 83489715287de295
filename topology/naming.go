package topology

import (
	"fmt"

	"github.com/busline/busline-go/packet"
)

// DefaultPrefix namespaces every queue and exchange this transit layer touches.
const DefaultPrefix = "BUS"

// Namer builds the queue and exchange names for one bus namespace. The layout
// must stay bit-exact across reimplementations, it is the interop contract:
//
//	{prefix}.{category}                   fanout exchange / control queue
//	{prefix}.{category}.{nodeID}          per-node queue
//	{prefix}.REQUEST-LB.{action}          shared action queue
//	{prefix}.EVENT-LB.{group}.{event}     grouped event queue
type Namer struct {
	prefix string
}

// NewNamer creates a Namer. An empty prefix falls back to DefaultPrefix.
func NewNamer(prefix string) Namer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Namer{prefix: prefix}
}

// Prefix returns the configured namespace prefix.
func (n Namer) Prefix() string {
	return n.prefix
}

// Exchange returns the fanout exchange name for a broadcast category.
func (n Namer) Exchange(category packet.Category) string {
	return fmt.Sprintf("%s.%s", n.prefix, category)
}

// NodeQueue returns the per-node queue name for a category.
func (n Namer) NodeQueue(category packet.Category, nodeID string) string {
	return fmt.Sprintf("%s.%s.%s", n.prefix, category, nodeID)
}

// ActionQueue returns the shared load-balanced queue for an action. Every
// worker hosting the action consumes from the same queue.
func (n Namer) ActionQueue(action string) string {
	return fmt.Sprintf("%s.%s.%s", n.prefix, packet.CategoryRequestLB, action)
}

// GroupedEventQueue returns the load-balanced queue for one consumer group of
// an event.
func (n Namer) GroupedEventQueue(group, event string) string {
	return fmt.Sprintf("%s.%s.%s.%s", n.prefix, packet.CategoryEventLB, group, event)
}
