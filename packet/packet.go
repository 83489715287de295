package packet

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Category discriminates the inter-node protocol packet kinds.
type Category string

const (
	// Point-to-point kinds.
	CategoryRequest  Category = "REQUEST"
	CategoryResponse Category = "RESPONSE"

	// Broadcast and control kinds.
	CategoryDiscover   Category = "DISCOVER"
	CategoryInfo       Category = "INFO"
	CategoryDisconnect Category = "DISCONNECT"
	CategoryHeartbeat  Category = "HEARTBEAT"
	CategoryPing       Category = "PING"
	CategoryPong       Category = "PONG"
	CategoryEvent      Category = "EVENT"

	// CategoryUnknown is the zero value for unrecognized packets.
	CategoryUnknown Category = "UNKNOWN"
)

// Synthetic routing keys for load-balanced group queues. They never appear as
// a packet's Category; they exist only in queue names and lifetime policy.
const (
	CategoryRequestLB Category = "REQUEST-LB"
	CategoryEventLB   Category = "EVENT-LB"
)

// Categories lists every category a packet may carry, in no particular order.
var Categories = []Category{
	CategoryRequest,
	CategoryResponse,
	CategoryDiscover,
	CategoryInfo,
	CategoryDisconnect,
	CategoryHeartbeat,
	CategoryPing,
	CategoryPong,
	CategoryEvent,
	CategoryUnknown,
}

// BroadcastCategories lists the categories delivered through fanout exchanges.
var BroadcastCategories = []Category{
	CategoryDiscover,
	CategoryInfo,
	CategoryDisconnect,
	CategoryHeartbeat,
	CategoryPing,
	CategoryEvent,
}

// ParseCategory maps a wire string to a Category, returning CategoryUnknown
// for anything not in the protocol.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryRequest, CategoryResponse, CategoryDiscover, CategoryInfo,
		CategoryDisconnect, CategoryHeartbeat, CategoryPing, CategoryPong,
		CategoryEvent:
		return Category(s)
	default:
		return CategoryUnknown
	}
}

// IsPointToPoint reports whether the category uses permanent queues with
// point-to-point durability semantics.
func (c Category) IsPointToPoint() bool {
	switch c {
	case CategoryRequest, CategoryResponse, CategoryRequestLB, CategoryEventLB:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Payload is the structured portion of a packet that this transit layer needs
// to inspect for routing. Data carries the caller's opaque body untouched.
type Payload struct {
	Action string          `json:"action,omitempty"`
	Event  string          `json:"event,omitempty"`
	Groups []string        `json:"groups,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Packet is one unit of inter-node traffic.
//
// Target semantics: an empty Target means "broadcast to all nodes", except for
// REQUEST where it means "route by action name to any capable worker".
type Packet struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Sender   string   `json:"sender"`
	Target   string   `json:"target,omitempty"`
	Payload  Payload  `json:"payload"`
}

// New creates a packet with a fresh ID.
func New(category Category, target string, payload Payload) *Packet {
	return &Packet{
		ID:       uuid.New().String(),
		Category: category,
		Target:   target,
		Payload:  payload,
	}
}

// IsBroadcast reports whether the packet fans out to every node.
func (p *Packet) IsBroadcast() bool {
	return p.Target == "" && p.Category != CategoryRequest && p.Category != CategoryResponse
}
