package ftn

import (
	"fmt"

	"github.com/stlalpha/impulse-bbs/internal/jam"
)

// FidoAddress is the address type routing decisions are expressed over,
// reused directly from the JAM package rather than duplicated.
type FidoAddress = jam.FidoAddress

// RoutingKind tags a RoutingDecision's variant.
type RoutingKind int

const (
	RouteLocal RoutingKind = iota
	RouteDirect
	RouteViaHub
	RouteViaGate
	RouteUnroutable
)

func (k RoutingKind) String() string {
	switch k {
	case RouteLocal:
		return "Local"
	case RouteDirect:
		return "Direct"
	case RouteViaHub:
		return "ViaHub"
	case RouteViaGate:
		return "ViaGate"
	case RouteUnroutable:
		return "Unroutable"
	default:
		return "Unknown"
	}
}

// RoutingDecision is the result of routing a message to destination: every
// routable decision carries NextHop and FinalDestination; Unroutable
// carries a Reason instead.
type RoutingDecision struct {
	Kind             RoutingKind
	NextHop          FidoAddress
	FinalDestination FidoAddress
	Reason           string
}

func (d RoutingDecision) String() string {
	if d.Kind == RouteUnroutable {
		return fmt.Sprintf("Unroutable(%s)", d.Reason)
	}
	return fmt.Sprintf("%s(next_hop=%s, final=%s)", d.Kind, d.NextHop.String(), d.FinalDestination.String())
}

// RouterConfig names the local node and its optional zone hub / gate
// addresses used to route mail that isn't locally deliverable.
type RouterConfig struct {
	Local FidoAddress
	Hub   *FidoAddress
	Gate  *FidoAddress
}

// NewRouterConfig constructs a config for the given local address.
func NewRouterConfig(local FidoAddress) RouterConfig {
	return RouterConfig{Local: local}
}

// WithHub sets the zone hub address used for ViaHub routing.
func (c RouterConfig) WithHub(hub FidoAddress) RouterConfig {
	c.Hub = &hub
	return c
}

// WithGate sets the gateway address used for ViaGate routing.
func (c RouterConfig) WithGate(gate FidoAddress) RouterConfig {
	c.Gate = &gate
	return c
}

// sameNode reports whether two addresses refer to the same node, ignoring
// point.
func sameNode(a, b FidoAddress) bool {
	return a.Zone == b.Zone && a.Net == b.Net && a.Node == b.Node
}

// Route decides how to forward mail addressed to destination:
//   - same node as local                         -> Local
//   - same zone and net                          -> Direct
//   - same zone, different net, hub known         -> ViaHub
//   - same zone, different net, no hub            -> Unroutable("no hub")
//   - different zone, gate known                  -> ViaGate
//   - different zone, no gate                     -> Unroutable("no gate")
func (c RouterConfig) Route(destination FidoAddress) RoutingDecision {
	if sameNode(destination, c.Local) {
		return RoutingDecision{Kind: RouteLocal, NextHop: destination, FinalDestination: destination}
	}

	if destination.Zone == c.Local.Zone {
		if destination.Net == c.Local.Net {
			return RoutingDecision{Kind: RouteDirect, NextHop: destination, FinalDestination: destination}
		}
		if c.Hub != nil {
			return RoutingDecision{Kind: RouteViaHub, NextHop: *c.Hub, FinalDestination: destination}
		}
		return RoutingDecision{Kind: RouteUnroutable, FinalDestination: destination, Reason: "no hub"}
	}

	if c.Gate != nil {
		return RoutingDecision{Kind: RouteViaGate, NextHop: *c.Gate, FinalDestination: destination}
	}
	return RoutingDecision{Kind: RouteUnroutable, FinalDestination: destination, Reason: "no gate"}
}
