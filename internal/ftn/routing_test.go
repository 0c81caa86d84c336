package ftn

import "testing"

func addr(zone, net, node, point int) FidoAddress {
	return FidoAddress{Zone: zone, Net: net, Node: node, Point: point}
}

func TestRouteLocal(t *testing.T) {
	cfg := NewRouterConfig(addr(1, 2, 3, 0))
	d := cfg.Route(addr(1, 2, 3, 5)) // point differs, still same node
	if d.Kind != RouteLocal {
		t.Fatalf("expected Local, got %v", d.Kind)
	}
}

func TestRouteDirect(t *testing.T) {
	cfg := NewRouterConfig(addr(1, 2, 3, 0))
	d := cfg.Route(addr(1, 2, 99, 0))
	if d.Kind != RouteDirect {
		t.Fatalf("expected Direct, got %v", d.Kind)
	}
}

func TestRouteViaHub(t *testing.T) {
	cfg := NewRouterConfig(addr(1, 2, 3, 0)).WithHub(addr(1, 1, 1, 0))
	d := cfg.Route(addr(1, 99, 5, 0))
	if d.Kind != RouteViaHub || d.NextHop != (addr(1, 1, 1, 0)) {
		t.Fatalf("expected ViaHub via 1:1/1, got %+v", d)
	}
}

func TestRouteUnroutableNoHub(t *testing.T) {
	cfg := NewRouterConfig(addr(1, 2, 3, 0))
	d := cfg.Route(addr(1, 99, 5, 0))
	if d.Kind != RouteUnroutable || d.Reason != "no hub" {
		t.Fatalf("expected Unroutable(no hub), got %+v", d)
	}
}

func TestRouteViaGate(t *testing.T) {
	cfg := NewRouterConfig(addr(1, 2, 3, 0)).WithGate(addr(99, 1, 1, 0))
	d := cfg.Route(addr(2, 5, 5, 0))
	if d.Kind != RouteViaGate {
		t.Fatalf("expected ViaGate, got %+v", d)
	}
}

func TestRouteUnroutableNoGate(t *testing.T) {
	cfg := NewRouterConfig(addr(1, 2, 3, 0))
	d := cfg.Route(addr(2, 5, 5, 0))
	if d.Kind != RouteUnroutable || d.Reason != "no gate" {
		t.Fatalf("expected Unroutable(no gate), got %+v", d)
	}
}
