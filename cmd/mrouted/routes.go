package main

import (
	"fmt"
	"log/slog"
	"net"
	"slices"

	"github.com/kuuji/mrouted/internal/config"
	"github.com/kuuji/mrouted/internal/iface"
	"github.com/kuuji/mrouted/internal/mroute"
)

// reconcileRoutes brings the router's installed routes in line with
// next. Entries dropped since prev are withdrawn (withdrawing a
// wildcard cascades over its dynamics), entries present in both are
// left untouched so a wildcard template is never re-filed, and new
// entries are installed. Returns the entries now applied, the first
// install error aside. Must only be called from the dispatcher
// goroutine.
func reconcileRoutes(router *mroute.Router, snap *iface.Snapshot, prev, next []config.RouteConfig) ([]config.RouteConfig, error) {
	for _, p := range prev {
		if containsRoute(next, p) {
			continue
		}
		if err := withdrawRoute(router, snap, p); err != nil {
			slog.Warn("withdrawing removed route", "group", p.Group, "error", err)
		}
	}

	var applied []config.RouteConfig
	var firstErr error
	for _, n := range next {
		if containsRoute(prev, n) {
			applied = append(applied, n)
			continue
		}
		if err := installRoute(router, snap, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied = append(applied, n)
	}
	return applied, firstErr
}

// routeConfigEqual reports whether two config entries declare the same
// forwarding entry, outbound fanout included.
func routeConfigEqual(a, b config.RouteConfig) bool {
	return a.Sender == b.Sender && a.Group == b.Group && a.Len == b.Len &&
		a.Inbound == b.Inbound && slices.Equal(a.Outbound, b.Outbound)
}

func containsRoute(list []config.RouteConfig, rc config.RouteConfig) bool {
	for _, e := range list {
		if routeConfigEqual(e, rc) {
			return true
		}
	}
	return false
}

// installRoute resolves rc against snap and installs it in the router,
// dispatching on the group's address family.
func installRoute(router *mroute.Router, snap *iface.Snapshot, rc config.RouteConfig) error {
	ip := net.ParseIP(rc.Group)
	if ip == nil {
		return fmt.Errorf("invalid group address %q", rc.Group)
	}
	if ip.To4() == nil {
		route, err := buildRoute6(snap, rc)
		if err != nil {
			return err
		}
		if err := router.AddRoute6(route); err != nil {
			return fmt.Errorf("route %s: %w", rc.Group, err)
		}
		return nil
	}
	route, err := buildRoute4(snap, rc)
	if err != nil {
		return err
	}
	if err := router.AddRoute4(route); err != nil {
		return fmt.Errorf("route %s: %w", rc.Group, err)
	}
	return nil
}

// withdrawRoute is installRoute's inverse.
func withdrawRoute(router *mroute.Router, snap *iface.Snapshot, rc config.RouteConfig) error {
	ip := net.ParseIP(rc.Group)
	if ip == nil {
		return fmt.Errorf("invalid group address %q", rc.Group)
	}
	if ip.To4() == nil {
		route, err := buildRoute6(snap, rc)
		if err != nil {
			return err
		}
		return router.DelRoute6(route)
	}
	route, err := buildRoute4(snap, rc)
	if err != nil {
		return err
	}
	return router.DelRoute4(route)
}

// buildRoute4 resolves a config.RouteConfig's interface names against snap
// and produces the mroute.Route4 the routing core expects.
func buildRoute4(snap *iface.Snapshot, rc config.RouteConfig) (mroute.Route4, error) {
	group := net.ParseIP(rc.Group)
	if group == nil || group.To4() == nil {
		return mroute.Route4{}, fmt.Errorf("route %s: not a valid IPv4 group address", rc.Group)
	}

	inbound, ok := snap.FindByName(rc.Inbound)
	if !ok {
		return mroute.Route4{}, fmt.Errorf("route %s: inbound interface %q not found", rc.Group, rc.Inbound)
	}

	route := mroute.Route4{Group: group, Inbound: inbound.VIF}

	if rc.Sender != "" {
		sender := net.ParseIP(rc.Sender)
		if sender == nil {
			return mroute.Route4{}, fmt.Errorf("route %s: invalid sender address %q", rc.Group, rc.Sender)
		}
		route.Sender = sender
	}
	if !route.Wildcard() {
		route.Len = 32
	} else {
		route.Len = rc.Len
		if route.Len == 0 {
			route.Len = 32
		}
	}

	for _, spec := range rc.Outbound {
		name, ttl := config.SplitOutbound(spec)
		out, ok := snap.FindByName(name)
		if !ok {
			return mroute.Route4{}, fmt.Errorf("route %s: outbound interface %q not found", rc.Group, name)
		}
		if out.VIF == iface.Unassigned {
			return mroute.Route4{}, fmt.Errorf("route %s: outbound interface %q has no VIF", rc.Group, name)
		}
		route.TTL[out.VIF] = ttl
	}

	return route, nil
}

// buildRoute6 is the IPv6 analogue of buildRoute4. IPv6 routes have no
// wildcard form, so rc.Sender must always be set.
func buildRoute6(snap *iface.Snapshot, rc config.RouteConfig) (mroute.Route6, error) {
	group := net.ParseIP(rc.Group)
	if group == nil || group.To4() != nil {
		return mroute.Route6{}, fmt.Errorf("route %s: not a valid IPv6 group address", rc.Group)
	}
	if rc.Sender == "" {
		return mroute.Route6{}, fmt.Errorf("route %s: IPv6 routes require an explicit sender", rc.Group)
	}
	sender := net.ParseIP(rc.Sender)
	if sender == nil {
		return mroute.Route6{}, fmt.Errorf("route %s: invalid sender address %q", rc.Group, rc.Sender)
	}

	inbound, ok := snap.FindByName(rc.Inbound)
	if !ok {
		return mroute.Route6{}, fmt.Errorf("route %s: inbound interface %q not found", rc.Group, rc.Inbound)
	}

	route := mroute.Route6{Sender: sender, Group: group, Inbound: inbound.MIF}

	for _, spec := range rc.Outbound {
		name, ttl := config.SplitOutbound(spec)
		out, ok := snap.FindByName(name)
		if !ok {
			return mroute.Route6{}, fmt.Errorf("route %s: outbound interface %q not found", rc.Group, name)
		}
		if out.MIF == iface.Unassigned {
			return mroute.Route6{}, fmt.Errorf("route %s: outbound interface %q has no MIF", rc.Group, name)
		}
		route.TTL[out.MIF] = ttl
	}

	return route, nil
}
