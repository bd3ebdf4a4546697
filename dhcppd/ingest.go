/*
Copyright 2026 jr42.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dhcppd

import (
	"net/netip"
	"strings"

	"github.com/go-logr/logr"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/lsdb"
)

// Source is the DHCPv6-PD external interface: get the router's currently
// delegated prefix as "<ipv6>/<len>", or report it absent. Implemented by
// Client.
type Source interface {
	GetDelegatedPrefix() (string, bool)
}

// Ingestor queries Source on every Sync call, parses the delegated prefix,
// and synchronizes the resulting USP into every area it watches — adding
// it when new, removing it when the source goes absent or changes to a
// different prefix. Any change triggers an AC-LSA re-emission schedule for
// every watched area.
type Ingestor struct {
	Source Source
	Areas  []*area.Area
	Log    logr.Logger

	current     netip.Prefix
	haveCurrent bool
}

// NewIngestor builds an Ingestor over the given areas. areas is the full
// set of areas this router participates in; the merged USP is added to
// every one of them, since the delegated prefix is router-wide, not
// per-area.
func NewIngestor(src Source, areas []*area.Area, log logr.Logger) *Ingestor {
	return &Ingestor{
		Source: src,
		Areas:  areas,
		Log:    log.WithName("dhcppd-ingest"),
	}
}

// Sync queries the source once and reconciles. It returns true if any
// area's USP set changed, so the caller knows to re-run assignment before
// the AC-LSA scheduler fires.
func (in *Ingestor) Sync() bool {
	raw, ok := in.Source.GetDelegatedPrefix()
	next, parsed := parseDelegated(raw, ok)
	if ok && !parsed {
		in.Log.Info("malformed delegated prefix treated as absent", "raw", raw)
	}

	switch {
	case in.haveCurrent && parsed && next == in.current:
		return false

	case in.haveCurrent && !parsed:
		in.removeFromAll(in.current)
		in.haveCurrent = false
		in.Log.Info("delegated prefix withdrawn", "prefix", in.current)
		return true

	case in.haveCurrent && parsed && next != in.current:
		in.removeFromAll(in.current)
		in.addToAll(next)
		old := in.current
		in.current = next
		in.Log.Info("delegated prefix changed", "old", old, "new", next)
		return true

	case !in.haveCurrent && parsed:
		in.addToAll(next)
		in.current = next
		in.haveCurrent = true
		in.Log.Info("delegated prefix acquired", "prefix", next)
		return true

	default:
		// !in.haveCurrent && !parsed: still absent, nothing to do.
		return false
	}
}

// parseDelegated parses raw as "<ipv6>/<len>" when ok is true. A malformed
// or absent value is treated as absent: no state mutation, caller logs and
// moves on.
func parseDelegated(raw string, ok bool) (netip.Prefix, bool) {
	if !ok || strings.TrimSpace(raw) == "" {
		return netip.Prefix{}, false
	}
	p, err := netip.ParsePrefix(raw)
	if err != nil {
		return netip.Prefix{}, false
	}
	return p.Masked(), true
}

func (in *Ingestor) addToAll(p netip.Prefix) {
	for _, ar := range in.Areas {
		ar.USPs = append(ar.USPs, lsdb.USP{
			Prefix:   p,
			Origin:   lsdb.OriginDHCPv6PD,
			RouterID: ar.OurRouterID,
		})
		ar.Scheduler.Schedule(ar.Name)
	}
}

func (in *Ingestor) removeFromAll(p netip.Prefix) {
	for _, ar := range in.Areas {
		out := ar.USPs[:0]
		for _, usp := range ar.USPs {
			if usp.Origin == lsdb.OriginDHCPv6PD && usp.Prefix == p {
				continue
			}
			out = append(out, usp)
		}
		ar.USPs = out
		ar.Scheduler.Schedule(ar.Name)
	}
}
