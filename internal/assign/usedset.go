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

package assign

import (
	"net/netip"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/prefix"
)

// StealCandidate is the lowest-priority competing assignment strictly below
// our interface's pa_priority, rounded down to L_pref length. The
// competitor may be a peer router's advertised ASP or one of our own
// records installed at a different interface priority.
type StealCandidate struct {
	Prefix   netip.Prefix
	Priority uint8
	PeerRID  uint32
}

// SplitCandidate is the first assignment found with length L_pref and
// priority equal to ours.
type SplitCandidate struct {
	Prefix  netip.Prefix
	PeerRID uint32
}

// competitor is one assignment record, from either the LSDB or our own
// local state, considered for the used-set and the steal/split candidates.
type competitor struct {
	prefix   netip.Prefix
	priority uint8
	rid      uint32
}

// CollectUsed builds the used-set for (usp, iface): every ASP inside usp
// advertised by any router other than us in any IASP block, plus every
// local record we own across the area, excluding the record `exclude` if
// non-nil (used when re-evaluating an /80→/64 upgrade with the existing
// /80 ignored). It also returns the steal and split candidates the
// allocate branch needs, drawn from the same combined set — a
// lower-priority assignment on one of our own other interfaces is as valid
// a steal/split target as a peer's.
func CollectUsed(ar *area.Area, usp netip.Prefix, iface *area.Interface, exclude *area.AssignmentRecord) (used []netip.Prefix, steal *StealCandidate, split *SplitCandidate) {
	lPref := ar.Config.LPref
	var competitors []competitor

	for _, p := range peerASPs(ar) {
		if prefix.Contains(usp, p.Prefix) {
			competitors = append(competitors, competitor{p.Prefix, p.Priority, p.RID})
		}
	}

	for _, ref := range ar.OwnRecords() {
		if ref.Record == exclude {
			continue
		}
		if prefix.Contains(usp, ref.Record.Prefix) {
			competitors = append(competitors, competitor{ref.Record.Prefix, ref.Record.PAPriority, ar.OurRouterID})
		}
	}

	for _, c := range competitors {
		used = append(used, c.prefix)

		if c.priority < iface.PAPriority {
			cand := prefix.Truncate(c.prefix, lPref)
			if steal == nil || c.priority < steal.Priority {
				steal = &StealCandidate{Prefix: cand, Priority: c.priority, PeerRID: c.rid}
			}
		}

		if split == nil && c.prefix.Bits() == lPref && c.priority == iface.PAPriority {
			split = &SplitCandidate{Prefix: c.prefix, PeerRID: c.rid}
		}
	}

	return used, steal, split
}
