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
	"context"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/lsdb"
	"github.com/jr42/ospf-pxassign/prefix"
)

// process resolves responsibility for one (usp, iface) pair, then runs
// exactly one of the three executor branches, reporting whether anything
// changed (kernel call or record mutation).
func process(ctx context.Context, log logr.Logger, ar *area.Area, usps []lsdb.USP, usp lsdb.USP, iface *area.Interface) bool {
	res := Resolve(ar, usps, usp, iface)
	if res.Abort {
		return false
	}

	switch {
	case res.HaveHp && res.OwnResponsibility:
		return executeKeepOwn(ctx, log, ar, usp, iface, res)
	case !res.OwnResponsibility && res.PeerAssignment != nil:
		return executeAcceptPeer(ctx, log, ar, iface, res)
	case res.HaveHp && res.Hr && !res.OwnResponsibility && res.PeerAssignment == nil:
		return executeAllocate(ctx, log, ar, usp, iface)
	default:
		return false
	}
}

// executeKeepOwn implements branch (keep-own).
func executeKeepOwn(ctx context.Context, log logr.Logger, ar *area.Area, usp lsdb.USP, iface *area.Interface, res Resolution) bool {
	self := res.SelfRecord
	checkOwnNonOverlap(ar, self)

	if collide, peerRID := selfCollision(ar, iface, self); collide {
		deleteRecord(ctx, log, ar, iface, self, "collision", peerRID)
		executeAllocate(ctx, log, ar, usp, iface)
		return true
	}

	if self.Prefix.Bits() == ar.Config.LFall {
		if attemptUpgrade(ctx, log, ar, usp, iface, self) {
			return true
		}
	}

	self.Valid = true
	return false
}

// checkOwnNonOverlap crashes loudly if self overlaps any other record we own
// on any interface in the area, its own included. Our own assignments are never
// allowed to overlap; finding one here means the algorithm itself has a
// bug, not a recoverable runtime condition.
func checkOwnNonOverlap(ar *area.Area, self *area.AssignmentRecord) {
	for _, ref := range ar.OwnRecords() {
		if ref.Record == self {
			continue
		}
		if prefix.Overlaps(ref.Record.Prefix, self.Prefix) {
			panic(fmt.Sprintf("ospf-pxassign: own assignment %s overlaps own assignment %s", self.Prefix, ref.Record.Prefix))
		}
	}
}

// selfCollision implements branch (keep-own)'s collision predicates against
// every peer ASP known area-wide.
func selfCollision(ar *area.Area, iface *area.Interface, self *area.AssignmentRecord) (bool, uint32) {
	for _, p := range peerASPs(ar) {
		switch {
		case p.Priority == iface.PAPriority && p.Prefix.Bits() > self.Prefix.Bits() && prefix.Contains(self.Prefix, p.Prefix):
			return true, p.RID
		case p.Priority == iface.PAPriority && prefix.Equal(p.Prefix, self.Prefix) && p.RID > ar.OurRouterID:
			return true, p.RID
		case p.Priority > iface.PAPriority && prefix.Overlaps(p.Prefix, self.Prefix):
			return true, p.RID
		}
	}
	return false, 0
}

// attemptUpgrade re-runs the fresh and steal candidate steps with self
// excluded from the used-set, implementing the /80->/64 upgrade path. It
// reports whether the upgrade succeeded (self deleted, new record
// installed).
func attemptUpgrade(ctx context.Context, log logr.Logger, ar *area.Area, usp lsdb.USP, iface *area.Interface, self *area.AssignmentRecord) bool {
	used, steal, _ := CollectUsed(ar, usp.Prefix, iface, self)
	lPref := ar.Config.LPref

	if cand, ok := prefix.Choose(usp.Prefix, lPref, used, ar.OurRouterID, iface.Name); ok {
		deleteRecord(ctx, log, ar, iface, self, "upgrade", 0)
		installRecord(ctx, log, ar, iface, cand, ar.OurRouterID, iface.PAPriority, "upgrade")
		return true
	}

	if steal != nil && stealEligible(ar, steal, self) {
		deleteRecord(ctx, log, ar, iface, self, "upgrade", 0)
		evictOverlapping(ctx, log, ar, steal.Prefix, "upgrade-steal")
		installRecord(ctx, log, ar, iface, steal.Prefix, ar.OurRouterID, iface.PAPriority, "upgrade-steal")
		return true
	}

	return false
}

// executeAcceptPeer implements branch (accept-peer).
func executeAcceptPeer(ctx context.Context, log logr.Logger, ar *area.Area, iface *area.Interface, res Resolution) bool {
	peer := res.PeerAssignment
	hp := res.Hp

	for _, rec := range iface.ASPList {
		if rec.RID == peer.RID && prefix.Equal(rec.Prefix, peer.Prefix) && rec.PAPriority == hp {
			rec.Valid = true
			return false
		}
	}

	var overlapping []area.RecordRef
	for _, ref := range ar.AllRecords() {
		if prefix.Overlaps(ref.Record.Prefix, peer.Prefix) {
			overlapping = append(overlapping, ref)
		}
	}

	for _, ref := range overlapping {
		if refusesPeer(ref.Record, peer, hp, ar.OurRouterID) {
			eventNoAssignment(log, iface.Name, "refused-peer")
			return false
		}
	}

	for _, ref := range overlapping {
		deleteRecord(ctx, log, ar, ref.Iface, ref.Record, "evicted-for-peer", peer.RID)
	}
	installRecord(ctx, log, ar, iface, peer.Prefix, peer.RID, hp, "accept-peer")
	return true
}

// refusesPeer reports whether existing wins the tie-break against peer at
// priority hp, per branch (accept-peer)'s refuse predicates.
func refusesPeer(existing *area.AssignmentRecord, peer *PeerAssignment, hp uint8, ourRID uint32) bool {
	switch {
	case existing.PAPriority > hp:
		return true
	case existing.PAPriority == hp && existing.Prefix.Bits() > peer.Prefix.Bits() && prefix.Contains(peer.Prefix, existing.Prefix):
		return true
	case existing.PAPriority == hp && prefix.Equal(existing.Prefix, peer.Prefix) && ourRID > peer.RID:
		return true
	default:
		return false
	}
}

// executeAllocate implements branch (allocate): it works through reuse,
// fresh allocation, stealing, and splitting at both the preferred and
// fallback prefix lengths in order, stopping at the first success.
func executeAllocate(ctx context.Context, log logr.Logger, ar *area.Area, usp lsdb.USP, iface *area.Interface) bool {
	used, steal, split := CollectUsed(ar, usp.Prefix, iface, nil)
	lPref, lFall := ar.Config.LPref, ar.Config.LFall

	// Reuse at L_pref is a deliberate no-op: no memory of previously-used
	// sub-prefixes is kept per USP.

	// Fresh /L_pref.
	if cand, ok := prefix.Choose(usp.Prefix, lPref, used, ar.OurRouterID, iface.Name); ok {
		installRecord(ctx, log, ar, iface, cand, ar.OurRouterID, iface.PAPriority, "allocate-fresh")
		return true
	}

	// Steal /L_pref.
	if steal != nil && stealEligible(ar, steal, nil) {
		evictOverlapping(ctx, log, ar, steal.Prefix, "allocate-steal")
		installRecord(ctx, log, ar, iface, steal.Prefix, ar.OurRouterID, iface.PAPriority, "allocate-steal")
		return true
	}

	if iface.PAPriority < ar.Config.PriorityMax {
		// Reuse at L_fall: same extension point as above, at fallback
		// length.

		// Fresh /L_fall.
		if cand, ok := prefix.Choose(usp.Prefix, lFall, used, ar.OurRouterID, iface.Name); ok {
			installRecord(ctx, log, ar, iface, cand, ar.OurRouterID, iface.PAPriority, "allocate-fresh-fallback")
			return true
		}
	}

	// g. Split: subdivide an uncontested equal-priority L_pref assignment.
	// The parent assignment is evicted first, so choose runs against an
	// empty used-set and cannot fail inside the parent; whoever lost the
	// parent re-enters allocate on the next run and lands on the fresh
	// L_fall step, since the parent's space is then partially free.
	if split != nil && splitUncontested(ar, split, iface.PAPriority) {
		evictOverlapping(ctx, log, ar, split.Prefix, "allocate-split")
		if cand, ok := prefix.Choose(split.Prefix, lFall, nil, ar.OurRouterID, iface.Name); ok {
			installRecord(ctx, log, ar, iface, cand, ar.OurRouterID, iface.PAPriority, "allocate-split")
			return true
		}
	}

	// h. Exhausted.
	eventNoAssignment(log, iface.Name, "exhausted")
	return false
}

// stealEligible implements branch (allocate)'s steal guard: no peer with
// priority strictly greater than steal.Priority already overlaps it, and no
// own record (other than exclude) overlaps it at a priority strictly
// greater than steal.Priority.
func stealEligible(ar *area.Area, steal *StealCandidate, exclude *area.AssignmentRecord) bool {
	for _, p := range peerASPs(ar) {
		if p.Priority > steal.Priority && prefix.Overlaps(p.Prefix, steal.Prefix) {
			return false
		}
	}
	for _, ref := range ar.OwnRecords() {
		if ref.Record == exclude {
			continue
		}
		if ref.Record.PAPriority > steal.Priority && prefix.Overlaps(ref.Record.Prefix, steal.Prefix) {
			return false
		}
	}
	return true
}

// splitUncontested guards the split step: split is contested when anything
// overlapping it, in the LSDB or in local state, carries strictly higher
// priority, or equal priority without being exactly the split assignment
// itself.
func splitUncontested(ar *area.Area, split *SplitCandidate, ourPriority uint8) bool {
	for _, p := range peerASPs(ar) {
		if !prefix.Overlaps(p.Prefix, split.Prefix) {
			continue
		}
		if p.Priority > ourPriority {
			return false
		}
		if p.Priority == ourPriority && !prefix.Equal(p.Prefix, split.Prefix) {
			return false
		}
	}
	for _, ref := range ar.AllRecords() {
		if !prefix.Overlaps(ref.Record.Prefix, split.Prefix) {
			continue
		}
		if ref.Record.PAPriority > ourPriority {
			return false
		}
		if ref.Record.PAPriority == ourPriority && !prefix.Equal(ref.Record.Prefix, split.Prefix) {
			return false
		}
	}
	return true
}

// peerASP is one peer-advertised ASP entry, flattened from the LSDB's
// per-router IASP blocks for area-wide scans.
type peerASP struct {
	Prefix   netip.Prefix
	Priority uint8
	RID      uint32
}

func peerASPs(ar *area.Area) []peerASP {
	var out []peerASP
	for _, iasp := range ar.LSDB.IASPs(ar.Name) {
		if iasp.RouterID == ar.OurRouterID {
			continue
		}
		for _, asp := range iasp.ASPs {
			out = append(out, peerASP{Prefix: asp.Prefix, Priority: iasp.PAPriority, RID: iasp.RouterID})
		}
	}
	return out
}

// evictOverlapping deletes every record, on any interface in the area, that
// overlaps p.
func evictOverlapping(ctx context.Context, log logr.Logger, ar *area.Area, p netip.Prefix, reason string) {
	for _, iface := range ar.Interfaces {
		snapshot := append([]*area.AssignmentRecord(nil), iface.ASPList...)
		for _, rec := range snapshot {
			if prefix.Overlaps(rec.Prefix, p) {
				deleteRecord(ctx, log, ar, iface, rec, reason, 0)
			}
		}
	}
}

// installRecord installs the kernel address for p on iface and adds the
// in-memory record, flipping change.
func installRecord(ctx context.Context, log logr.Logger, ar *area.Area, iface *area.Interface, p netip.Prefix, rid uint32, priority uint8, reason string) *area.AssignmentRecord {
	rec := &area.AssignmentRecord{
		Prefix:     p,
		RID:        rid,
		MyRID:      ar.OurRouterID,
		PAPriority: priority,
		Valid:      true,
	}
	if err := ar.Kernel.Add(ctx, iface.Name, p, ar.OurRouterID); err != nil {
		log.Error(err, "kernel address install failed", "interface", iface.Name, "prefix", p)
	}
	iface.AddRecord(rec)
	event(log, iface.Name, p, rid, reason)
	return rec
}

// deleteRecord removes the kernel address and drops the in-memory record.
func deleteRecord(ctx context.Context, log logr.Logger, ar *area.Area, iface *area.Interface, rec *area.AssignmentRecord, reason string, peer uint32) {
	if err := ar.Kernel.Del(ctx, iface.Name, rec.Prefix, rec.MyRID); err != nil {
		log.Error(err, "kernel address removal failed", "interface", iface.Name, "prefix", rec.Prefix)
	}
	iface.RemoveRecord(rec)
	event(log, iface.Name, rec.Prefix, peer, reason)
}
