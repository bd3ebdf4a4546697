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
	"sort"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/lsdb"
	"github.com/jr42/ospf-pxassign/prefix"
)

// PeerAssignment is the greatest-rid neighbor at Hp that advertises an ASP
// inside the USP under resolution.
type PeerAssignment struct {
	Prefix netip.Prefix
	RID    uint32
}

// Resolution is the responsibility verdict for one (usp, iface) pair: the
// predicates that decide which executor branch fires.
type Resolution struct {
	// Abort is true when a more-specific USP exists; the caller must
	// return no-change without running the executor.
	Abort bool

	Hp                uint8
	HaveHp            bool
	Hr                bool
	PeerAssignment    *PeerAssignment
	OwnResponsibility bool
	SelfRecord        *area.AssignmentRecord
}

// Resolve decides, for one (usp, iface) pair, whether this router is
// responsible for assigning, must accept a peer's assignment, or must stay
// out entirely.
func Resolve(ar *area.Area, usps []lsdb.USP, usp lsdb.USP, iface *area.Interface) Resolution {
	if nestedUSPGuard(usps, usp) {
		return Resolution{Abort: true}
	}

	neighbors := ar.Neighbors.Neighbors(iface.Name)

	hp := iface.PAPriority
	for _, nb := range neighbors {
		if nb.State.AtLeast(lsdb.StateInit) && nb.PAPriority > hp {
			hp = nb.PAPriority
		}
	}
	haveHp := iface.PAPriority >= hp

	hr := true
	for _, nb := range neighbors {
		if nb.State.AtLeast(lsdb.StateInit) && nb.PAPriority == iface.PAPriority && nb.RouterID >= ar.OurRouterID {
			hr = false
			break
		}
	}

	peer := findPeerAssignment(ar, usp, iface, neighbors, hp)

	var peerRID uint32
	if peer != nil {
		peerRID = peer.RID
	}

	var selfRecord *area.AssignmentRecord
	ownResponsibility := false
	if iface.PAPriority == hp && ar.OurRouterID > peerRID {
		selfRecord = iface.FindOwnRecordInside(usp.Prefix, ar.OurRouterID)
		ownResponsibility = selfRecord != nil
	}

	return Resolution{
		Hp:                hp,
		HaveHp:            haveHp,
		Hr:                hr,
		PeerAssignment:    peer,
		OwnResponsibility: ownResponsibility,
		SelfRecord:        selfRecord,
	}
}

// nestedUSPGuard reports whether usp strictly contains some other, more
// specific USP — processing the coarser USP aborts so the nested one is
// handled on its own turn through the usp loop.
func nestedUSPGuard(usps []lsdb.USP, usp lsdb.USP) bool {
	for _, other := range usps {
		if other.Prefix == usp.Prefix {
			continue
		}
		if other.Prefix.Bits() > usp.Prefix.Bits() && prefix.Contains(usp.Prefix, other.Prefix) {
			return true
		}
	}
	return false
}

// findPeerAssignment picks, among neighbors at priority hp in state >= Init,
// the greatest-rid one that advertises an ASP inside usp.
func findPeerAssignment(ar *area.Area, usp lsdb.USP, iface *area.Interface, neighbors []lsdb.Neighbor, hp uint8) *PeerAssignment {
	var candidates []lsdb.Neighbor
	for _, nb := range neighbors {
		if nb.State.AtLeast(lsdb.StateInit) && nb.PAPriority == hp {
			candidates = append(candidates, nb)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RouterID > candidates[j].RouterID })

	iasps := ar.LSDB.IASPs(ar.Name)
	for _, nb := range candidates {
		for _, iasp := range iasps {
			if iasp.RouterID != nb.RouterID || iasp.InterfaceID != nb.IfaceID {
				continue
			}
			for _, asp := range iasp.ASPs {
				if prefix.Contains(usp.Prefix, asp.Prefix) {
					return &PeerAssignment{Prefix: asp.Prefix, RID: nb.RouterID}
				}
			}
		}
	}
	return nil
}
