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
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/kerneladdr"
	"github.com/jr42/ospf-pxassign/lsdb"
	"github.com/jr42/ospf-pxassign/pxlog"
)

func newTestArea(ourRID uint32, db *fakeLSDB, nbrs *fakeNeighbors, kernel kerneladdr.AddrConfigurator, sched *fakeScheduler) *area.Area {
	cfg := area.Config{LPref: 64, LFall: 80, PriorityMax: 255}
	return area.New("backbone", ourRID, cfg, db, nbrs, kernel, sched)
}

var _ = Describe("RunAssignment", func() {
	var (
		ctx    context.Context
		usp    netip.Prefix
		db     *fakeLSDB
		nbrs   *fakeNeighbors
		kernel *fakeKernel
		sched  *fakeScheduler
		ar     *area.Area
		eth0   *area.Interface
		engine *Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		usp = netip.MustParsePrefix("2001:db8::/60")
		db = &fakeLSDB{usps: []lsdb.USP{{Prefix: usp, Origin: lsdb.OriginACLSA}}}
		nbrs = newFakeNeighbors()
		kernel = newFakeKernel()
		sched = &fakeScheduler{}
		ar = newTestArea(10, db, nbrs, kernel, sched)
		eth0 = area.NewInterface("eth0", 1, 1)
		ar.AddInterface(eth0)
		engine = NewEngine(pxlog.NewDevelopment())
	})

	Context("solo router on one interface", func() {
		It("installs exactly one /64 and is idempotent on rerun", func() {
			changed := engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			Expect(eth0.ASPList).To(HaveLen(1))
			Expect(eth0.ASPList[0].RID).To(Equal(uint32(10)))
			Expect(eth0.ASPList[0].Prefix.Bits()).To(Equal(64))
			Expect(kernel.addCalls).To(Equal(1))

			addCallsBefore, delCallsBefore := kernel.addCalls, kernel.delCalls
			schedCountBefore := len(sched.scheduled)

			changed = engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeFalse())
			Expect(kernel.addCalls).To(Equal(addCallsBefore))
			Expect(kernel.delCalls).To(Equal(delCallsBefore))
			Expect(len(sched.scheduled)).To(Equal(schedCountBefore))
		})
	})

	Context("two routers, same priority, different rids", func() {
		It("the higher rid wins and the lower rid accepts", func() {
			// Router 10 (us) runs first with no peer yet: allocates.
			changed := engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			ours := eth0.ASPList[0].Prefix

			// Now router 20 shows up on the link, advertising the same
			// prefix at equal priority with a higher rid.
			nbrs.add("eth0", lsdb.Neighbor{RouterID: 20, State: lsdb.StateFull, IfaceID: 1, PAPriority: 1, PAPxLen: 64})
			db.iasps = []lsdb.IASP{
				{RouterID: 20, InterfaceID: 1, PAPriority: 1, PAPxLen: 64, ASPs: []lsdb.ASP{{Prefix: ours}}},
			}

			changed = engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			Expect(eth0.ASPList).To(HaveLen(1))
			Expect(eth0.ASPList[0].RID).To(Equal(uint32(20)))
			Expect(eth0.ASPList[0].Prefix).To(Equal(ours))
		})
	})

	Context("two routers dispute the same prefix", func() {
		It("the higher-priority router steals the whole prefix", func() {
			// The USP is a single /64, already claimed by a priority-1
			// neighbor. We run at priority 2: no free space, so the only
			// way in is the steal step.
			full := netip.MustParsePrefix("2001:db8:0:1::/64")
			db.usps = []lsdb.USP{{Prefix: full, Origin: lsdb.OriginACLSA}}
			eth0.PAPriority = 2
			nbrs.add("eth0", lsdb.Neighbor{RouterID: 20, State: lsdb.StateFull, IfaceID: 1, PAPriority: 1, PAPxLen: 64})
			db.iasps = []lsdb.IASP{
				{RouterID: 20, InterfaceID: 1, PAPriority: 1, PAPxLen: 64, ASPs: []lsdb.ASP{{Prefix: full}}},
			}

			changed := engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			Expect(eth0.ASPList).To(HaveLen(1))
			Expect(eth0.ASPList[0].RID).To(Equal(uint32(10)))
			Expect(eth0.ASPList[0].Prefix).To(Equal(full))
		})

		It("keeps its own assignment against an equal-priority lower-rid peer", func() {
			changed := engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			ours := eth0.ASPList[0].Prefix

			// Router 5 advertises the exact same prefix at our priority;
			// our rid 10 wins the tie, so nothing moves.
			nbrs.add("eth0", lsdb.Neighbor{RouterID: 5, State: lsdb.StateFull, IfaceID: 1, PAPriority: 1, PAPxLen: 64})
			db.iasps = []lsdb.IASP{
				{RouterID: 5, InterfaceID: 1, PAPriority: 1, PAPxLen: 64, ASPs: []lsdb.ASP{{Prefix: ours}}},
			}

			changed = engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeFalse())
			Expect(eth0.ASPList).To(HaveLen(1))
			Expect(eth0.ASPList[0].RID).To(Equal(uint32(10)))
			Expect(eth0.ASPList[0].Prefix).To(Equal(ours))
		})
	})

	Context("determinism", func() {
		It("two independent runs over identical inputs produce identical assignments", func() {
			otherKernel := newFakeKernel()
			otherSched := &fakeScheduler{}
			otherAr := newTestArea(10, db, nbrs, otherKernel, otherSched)
			otherEth0 := area.NewInterface("eth0", 1, 1)
			otherAr.AddInterface(otherEth0)

			engine.RunAssignment(ctx, ar)
			NewEngine(pxlog.NewDevelopment()).RunAssignment(ctx, otherAr)

			Expect(otherEth0.ASPList).To(HaveLen(len(eth0.ASPList)))
			for i := range eth0.ASPList {
				Expect(otherEth0.ASPList[i].Prefix).To(Equal(eth0.ASPList[i].Prefix))
				Expect(otherEth0.ASPList[i].RID).To(Equal(eth0.ASPList[i].RID))
			}
		})
	})

	Context("priority upgrade evicts a lower-priority overlap", func() {
		It("a higher-priority peer overlapping X's assignment evicts it and takes over", func() {
			changed := engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			ours := eth0.ASPList[0].Prefix

			// Router 5, priority 2, advertises the exact same /64 we hold.
			nbrs.add("eth0", lsdb.Neighbor{RouterID: 5, State: lsdb.StateFull, IfaceID: 1, PAPriority: 2, PAPxLen: 64})
			db.iasps = []lsdb.IASP{
				{RouterID: 5, InterfaceID: 1, PAPriority: 2, PAPxLen: 64, ASPs: []lsdb.ASP{{Prefix: ours}}},
			}

			changed = engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())
			Expect(eth0.ASPList).To(HaveLen(1))
			Expect(eth0.ASPList[0].RID).To(Equal(uint32(5)))
			Expect(eth0.ASPList[0].Prefix).To(Equal(ours))
		})
	})
})
