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

package integration

import (
	"context"
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/internal/assign"
	"github.com/jr42/ospf-pxassign/lsdb"
	"github.com/jr42/ospf-pxassign/prefix"
	"github.com/jr42/ospf-pxassign/pxlog"
)

// allOwnRecords flattens every assignment record owned by rid across every
// interface in ar, for convenience in assertions below.
func allOwnRecords(ar *area.Area, rid uint32) []*area.AssignmentRecord {
	var out []*area.AssignmentRecord
	for _, ref := range ar.AllRecords() {
		if ref.Record.RID == rid {
			out = append(out, ref.Record)
		}
	}
	return out
}

// converge reruns the assignment until it reaches a fixed point, failing
// the spec if it keeps churning.
func converge(ctx context.Context, engine *assign.Engine, ar *area.Area) {
	for i := 0; i < 10; i++ {
		if !engine.RunAssignment(ctx, ar) {
			return
		}
	}
	Fail("assignment did not converge within 10 runs")
}

func noOverlaps(prefixes []netip.Prefix) bool {
	for i := range prefixes {
		for j := range prefixes {
			if i == j {
				continue
			}
			if prefix.Overlaps(prefixes[i], prefixes[j]) {
				return false
			}
		}
	}
	return true
}

var _ = Describe("run_assignment convergence", func() {
	var (
		ctx    context.Context
		db     *fakeLSDB
		nbrs   *fakeNeighbors
		kernel *fakeKernel
		sched  *fakeScheduler
		ar     *area.Area
		engine *assign.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = &fakeLSDB{}
		nbrs = newFakeNeighbors()
		kernel = newFakeKernel()
		sched = &fakeScheduler{}
		cfg := area.Config{LPref: 64, LFall: 80, PriorityMax: 255}
		ar = area.New("backbone", 1, cfg, db, nbrs, kernel, sched)
		engine = assign.NewEngine(pxlog.NewDevelopment())
	})

	Context("fallback /80 via split when a /62 is full of /64s", func() {
		It("the fifth interface gets an /80 inside one of the four /64s", func() {
			usp := netip.MustParsePrefix("2001:db8::/62")
			db.usps = []lsdb.USP{{Prefix: usp, Origin: lsdb.OriginACLSA}}

			var ifaces []*area.Interface
			for i := 0; i < 5; i++ {
				iface := area.NewInterface(ifaceName(i), uint32(i+1), 1)
				ar.AddInterface(iface)
				ifaces = append(ifaces, iface)
			}

			converge(ctx, engine, ar)

			own := allOwnRecords(ar, 1)
			Expect(own).To(HaveLen(5))

			var have80 bool
			for _, rec := range own {
				if rec.Prefix.Bits() == 80 {
					have80 = true
				}
			}
			Expect(have80).To(BeTrue())

			var allPrefixes []netip.Prefix
			for _, rec := range own {
				allPrefixes = append(allPrefixes, rec.Prefix)
			}
			Expect(noOverlaps(allPrefixes)).To(BeTrue())
		})
	})

	Context("upgrade after a /64 is freed", func() {
		It("a /80 holder upgrades to the freed /64 on the next run", func() {
			usp := netip.MustParsePrefix("2001:db8::/62")
			db.usps = []lsdb.USP{{Prefix: usp, Origin: lsdb.OriginACLSA}}

			var ifaces []*area.Interface
			for i := 0; i < 5; i++ {
				iface := area.NewInterface(ifaceName(i), uint32(i+1), 1)
				ar.AddInterface(iface)
				ifaces = append(ifaces, iface)
			}

			converge(ctx, engine, ar)

			countFallback := func() int {
				n := 0
				for _, rec := range allOwnRecords(ar, 1) {
					if rec.Prefix.Bits() == 80 {
						n++
					}
				}
				return n
			}
			fallbackBefore := countFallback()
			Expect(fallbackBefore).To(BeNumerically(">", 0))

			// One of the four /64-holding interfaces disappears.
			var removed *area.Interface
			for _, iface := range ifaces {
				if len(iface.ASPList) == 1 && iface.ASPList[0].Prefix.Bits() == 64 {
					removed = iface
					break
				}
			}
			Expect(removed).NotTo(BeNil())
			ar.RemoveInterface(ctx, removed)

			changed := engine.RunAssignment(ctx, ar)
			Expect(changed).To(BeTrue())

			own := allOwnRecords(ar, 1)
			var got64 bool
			for _, rec := range own {
				if rec.Prefix.Bits() == 64 {
					got64 = true
				}
			}
			Expect(got64).To(BeTrue())
			Expect(countFallback()).To(BeNumerically("<", fallbackBefore))
		})
	})

	Context("nested USPs", func() {
		It("the coarser USP aborts and only the more specific one is assigned", func() {
			coarse := netip.MustParsePrefix("2001:db8::/48")
			specific := netip.MustParsePrefix("2001:db8:0:1::/64")
			db.usps = []lsdb.USP{
				{Prefix: coarse, Origin: lsdb.OriginACLSA},
				{Prefix: specific, Origin: lsdb.OriginACLSA},
			}

			iface := area.NewInterface("eth0", 1, 1)
			ar.AddInterface(iface)

			engine.RunAssignment(ctx, ar)

			Expect(iface.ASPList).To(HaveLen(1))
			Expect(prefix.Contains(specific, iface.ASPList[0].Prefix)).To(BeTrue())
		})
	})

	Context("idempotence", func() {
		It("produces no kernel calls and no schedule on a second identical run", func() {
			usp := netip.MustParsePrefix("2001:db8::/60")
			db.usps = []lsdb.USP{{Prefix: usp, Origin: lsdb.OriginACLSA}}
			iface := area.NewInterface("eth0", 1, 1)
			ar.AddInterface(iface)

			Expect(engine.RunAssignment(ctx, ar)).To(BeTrue())

			addBefore, delBefore := kernel.addCalls, kernel.delCalls
			schedBefore := len(sched.scheduled)

			Expect(engine.RunAssignment(ctx, ar)).To(BeFalse())
			Expect(kernel.addCalls).To(Equal(addBefore))
			Expect(kernel.delCalls).To(Equal(delBefore))
			Expect(len(sched.scheduled)).To(Equal(schedBefore))
		})
	})
})

func ifaceName(i int) string {
	names := []string{"eth0", "eth1", "eth2", "eth3", "eth4"}
	return names[i]
}
