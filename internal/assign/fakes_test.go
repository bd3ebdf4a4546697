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

	"github.com/jr42/ospf-pxassign/lsdb"
)

// fakeLSDB is an in-memory lsdb.Database used for tests.
type fakeLSDB struct {
	usps  []lsdb.USP
	iasps []lsdb.IASP
}

func (f *fakeLSDB) USPs(string) []lsdb.USP   { return f.usps }
func (f *fakeLSDB) IASPs(string) []lsdb.IASP { return f.iasps }

// fakeNeighbors is an in-memory lsdb.NeighborTable used for tests.
type fakeNeighbors struct {
	byIface map[string][]lsdb.Neighbor
}

func newFakeNeighbors() *fakeNeighbors {
	return &fakeNeighbors{byIface: make(map[string][]lsdb.Neighbor)}
}

func (f *fakeNeighbors) Neighbors(iface string) []lsdb.Neighbor {
	return f.byIface[iface]
}

func (f *fakeNeighbors) add(iface string, n lsdb.Neighbor) {
	f.byIface[iface] = append(f.byIface[iface], n)
}

// fakeKernel is an in-memory kerneladdr.AddrConfigurator used for tests. It
// records every add/del call and tolerates duplicate add/del of the same
// address, matching the idempotence contract a real configurator must
// provide.
type fakeKernel struct {
	installed map[string]bool
	addCalls  int
	delCalls  int
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{installed: make(map[string]bool)}
}

func (f *fakeKernel) key(iface string, p netip.Prefix, myRID uint32) string {
	return fmt.Sprintf("%s|%s|%d", iface, p, myRID)
}

func (f *fakeKernel) Add(_ context.Context, iface string, p netip.Prefix, myRID uint32) error {
	f.addCalls++
	f.installed[f.key(iface, p, myRID)] = true
	return nil
}

func (f *fakeKernel) Del(_ context.Context, iface string, p netip.Prefix, myRID uint32) error {
	f.delCalls++
	delete(f.installed, f.key(iface, p, myRID))
	return nil
}

// fakeScheduler is an in-memory area.Scheduler used for tests.
type fakeScheduler struct {
	scheduled []string
}

func (f *fakeScheduler) Schedule(area string) {
	f.scheduled = append(f.scheduled, area)
}
