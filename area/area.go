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

package area

import (
	"context"

	"github.com/jr42/ospf-pxassign/kerneladdr"
	"github.com/jr42/ospf-pxassign/lsdb"
)

// Scheduler requests re-emission of this router's AC-LSA for an area. The
// AC-LSA encoder is an external collaborator; this core only ever calls
// Schedule.
type Scheduler interface {
	Schedule(area string)
}

// Config carries the two prefix lengths and the priority ceiling the
// algorithm is parameterized on. These are daemon configuration values
// threaded in by the caller rather than read from a flag or file by this
// core.
type Config struct {
	// LPref is the preferred assigned-prefix length (e.g. 64).
	LPref int
	// LFall is the fallback assigned-prefix length (e.g. 80). Must be
	// greater than LPref.
	LFall int
	// PriorityMax is PA_PRIORITY_MAX: interfaces at this priority skip the
	// fresh L_fall allocation step. The split step, which also yields an
	// L_fall assignment, is not limited by it.
	PriorityMax uint8
}

// Area is one OSPFv3 area's worth of prefix-assignment state: the
// interfaces participating in it, the USPs known for it, and the external
// collaborators (LSDB, neighbor table, kernel configurator, AC-LSA
// scheduler) this core reads from and drives.
//
// Cyclic references (Interface -> Area -> Interface) are represented as an
// owned slice of interfaces plus a back-pointer on each, rather than raw
// cross-pointers threaded through every call.
type Area struct {
	Name        string
	OurRouterID uint32
	Config      Config

	Interfaces []*Interface
	// USPs is the merged Usable Prefix set for this area: every USP
	// advertised in the AC-LSDB plus any locally ingested DHCPv6-PD USP
	// (package dhcppd merges into this slice).
	USPs []lsdb.USP

	LSDB      lsdb.Database
	Neighbors lsdb.NeighborTable
	Kernel    kerneladdr.AddrConfigurator
	Scheduler Scheduler
}

// New constructs an Area with no interfaces attached yet.
func New(name string, ourRID uint32, cfg Config, db lsdb.Database, neighbors lsdb.NeighborTable, kernel kerneladdr.AddrConfigurator, sched Scheduler) *Area {
	return &Area{
		Name:        name,
		OurRouterID: ourRID,
		Config:      cfg,
		LSDB:        db,
		Neighbors:   neighbors,
		Kernel:      kernel,
		Scheduler:   sched,
	}
}

// AddInterface attaches iface to this area, wiring its back-reference.
func (a *Area) AddInterface(iface *Interface) {
	iface.area = a
	a.Interfaces = append(a.Interfaces, iface)
}

// RemoveInterface detaches iface from this area, deleting the kernel
// address behind every assignment record it still holds before the records
// go away with it.
func (a *Area) RemoveInterface(ctx context.Context, iface *Interface) {
	for _, rec := range iface.ASPList {
		_ = a.Kernel.Del(ctx, iface.Name, rec.Prefix, rec.MyRID)
	}
	iface.ASPList = nil
	for idx, have := range a.Interfaces {
		if have == iface {
			a.Interfaces = append(a.Interfaces[:idx], a.Interfaces[idx+1:]...)
			break
		}
	}
	iface.area = nil
}

// FindInterface returns the interface with the given name, or nil.
func (a *Area) FindInterface(name string) *Interface {
	for _, iface := range a.Interfaces {
		if iface.Name == name {
			return iface
		}
	}
	return nil
}

// RecordRef pairs an assignment record with the interface that owns it, for
// code that needs to scan across every interface in the area.
type RecordRef struct {
	Iface  *Interface
	Record *AssignmentRecord
}

// AllRecords returns every assignment record on every interface in the
// area.
func (a *Area) AllRecords() []RecordRef {
	var out []RecordRef
	for _, iface := range a.Interfaces {
		for _, rec := range iface.ASPList {
			out = append(out, RecordRef{Iface: iface, Record: rec})
		}
	}
	return out
}

// OwnRecords returns every assignment record owned by this router, across
// every interface in the area (invariant 2's scope).
func (a *Area) OwnRecords() []RecordRef {
	var out []RecordRef
	for _, ref := range a.AllRecords() {
		if ref.Record.RID == a.OurRouterID {
			out = append(out, ref)
		}
	}
	return out
}
