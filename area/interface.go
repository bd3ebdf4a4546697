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
	"net/netip"

	"github.com/jr42/ospf-pxassign/prefix"
)

// Interface is a local link participating in prefix assignment: a name,
// the priority it competes with, the assignment records it exclusively
// owns, and a back-reference to the area it belongs to.
type Interface struct {
	// Name is the kernel interface name (e.g. "eth0").
	Name string
	// ID is this router's own interface identifier, matched against
	// lsdb.IASP.InterfaceID when this router's own IASP block is
	// iterated elsewhere.
	ID uint32
	// PAPriority is this interface's prefix-assignment priority.
	PAPriority uint8
	// ASPList is the list of assignment records on this interface.
	// Exclusively owned by this Interface; removal must remove the
	// corresponding kernel address first.
	ASPList []*AssignmentRecord

	area *Area
}

// NewInterface constructs an Interface not yet attached to any Area; use
// Area.AddInterface to attach it.
func NewInterface(name string, id uint32, priority uint8) *Interface {
	return &Interface{Name: name, ID: id, PAPriority: priority}
}

// Area returns the area this interface belongs to, or nil if unattached.
func (i *Interface) Area() *Area {
	return i.area
}

// AddRecord appends a new assignment record to this interface.
func (i *Interface) AddRecord(r *AssignmentRecord) {
	i.ASPList = append(i.ASPList, r)
}

// RemoveRecord removes r from this interface's ASPList. It tolerates being
// called mid-scan: callers iterating ASPList must snapshot it first (e.g.
// range over a copy) since this mutates the backing slice.
func (i *Interface) RemoveRecord(r *AssignmentRecord) bool {
	for idx, rec := range i.ASPList {
		if rec == r {
			i.ASPList = append(i.ASPList[:idx], i.ASPList[idx+1:]...)
			return true
		}
	}
	return false
}

// FindOwnRecordInside returns the first record on this interface owned by
// ourRID whose prefix lies inside usp, or nil.
func (i *Interface) FindOwnRecordInside(usp netip.Prefix, ourRID uint32) *AssignmentRecord {
	for _, rec := range i.ASPList {
		if rec.RID == ourRID && prefix.Contains(usp, rec.Prefix) {
			return rec
		}
	}
	return nil
}
