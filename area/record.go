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

// Package area holds the local data model the prefix-assignment core
// mutates in place: areas, interfaces, and the assignment records (ASP
// nodes) that live on them.
package area

import "net/netip"

// AssignmentRecord is one ASP-node: a sub-prefix assigned to an interface,
// by us or by a peer.
type AssignmentRecord struct {
	// Prefix is the assigned sub-prefix.
	Prefix netip.Prefix
	// RID is the router-id that owns this assignment; may be ours or a
	// peer's.
	RID uint32
	// MyRID is our own router-id at the time we installed this record,
	// used as the low bits when forming our host address inside Prefix.
	MyRID uint32
	// PAPriority is the interface priority under which this assignment
	// was made.
	PAPriority uint8
	// Valid is the mark-and-sweep flag: cleared at the top of every
	// run_assignment invocation and set again by whichever branch
	// revalidates this record.
	Valid bool
}
