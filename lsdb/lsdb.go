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

// Package lsdb defines the read-only view the prefix-assignment core takes
// of the AC-LSA link-state database: the flooding engine and neighbor FSM
// are external collaborators that populate a Database and a NeighborTable;
// this core only ever iterates them. Locally ingested DHCPv6-PD USPs are
// merged into area.Area.USPs by package dhcppd, not into a Database.
package lsdb

import "net/netip"

// Origin identifies how a Usable Prefix entered the database.
type Origin string

const (
	// OriginACLSA marks a USP advertised by some router's AC-LSA.
	OriginACLSA Origin = "ac-lsa"
	// OriginDHCPv6PD marks a USP ingested locally from DHCPv6 prefix
	// delegation (see package dhcppd).
	OriginDHCPv6PD Origin = "dhcpv6-pd"
)

// USP is a Usable Prefix: an IPv6 prefix that may be subdivided and handed
// out to links, along with where it came from.
type USP struct {
	Prefix netip.Prefix
	Origin Origin
	// RouterID is the advertising router, meaningful only when
	// Origin == OriginACLSA.
	RouterID uint32
}

// ASP is an Assigned Prefix entry inside one router's IASP block.
type ASP struct {
	Prefix netip.Prefix
}

// IASP is one router's interface-scoped ASP block: everything a single
// router has assigned on a single one of its interfaces.
type IASP struct {
	RouterID    uint32
	InterfaceID uint32
	PAPriority  uint8
	PAPxLen     uint8
	ASPs        []ASP
}

// Database is the read-only AC-LSA iteration surface for one area: every
// USP TLV advertised by any router, and every router's IASP TLVs.
type Database interface {
	// USPs returns every USP known for area, in LSDB-iteration order.
	USPs(area string) []USP
	// IASPs returns every router's IASP block for area, in
	// LSDB-iteration order.
	IASPs(area string) []IASP
}
