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

// Package prefix implements the IPv6 prefix arithmetic and candidate
// selection used by the prefix-assignment core: containment, overlap,
// the pseudo-random sub-prefix hash, and the used-set-aware chooser.
package prefix

import (
	"math/big"
	"net/netip"
)

// Equal reports whether p and q denote the same prefix (address and length).
func Equal(p, q netip.Prefix) bool {
	return p.Masked() == q.Masked()
}

// Contains reports whether q's high p.Bits() bits equal p's address and
// q.Bits() >= p.Bits() — i.e. q is p itself or a more specific prefix nested
// inside it.
func Contains(p, q netip.Prefix) bool {
	if q.Bits() < p.Bits() {
		return false
	}
	return p.Masked().Contains(q.Addr())
}

// Overlaps reports whether p contains q or q contains p.
func Overlaps(p, q netip.Prefix) bool {
	return Contains(p, q) || Contains(q, p)
}

// OverlapsAny reports whether p overlaps any prefix in used.
func OverlapsAny(p netip.Prefix, used []netip.Prefix) bool {
	for _, u := range used {
		if Overlaps(p, u) {
			return true
		}
	}
	return false
}

// FindOverlap returns the first prefix in used that overlaps p.
func FindOverlap(p netip.Prefix, used []netip.Prefix) (netip.Prefix, bool) {
	for _, u := range used {
		if Overlaps(p, u) {
			return u, true
		}
	}
	return netip.Prefix{}, false
}

// Truncate returns the length-bits prefix that covers p, i.e. p's address
// masked down to length bits. length must be <= p.Bits().
func Truncate(p netip.Prefix, length int) netip.Prefix {
	return netip.PrefixFrom(p.Addr(), length).Masked()
}

// AddrToBig converts an IPv6 address to its 128-bit unsigned integer value.
func AddrToBig(a netip.Addr) *big.Int {
	b := a.As16()
	return new(big.Int).SetBytes(b[:])
}

// BigToAddr converts a (0 <= n < 2^128) integer back to an IPv6 address.
func BigToAddr(n *big.Int) netip.Addr {
	var buf [16]byte
	n.FillBytes(buf[:])
	return netip.AddrFrom16(buf)
}

// addrSpaceSize is 2^128, the size of the IPv6 address space.
func addrSpaceSize() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 128)
}
