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

package prefix

import (
	"crypto/md5"
	"encoding/binary"
	"math/big"
	"net/netip"
)

// NextNonOverlap returns the numerically next prefix of length p.Bits() that
// does not overlap the blocking prefix r, given that p currently overlaps r.
// It reports false if advancing would wrap past the top of the address
// space.
//
// When r covers p (r.Bits() <= p.Bits()), the candidate jumps past the
// entirety of r's span: it advances by exactly one r-sized block and zeroes
// every bit below r's boundary, landing on the first p-length prefix in the
// next block. When p covers r, the candidate advances by exactly one
// p-sized unit.
func NextNonOverlap(p, r netip.Prefix) (netip.Prefix, bool) {
	var next *big.Int

	if p.Bits() >= r.Bits() {
		blockSize := new(big.Int).Lsh(big.NewInt(1), uint(128-r.Bits()))
		next = new(big.Int).Add(AddrToBig(r.Masked().Addr()), blockSize)
	} else {
		step := new(big.Int).Lsh(big.NewInt(1), uint(128-p.Bits()))
		next = new(big.Int).Add(AddrToBig(p.Masked().Addr()), step)
	}

	if next.Cmp(addrSpaceSize()) >= 0 {
		return netip.Prefix{}, false
	}

	addr := BigToAddr(next)
	return netip.PrefixFrom(addr, p.Bits()).Masked(), true
}

// PseudoRandomSub deterministically derives a sub-prefix of length bits
// inside usp from (ifaceName, rid, iteration). It hashes the inputs with
// MD5, treats the digest as a raw IPv6 address, masks it to length bits,
// and overlays usp's network bits on top so the result always lands inside
// usp. The byte layout of the hash input is not wire-observable: each
// router hashes independently, so only local stability across calls
// matters.
func PseudoRandomSub(usp netip.Prefix, length int, rid uint32, ifaceName string, iteration int) netip.Prefix {
	h := md5.New()
	h.Write([]byte(ifaceName))

	var ridBytes [4]byte
	binary.BigEndian.PutUint32(ridBytes[:], rid)
	h.Write(ridBytes[:])

	var iterBytes [4]byte
	binary.BigEndian.PutUint32(iterBytes[:], uint32(iteration))
	h.Write(iterBytes[:])

	digest := h.Sum(nil)
	var addr16 [16]byte
	copy(addr16[:], digest)

	cand := netip.PrefixFrom(netip.AddrFrom16(addr16), length).Masked()
	return overlayNetworkBits(usp, cand)
}

// overlayNetworkBits replaces cand's top usp.Bits() bits with usp's network
// bits, keeping cand's own length and its remaining host bits untouched.
func overlayNetworkBits(usp, cand netip.Prefix) netip.Prefix {
	uspBytes := usp.Masked().Addr().As16()
	candBytes := cand.Addr().As16()
	result := [16]byte{}

	fullBytes := usp.Bits() / 8
	remainingBits := usp.Bits() % 8

	for i := 0; i < fullBytes; i++ {
		result[i] = uspBytes[i]
	}
	if remainingBits > 0 && fullBytes < 16 {
		mask := byte(0xFF << (8 - remainingBits))
		result[fullBytes] = (uspBytes[fullBytes] & mask) | (candBytes[fullBytes] & ^mask)
		fullBytes++
	}
	for i := fullBytes; i < 16; i++ {
		result[i] = candBytes[i]
	}

	return netip.PrefixFrom(netip.AddrFrom16(result), cand.Bits()).Masked()
}
