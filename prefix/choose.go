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

import "net/netip"

// randomAttempts is the number of pseudo-random candidates tried before
// falling back to a deterministic linear scan.
const randomAttempts = 10

// Choose finds a prefix of length length inside usp that does not overlap
// any prefix in used. It first tries a handful of pseudo-random candidates
// (cheap, and avoids every router picking the same low addresses), then
// falls back to a linear scan from the last random candidate, wrapping once
// at the end of usp. It reports false if usp has no free space of that
// length.
func Choose(usp netip.Prefix, length int, used []netip.Prefix, ourRID uint32, ifaceName string) (netip.Prefix, bool) {
	var cand netip.Prefix

	for i := 0; i < randomAttempts; i++ {
		cand = PseudoRandomSub(usp, length, ourRID, ifaceName, i)
		if !OverlapsAny(cand, used) {
			return cand, true
		}
	}

	start := cand
	looped := false

	for !looped || cand.Addr().Compare(start.Addr()) < 0 {
		if !Contains(usp, cand) {
			cand = netip.PrefixFrom(usp.Addr(), length).Masked()
			looped = true
		}

		if !OverlapsAny(cand, used) {
			return cand, true
		}

		blocker, ok := FindOverlap(cand, used)
		if !ok {
			// OverlapsAny said yes, FindOverlap must agree.
			return netip.Prefix{}, false
		}

		next, ok := NextNonOverlap(cand, blocker)
		if !ok {
			return netip.Prefix{}, false
		}
		cand = next
	}

	return netip.Prefix{}, false
}
