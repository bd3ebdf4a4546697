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

// Package assign implements the distributed prefix-assignment algorithm:
// the used-set collector, responsibility resolver, assignment executor and
// invalidation sweep that together make up run_assignment(area).
package assign

import (
	"net/netip"

	"github.com/go-logr/logr"
)

// event emits one D_EVENTS record: structured observability with fields
// (interface, assignment, peer, reason), the only observability surface
// this core introduces.
func event(log logr.Logger, iface string, assignment netip.Prefix, peer uint32, reason string) {
	log.Info("D_EVENTS", "interface", iface, "assignment", assignment, "peer", peer, "reason", reason)
}

// eventNoAssignment emits a D_EVENTS record for a (usp, iface) pair that
// produced no assignment at all.
func eventNoAssignment(log logr.Logger, iface string, reason string) {
	log.Info("D_EVENTS", "interface", iface, "assignment", nil, "peer", nil, "reason", reason)
}
