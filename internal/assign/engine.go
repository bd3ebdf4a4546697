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

	"github.com/go-logr/logr"

	"github.com/jr42/ospf-pxassign/area"
	"github.com/jr42/ospf-pxassign/lsdb"
)

// Engine runs run_assignment(area) against an Area.
type Engine struct {
	Log logr.Logger
}

// NewEngine builds an Engine. There is no surrounding manager to hand this
// a logger from context; callers inject one explicitly (see package
// pxlog).
func NewEngine(log logr.Logger) *Engine {
	return &Engine{Log: log.WithName("assign")}
}

// RunAssignment is the single procedure triggered whenever the AC-LSDB, the
// set of local interfaces, or the set of neighbor states changes. It is
// re-entrancy-safe: unchanged inputs produce no kernel call and no
// schedule. It reports whether anything changed.
func (e *Engine) RunAssignment(ctx context.Context, ar *area.Area) bool {
	syncUSPs(ar)

	for _, iface := range ar.Interfaces {
		for _, rec := range iface.ASPList {
			rec.Valid = false
		}
	}

	changed := false
	usps := append([]lsdb.USP(nil), ar.USPs...)
	for _, usp := range usps {
		for _, iface := range ar.Interfaces {
			if process(ctx, e.Log, ar, usps, usp, iface) {
				changed = true
			}
		}
	}

	if Sweep(ctx, e.Log, ar) {
		changed = true
	}

	if changed {
		ar.Scheduler.Schedule(ar.Name)
	}
	return changed
}

// syncUSPs refreshes the AC-LSA-origin entries in ar.USPs from the LSDB,
// preserving any locally ingested DHCPv6-PD entries (package dhcppd owns
// those directly).
func syncUSPs(ar *area.Area) {
	fresh := ar.LSDB.USPs(ar.Name)
	var kept []lsdb.USP
	for _, usp := range ar.USPs {
		if usp.Origin != lsdb.OriginACLSA {
			kept = append(kept, usp)
		}
	}
	ar.USPs = append(fresh, kept...)
}
