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
)

// Sweep removes every record left marked invalid after a full pass over
// (usp, iface) pairs: nothing revalidated it this run. It reports whether
// any record we own was swept, which is the only case that requires an
// AC-LSA re-emission.
func Sweep(ctx context.Context, log logr.Logger, ar *area.Area) bool {
	changed := false
	for _, iface := range ar.Interfaces {
		snapshot := append([]*area.AssignmentRecord(nil), iface.ASPList...)
		for _, rec := range snapshot {
			if rec.Valid {
				continue
			}
			deleteRecord(ctx, log, ar, iface, rec, "sweep", 0)
			if rec.RID == ar.OurRouterID {
				changed = true
			}
		}
	}
	return changed
}
