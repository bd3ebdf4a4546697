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

// Package kerneladdr is the kernel-interface address configurator: it
// installs and removes the IPv6 addresses this core decides on. Both
// operations must be idempotent across repeated calls with identical
// arguments.
package kerneladdr

import (
	"context"
	"math/big"
	"net/netip"

	"github.com/jr42/ospf-pxassign/prefix"
)

// AddrConfigurator installs and removes kernel IPv6 addresses. Add is
// required to hold the invariant "the address is configured before the
// record is considered installed"; Del holds "the address is removed
// before the record is destroyed" — both are the caller's responsibility
// to sequence, not this interface's.
type AddrConfigurator interface {
	// Add installs prefix.Addr with host bits derived from myRID on
	// iface, masked to prefix.Bits().
	Add(ctx context.Context, iface string, prefix netip.Prefix, myRID uint32) error
	// Del removes the address previously installed with the same
	// arguments.
	Del(ctx context.Context, iface string, prefix netip.Prefix, myRID uint32) error
}

// HostAddress derives the full address to configure for p: p's network bits
// (the top p.Bits() bits) followed by myRID split as
// (myRID>>16):(myRID&0xFFFF) in the low 32 bits.
func HostAddress(p netip.Prefix, myRID uint32) netip.Addr {
	network := prefix.AddrToBig(p.Masked().Addr())

	mask32 := new(big.Int).SetUint64(0xFFFFFFFF)
	network.AndNot(network, mask32)
	network.Or(network, big.NewInt(int64(myRID)))

	return prefix.BigToAddr(network)
}
