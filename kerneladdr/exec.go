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

package kerneladdr

import (
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// ExecConfigurator shells out to the platform `ip` command to add/remove
// addresses. This is a stand-in; a production daemon would replace this
// with a native netlink transaction carrying the same idempotent add/del
// contract.
type ExecConfigurator struct {
	Log logr.Logger
	// Run executes an `ip` invocation and returns its output; overridable
	// in tests. NewExecConfigurator sets it to
	// exec.CommandContext("ip", args...).CombinedOutput.
	Run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewExecConfigurator builds an ExecConfigurator that shells out to the
// real `ip` binary.
func NewExecConfigurator(log logr.Logger) *ExecConfigurator {
	return &ExecConfigurator{
		Log: log,
		Run: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, "ip", args...).CombinedOutput()
		},
	}
}

// Add installs the address via `ip -6 addr add <addr>/<len> dev <iface>`.
func (c *ExecConfigurator) Add(ctx context.Context, iface string, p netip.Prefix, myRID uint32) error {
	addr := HostAddress(p, myRID)
	out, err := c.Run(ctx, "-6", "addr", "add", fmt.Sprintf("%s/%d", addr, p.Bits()), "dev", iface)
	if err != nil && !alreadyExists(out) {
		return fmt.Errorf("ip addr add %s/%d dev %s: %w: %s", addr, p.Bits(), iface, err, out)
	}
	return nil
}

// Del removes the address via `ip -6 addr del <addr>/<len> dev <iface>`.
func (c *ExecConfigurator) Del(ctx context.Context, iface string, p netip.Prefix, myRID uint32) error {
	addr := HostAddress(p, myRID)
	out, err := c.Run(ctx, "-6", "addr", "del", fmt.Sprintf("%s/%d", addr, p.Bits()), "dev", iface)
	if err != nil && !notFound(out) {
		return fmt.Errorf("ip addr del %s/%d dev %s: %w: %s", addr, p.Bits(), iface, err, out)
	}
	return nil
}

// alreadyExists recognizes the "ip addr add" error text for an address that
// is already configured, so repeated Add calls stay idempotent.
func alreadyExists(out []byte) bool {
	return strings.Contains(string(out), "File exists")
}

// notFound recognizes the "ip addr del" error text for an address that is
// already gone, so repeated Del calls stay idempotent.
func notFound(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "Cannot find device") || strings.Contains(s, "Cannot assign requested address")
}
