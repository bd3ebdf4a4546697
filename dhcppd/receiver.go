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

// Package dhcppd implements the router's DHCPv6-PD source and the USP
// ingestor built on top of it: a real DHCPv6 Prefix Delegation client
// (Client) that acquires and renews a delegated prefix, and an Ingestor
// that merges whatever that client currently holds into an area's USP
// set.
package dhcppd

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/insomniacslk/dhcp/dhcpv6"
	"github.com/insomniacslk/dhcp/dhcpv6/nclient6"
	"github.com/insomniacslk/dhcp/iana"
)

// Client is a DHCPv6 Prefix Delegation client. It actively requests prefix
// delegation from an upstream DHCPv6 server and handles lease renewals,
// exposing the result as a system-provided delegated prefix string through
// the Source interface.
type Client struct {
	mu                    sync.RWMutex
	iface                 string
	requestedPrefixLength int
	log                   logr.Logger

	currentPrefix netip.Prefix
	haveCurrent   bool
	lease         *lease

	stopCh  chan struct{}
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// lease contains DHCPv6-PD lease bookkeeping.
type lease struct {
	IAID              [4]byte
	Prefix            netip.Prefix
	T1                time.Duration
	T2                time.Duration
	ValidLifetime     time.Duration
	PreferredLifetime time.Duration
	ReceivedAt        time.Time
	ServerID          dhcpv6.DUID
}

// NewClient creates a DHCPv6-PD client for the given interface.
// requestedPrefixLength is a hint to the server (typically 48-64); 0
// defaults to 56.
func NewClient(iface string, requestedPrefixLength int, log logr.Logger) *Client {
	if requestedPrefixLength == 0 {
		requestedPrefixLength = 56
	}
	return &Client{
		iface:                 iface,
		requestedPrefixLength: requestedPrefixLength,
		log:                   log.WithName("dhcpv6pd-client").WithValues("iface", iface),
		stopCh:                make(chan struct{}),
	}
}

// Start begins the acquisition and renewal loop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	go c.runLoop()
	return nil
}

// Stop stops the client.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	if c.cancel != nil {
		c.cancel()
	}
	close(c.stopCh)
	return nil
}

// GetDelegatedPrefix returns the currently delegated prefix formatted as
// "<ipv6>/<len>", or ("", false) when nothing has been delegated yet.
func (c *Client) GetDelegatedPrefix() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveCurrent {
		return "", false
	}
	return c.currentPrefix.String(), true
}

func (c *Client) runLoop() {
	if err := c.acquirePrefix(); err != nil {
		c.log.Error(err, "initial prefix acquisition failed")
	}

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		l := c.lease
		c.mu.RUnlock()

		if l == nil {
			select {
			case <-c.stopCh:
				return
			case <-c.ctx.Done():
				return
			case <-time.After(10 * time.Second):
			}
			if err := c.acquirePrefix(); err != nil {
				c.log.Error(err, "prefix acquisition failed")
			}
			continue
		}

		elapsed := time.Since(l.ReceivedAt)
		if elapsed >= l.T1 {
			if err := c.renewPrefix(); err != nil {
				c.log.Error(err, "prefix renewal failed")
				if elapsed >= l.T2 {
					if err := c.rebindPrefix(); err != nil {
						c.log.Error(err, "prefix rebind failed")
						c.mu.Lock()
						c.haveCurrent = false
						c.lease = nil
						c.mu.Unlock()
					}
				}
			}
			continue
		}

		sleepDuration := l.T1 - elapsed
		if sleepDuration > time.Minute {
			sleepDuration = time.Minute
		}
		select {
		case <-c.stopCh:
			return
		case <-c.ctx.Done():
			return
		case <-time.After(sleepDuration):
		}
	}
}

func (c *Client) acquirePrefix() error {
	ifi, err := net.InterfaceByName(c.iface)
	if err != nil {
		return fmt.Errorf("failed to get interface %s: %w", c.iface, err)
	}

	client, err := nclient6.New(c.iface)
	if err != nil {
		return fmt.Errorf("failed to create DHCPv6 client: %w", err)
	}
	defer func() { _ = client.Close() }()

	iaid := ifaceIAID(ifi.Index)
	iaPD := &dhcpv6.OptIAPD{
		IaId: iaid,
		Options: dhcpv6.PDOptions{
			Options: dhcpv6.Options{
				&dhcpv6.OptIAPrefix{
					Prefix: &net.IPNet{
						IP:   net.IPv6zero,
						Mask: net.CIDRMask(c.requestedPrefixLength, 128),
					},
				},
			},
		},
	}

	solicitMods := []dhcpv6.Modifier{
		dhcpv6.WithClientID(c.generateDUID(ifi)),
		dhcpv6.WithRequestedOptions(dhcpv6.OptionDNSRecursiveNameServer),
	}

	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	solicit, err := dhcpv6.NewSolicit(ifi.HardwareAddr, solicitMods...)
	if err != nil {
		return fmt.Errorf("failed to create SOLICIT: %w", err)
	}
	solicit.AddOption(iaPD)

	advertise, err := client.SendAndRead(ctx, nclient6.AllDHCPRelayAgentsAndServers, solicit, nclient6.IsMessageType(dhcpv6.MessageTypeAdvertise))
	if err != nil {
		return fmt.Errorf("failed to receive ADVERTISE: %w", err)
	}

	if advertise.GetOneOption(dhcpv6.OptionIAPD) == nil {
		return fmt.Errorf("ADVERTISE did not contain IA_PD")
	}
	serverID := advertise.Options.ServerID()
	if serverID == nil {
		return fmt.Errorf("ADVERTISE did not contain Server ID")
	}

	request, err := dhcpv6.NewRequestFromAdvertise(advertise)
	if err != nil {
		return fmt.Errorf("failed to create REQUEST: %w", err)
	}

	reply, err := client.SendAndRead(ctx, nclient6.AllDHCPRelayAgentsAndServers, request, nclient6.IsMessageType(dhcpv6.MessageTypeReply))
	if err != nil {
		return fmt.Errorf("failed to receive REPLY: %w", err)
	}

	return c.processIAPDReply(reply, iaid, serverID)
}

func (c *Client) renewPrefix() error {
	c.mu.RLock()
	l := c.lease
	c.mu.RUnlock()
	if l == nil {
		return fmt.Errorf("no lease to renew")
	}

	ifi, err := net.InterfaceByName(c.iface)
	if err != nil {
		return fmt.Errorf("failed to get interface %s: %w", c.iface, err)
	}
	client, err := nclient6.New(c.iface)
	if err != nil {
		return fmt.Errorf("failed to create DHCPv6 client: %w", err)
	}
	defer func() { _ = client.Close() }()

	renew, err := dhcpv6.NewMessage()
	if err != nil {
		return fmt.Errorf("failed to create RENEW message: %w", err)
	}
	renew.MessageType = dhcpv6.MessageTypeRenew
	renew.AddOption(dhcpv6.OptClientID(c.generateDUID(ifi)))
	renew.AddOption(dhcpv6.OptServerID(l.ServerID))
	renew.AddOption(leaseIAPD(l))

	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	reply, err := client.SendAndRead(ctx, nclient6.AllDHCPRelayAgentsAndServers, renew, nclient6.IsMessageType(dhcpv6.MessageTypeReply))
	if err != nil {
		return fmt.Errorf("failed to receive REPLY for RENEW: %w", err)
	}
	return c.processIAPDReply(reply, l.IAID, l.ServerID)
}

func (c *Client) rebindPrefix() error {
	c.mu.RLock()
	l := c.lease
	c.mu.RUnlock()
	if l == nil {
		return fmt.Errorf("no lease to rebind")
	}

	ifi, err := net.InterfaceByName(c.iface)
	if err != nil {
		return fmt.Errorf("failed to get interface %s: %w", c.iface, err)
	}
	client, err := nclient6.New(c.iface)
	if err != nil {
		return fmt.Errorf("failed to create DHCPv6 client: %w", err)
	}
	defer func() { _ = client.Close() }()

	rebind, err := dhcpv6.NewMessage()
	if err != nil {
		return fmt.Errorf("failed to create REBIND message: %w", err)
	}
	rebind.MessageType = dhcpv6.MessageTypeRebind
	rebind.AddOption(dhcpv6.OptClientID(c.generateDUID(ifi)))
	rebind.AddOption(leaseIAPD(l))

	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	reply, err := client.SendAndRead(ctx, nclient6.AllDHCPRelayAgentsAndServers, rebind, nclient6.IsMessageType(dhcpv6.MessageTypeReply))
	if err != nil {
		return fmt.Errorf("failed to receive REPLY for REBIND: %w", err)
	}

	serverID := reply.Options.ServerID()
	if serverID == nil {
		return fmt.Errorf("REPLY did not contain Server ID")
	}
	return c.processIAPDReply(reply, l.IAID, serverID)
}

func (c *Client) processIAPDReply(reply *dhcpv6.Message, expectedIAID [4]byte, serverID dhcpv6.DUID) error {
	var iaPD *dhcpv6.OptIAPD
	for _, opt := range reply.Options.Get(dhcpv6.OptionIAPD) {
		pd := opt.(*dhcpv6.OptIAPD)
		if pd.IaId == expectedIAID {
			iaPD = pd
			break
		}
	}
	if iaPD == nil {
		return fmt.Errorf("REPLY did not contain matching IA_PD")
	}

	if status := iaPD.Options.Status(); status != nil && status.StatusCode != iana.StatusSuccess {
		return fmt.Errorf("IA_PD status error: %s - %s", status.StatusCode, status.StatusMessage)
	}

	prefixes := iaPD.Options.Prefixes()
	if len(prefixes) == 0 {
		return fmt.Errorf("IA_PD did not contain any prefixes")
	}

	var best *dhcpv6.OptIAPrefix
	for _, p := range prefixes {
		if p.ValidLifetime > 0 {
			best = p
			break
		}
	}
	if best == nil {
		return fmt.Errorf("no valid prefix in IA_PD")
	}

	addr, ok := netip.AddrFromSlice(best.Prefix.IP)
	if !ok {
		return fmt.Errorf("invalid prefix address")
	}
	ones, _ := best.Prefix.Mask.Size()
	p := netip.PrefixFrom(addr, ones).Masked()

	t1, t2 := iaPD.T1, iaPD.T2
	if t1 == 0 {
		t1 = best.ValidLifetime / 2
	}
	if t2 == 0 {
		t2 = best.ValidLifetime * 4 / 5
	}

	now := time.Now()
	newLease := &lease{
		IAID:              expectedIAID,
		Prefix:            p,
		T1:                t1,
		T2:                t2,
		ValidLifetime:     best.ValidLifetime,
		PreferredLifetime: best.PreferredLifetime,
		ReceivedAt:        now,
		ServerID:          serverID,
	}

	c.mu.Lock()
	old, hadOld := c.currentPrefix, c.haveCurrent
	c.currentPrefix = p
	c.haveCurrent = true
	c.lease = newLease
	c.mu.Unlock()

	switch {
	case !hadOld:
		c.log.Info("prefix acquired", "prefix", p)
	case old != p:
		c.log.Info("prefix changed", "old", old, "new", p)
	default:
		c.log.V(1).Info("prefix renewed", "prefix", p)
	}
	return nil
}

func (c *Client) generateDUID(ifi *net.Interface) dhcpv6.DUID {
	return &dhcpv6.DUIDLL{
		HWType:        iana.HWTypeEthernet,
		LinkLayerAddr: ifi.HardwareAddr,
	}
}

func ifaceIAID(index int) [4]byte {
	return [4]byte{byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)}
}

func leaseIAPD(l *lease) *dhcpv6.OptIAPD {
	ip := l.Prefix.Addr().AsSlice()
	bits := l.Prefix.Bits()
	return &dhcpv6.OptIAPD{
		IaId: l.IAID,
		Options: dhcpv6.PDOptions{
			Options: dhcpv6.Options{
				&dhcpv6.OptIAPrefix{
					PreferredLifetime: l.PreferredLifetime,
					ValidLifetime:     l.ValidLifetime,
					Prefix: &net.IPNet{
						IP:   ip,
						Mask: net.CIDRMask(bits, 128),
					},
				},
			},
		},
	}
}
