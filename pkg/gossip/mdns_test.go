package gossip

import (
	"net"
	"testing"

	"github.com/libp2p/zeroconf/v2"
)

func TestAddressFromEntryPrefersTXTRecord(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		Text:     []string{"other=ignored", mdnsAddressTXTKey + "192.168.1.5:9000"},
		AddrIPv4: []net.IP{net.ParseIP("10.0.0.1")},
		Port:     9001,
	}
	got := addressFromEntry(entry)
	if got != "192.168.1.5:9000" {
		t.Fatalf("expected TXT address, got %s", got)
	}
}

func TestAddressFromEntryFallsBackToIPv4(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		AddrIPv4: []net.IP{net.ParseIP("10.0.0.1")},
		Port:     9001,
	}
	got := addressFromEntry(entry)
	if got != "10.0.0.1:9001" {
		t.Fatalf("expected ipv4 fallback, got %s", got)
	}
}

func TestAddressFromEntryEmptyWhenNoAddress(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	if got := addressFromEntry(entry); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestNewMDNSDiscoveryRejectsBadAddress(t *testing.T) {
	if _, err := NewMDNSDiscovery("_gossipd._tcp", "not-a-host-port", nil, nil); err == nil {
		t.Fatalf("expected error for malformed address")
	}
}
