package domain

import (
	"net/netip"
	"testing"
)

func TestDomainFQDN(t *testing.T) {
	tests := []struct {
		d    Domain
		fqdn string
		rr   string
	}{
		{Domain{Apex: "example.com", Subdomain: "www"}, "www.example.com", "www"},
		{Domain{Apex: "example.com", Subdomain: "@"}, "example.com", "@"},
		{Domain{Apex: "example.com"}, "example.com", "@"},
		{Domain{Apex: "example.com", Subdomain: "a.b"}, "a.b.example.com", "a.b"},
	}
	for _, tt := range tests {
		if got := tt.d.FQDN(); got != tt.fqdn {
			t.Errorf("FQDN(%+v) = %q, want %q", tt.d, got, tt.fqdn)
		}
		if got := tt.d.RR(); got != tt.rr {
			t.Errorf("RR(%+v) = %q, want %q", tt.d, got, tt.rr)
		}
	}
}

func TestFamily(t *testing.T) {
	v4 := netip.MustParseAddr("203.0.113.5")
	v6 := netip.MustParseAddr("2001:db8::1")

	if !IPv4.Match(v4) || IPv4.Match(v6) {
		t.Error("IPv4.Match mismatch")
	}
	if !IPv6.Match(v6) || IPv6.Match(v4) {
		t.Error("IPv6.Match mismatch")
	}
	if IPv4.Match(netip.Addr{}) {
		t.Error("zero addr must not match")
	}
	if IPv4.RecordType() != "A" || IPv6.RecordType() != "AAAA" {
		t.Error("unexpected record types")
	}
	if FamilyOf(v6) != IPv6 || FamilyOf(v4) != IPv4 {
		t.Error("FamilyOf mismatch")
	}
	mapped := netip.MustParseAddr("::ffff:203.0.113.5")
	if IPv4.Match(mapped) || !IPv6.Match(mapped) || FamilyOf(mapped) != IPv6 {
		t.Error("IPv4-mapped address must be treated as IPv6")
	}
	if IPv6.String() != "ipv6" {
		t.Errorf("IPv6.String() = %q", IPv6.String())
	}
}
