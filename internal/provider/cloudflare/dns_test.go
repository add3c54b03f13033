package cloudflare

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
	"ddns-manager/internal/provider/cloudflare/cloudflaretest"
)

func newTestProvider(t *testing.T, srv *cloudflaretest.Server) *DNSProvider {
	t.Helper()
	p, err := NewDNSProvider(&config.CloudflareConfig{APIKey: srv.Token}, logr.Discard(), WithBaseURL(srv.URL), cloudflare.UsingRateLimit(1000))
	if err != nil {
		t.Fatalf("NewDNSProvider() error: %v", err)
	}
	return p
}

var www = domain.Domain{Apex: "example.com", Subdomain: "www"}

func TestEnsureRecord(t *testing.T) {
	srv := cloudflaretest.NewServer("token", "example.com")
	defer srv.Close()
	p := newTestProvider(t, srv)
	ctx := context.Background()

	action, err := provider.EnsureRecord(ctx, p, www, netip.MustParseAddr("203.0.113.5"))
	if err != nil || action != provider.ActionCreated {
		t.Fatalf("EnsureRecord() = %q, %v", action, err)
	}
	creates := srv.Creates()
	if len(creates) != 1 {
		t.Fatalf("got %d creates, want 1", len(creates))
	}
	c := creates[0]
	if c.Content != "203.0.113.5" || c.Name != "www.example.com" || c.Type != "A" || c.TTL != 1 {
		t.Errorf("create = %+v", c)
	}
	if c.Proxied == nil || *c.Proxied {
		t.Errorf("create proxied = %v, want false", c.Proxied)
	}

	action, err = provider.EnsureRecord(ctx, p, www, netip.MustParseAddr("203.0.113.5"))
	if err != nil || action != provider.ActionUnchanged {
		t.Fatalf("second EnsureRecord() = %q, %v", action, err)
	}

	action, err = provider.EnsureRecord(ctx, p, www, netip.MustParseAddr("203.0.113.9"))
	if err != nil || action != provider.ActionUpdated {
		t.Fatalf("third EnsureRecord() = %q, %v", action, err)
	}
	if updates := srv.Updates(); len(updates) != 1 || updates[0].Content != "203.0.113.9" {
		t.Errorf("updates = %+v", updates)
	}
	if len(srv.Creates()) != 1 {
		t.Errorf("unexpected extra create")
	}
}

func TestIPv6UsesAAAA(t *testing.T) {
	srv := cloudflaretest.NewServer("token", "example.com")
	defer srv.Close()
	p := newTestProvider(t, srv)

	apex := domain.Domain{Apex: "example.com", Subdomain: "@"}
	if _, err := provider.EnsureRecord(context.Background(), p, apex, netip.MustParseAddr("2001:db8::5")); err != nil {
		t.Fatal(err)
	}
	c := srv.Creates()[0]
	if c.Type != "AAAA" || c.Name != "example.com" {
		t.Errorf("create = %+v", c)
	}
}

func TestUnknownZone(t *testing.T) {
	srv := cloudflaretest.NewServer("token", "example.org")
	defer srv.Close()
	p := newTestProvider(t, srv)

	_, err := provider.EnsureRecord(context.Background(), p, www, netip.MustParseAddr("203.0.113.5"))
	var perr *provider.ProtocolError
	if !errors.As(err, &perr) || perr.Op != provider.OpQuery {
		t.Fatalf("error = %v, want query ProtocolError", err)
	}
}

func TestErrorChain(t *testing.T) {
	srv := cloudflaretest.NewServer("token", "example.com")
	defer srv.Close()
	srv.FailWith(cloudflaretest.ErrorInfo{
		Code:    1004,
		Message: "DNS Validation Error",
		ErrorChain: []cloudflaretest.ErrorInfo{
			{Code: 9005, Message: "Content for A record is invalid."},
		},
	})
	p := newTestProvider(t, srv)

	_, err := provider.EnsureRecord(context.Background(), p, www, netip.MustParseAddr("203.0.113.5"))

	var perr *provider.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want ProtocolError", err)
	}
	if perr.Op != provider.OpCreate || perr.Provider != config.KindCloudflare {
		t.Errorf("ProtocolError = %+v", perr)
	}
	if want := "1004: DNS Validation Error. 9005: Content for A record is invalid."; perr.Message != want {
		t.Errorf("Message = %q, want %q", perr.Message, want)
	}
}

func TestBadToken(t *testing.T) {
	srv := cloudflaretest.NewServer("token", "example.com")
	defer srv.Close()
	p, err := NewDNSProvider(&config.CloudflareConfig{APIKey: "wrong"}, logr.Discard(), WithBaseURL(srv.URL), cloudflare.UsingRateLimit(1000))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.FindRecord(context.Background(), www, "A"); err == nil {
		t.Fatal("expected error")
	}
}
