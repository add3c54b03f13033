package resolver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/go-logr/logr"
	"github.com/miekg/dns"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
)

func newResolver() *Resolver {
	return New(nil, logr.Discard())
}

func TestResolveAPI(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, "203.0.113.5\n")
	}))
	defer srv.Close()

	m := config.Method{Kind: config.MethodAPI, Endpoint: srv.URL}

	addr, ok, err := newResolver().Resolve(context.Background(), m, domain.IPv4)
	if err != nil || !ok {
		t.Fatalf("Resolve() = %v, %v, %v", addr, ok, err)
	}
	if want := netip.MustParseAddr("203.0.113.5"); addr != want {
		t.Errorf("addr = %s, want %s", addr, want)
	}
	if gotUA != userAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}

	// 地址族不匹配时不是错误
	_, ok, err = newResolver().Resolve(context.Background(), m, domain.IPv6)
	if err != nil || ok {
		t.Errorf("ipv6 Resolve() = %v, %v; want none", ok, err)
	}
}

func TestResolveAPIMappedAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "::ffff:203.0.113.5")
	}))
	defer srv.Close()
	m := config.Method{Kind: config.MethodAPI, Endpoint: srv.URL}

	if addr, ok, err := newResolver().Resolve(context.Background(), m, domain.IPv4); err != nil || ok {
		t.Errorf("ipv4 Resolve() = %s, %v, %v; want none", addr, ok, err)
	}

	addr, ok, err := newResolver().Resolve(context.Background(), m, domain.IPv6)
	if err != nil || !ok {
		t.Fatalf("ipv6 Resolve() = %s, %v, %v", addr, ok, err)
	}
	if domain.FamilyOf(addr).RecordType() != "AAAA" {
		t.Errorf("record type = %s, want AAAA", domain.FamilyOf(addr).RecordType())
	}
}

func TestResolveAPIInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not an address</html>")
	}))
	defer srv.Close()

	_, _, err := newResolver().Resolve(context.Background(), config.Method{Kind: config.MethodAPI, Endpoint: srv.URL}, domain.IPv4)
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want ResolutionError", err)
	}
	if rerr.Method != config.MethodAPI {
		t.Errorf("Method = %q", rerr.Method)
	}
}

func TestResolveNICUnknownInterface(t *testing.T) {
	m := config.Method{Kind: config.MethodNIC, Interface: "no-such-interface0"}
	for _, family := range []domain.Family{domain.IPv4, domain.IPv6} {
		_, ok, err := newResolver().Resolve(context.Background(), m, family)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", family, err)
		}
		if ok {
			t.Errorf("%s: expected no address", family)
		}
	}
}

func TestResolveCmd(t *testing.T) {
	tests := []struct {
		name    string
		command string
		family  domain.Family
		want    string
		wantErr bool
	}{
		{name: "ipv4", command: "echo ' 198.51.100.7 '", family: domain.IPv4, want: "198.51.100.7"},
		{name: "ipv6", command: "printf '2001:db8::1\\n'", family: domain.IPv6, want: "2001:db8::1"},
		{name: "wrong family", command: "echo 198.51.100.7", family: domain.IPv6},
		{name: "mapped is not ipv4", command: "echo ::ffff:203.0.113.5", family: domain.IPv4},
		{name: "mapped is ipv6", command: "echo ::ffff:203.0.113.5", family: domain.IPv6, want: "::ffff:203.0.113.5"},
		{name: "garbage", command: "echo hello", family: domain.IPv4, wantErr: true},
		{name: "exit status", command: "echo oops >&2; exit 3", family: domain.IPv4, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok, err := newResolver().Resolve(context.Background(), config.Method{Kind: config.MethodCmd, Command: tt.command}, tt.family)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if tt.want == "" {
				if ok {
					t.Errorf("expected no address, got %s", addr)
				}
				return
			}
			if !ok || addr != netip.MustParseAddr(tt.want) {
				t.Errorf("Resolve() = %s, %v; want %s", addr, ok, tt.want)
			}
		})
	}
}

func TestResolveDNS(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on udp: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc("myip.example.", func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)
		switch req.Question[0].Qtype {
		case dns.TypeA:
			rr, _ := dns.NewRR("myip.example. 0 IN A 192.0.2.44")
			resp.Answer = append(resp.Answer, rr)
		case dns.TypeAAAA:
			rr, _ := dns.NewRR("myip.example. 0 IN AAAA 2001:db8::44")
			resp.Answer = append(resp.Answer, rr)
		}
		w.WriteMsg(resp)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	defer srv.Shutdown()
	<-started

	m := config.Method{Kind: config.MethodDNS, Server: pc.LocalAddr().String(), Query: "myip.example"}

	tests := []struct {
		family domain.Family
		want   string
	}{
		{domain.IPv4, "192.0.2.44"},
		{domain.IPv6, "2001:db8::44"},
	}
	for _, tt := range tests {
		addr, ok, err := newResolver().Resolve(context.Background(), m, tt.family)
		if err != nil || !ok {
			t.Fatalf("%s: Resolve() = %v, %v, %v", tt.family, addr, ok, err)
		}
		if addr != netip.MustParseAddr(tt.want) {
			t.Errorf("%s: addr = %s, want %s", tt.family, addr, tt.want)
		}
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newResolver().Resolve(ctx, config.Method{Kind: config.MethodCmd, Command: "sleep 5; echo 1.1.1.1"}, domain.IPv4)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestFirst(t *testing.T) {
	addrs := []netip.Addr{
		netip.MustParseAddr("fe80::1"),
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
	}
	if got, ok := First(addrs, domain.IPv4); !ok || got.String() != "10.0.0.1" {
		t.Errorf("First(ipv4) = %s, %v", got, ok)
	}
	if got, ok := First(addrs, domain.IPv6); !ok || got.String() != "fe80::1" {
		t.Errorf("First(ipv6) = %s, %v", got, ok)
	}
	if _, ok := First(nil, domain.IPv4); ok {
		t.Error("First(nil) returned an address")
	}
}
