package aliyun

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
)

// fakeAlidns 按 x-acs-action 分发的假接口，只保存一条记录
type fakeAlidns struct {
	mu      sync.Mutex
	value   string
	actions []string
	queries []string
}

func (f *fakeAlidns) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	action := r.Header.Get("x-acs-action")
	f.actions = append(f.actions, action)
	f.queries = append(f.queries, r.URL.RawQuery)

	if !strings.HasPrefix(r.Header.Get("Authorization"), "ACS3-HMAC-SHA256 Credential=id,") ||
		r.Host != Host || r.Header.Get("x-acs-version") != Version {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"Code":"IncompleteSignature","Message":"bad signature","RequestId":"r0"}`)
		return
	}

	switch action {
	case "DescribeSubDomainRecords":
		if f.value == "" {
			io.WriteString(w, `{"TotalCount":0,"DomainRecords":{"Record":[]},"RequestId":"r1"}`)
			return
		}
		io.WriteString(w, `{"TotalCount":1,"DomainRecords":{"Record":[{"RR":"www","RecordId":"42","Value":"`+f.value+`","Type":"A","Line":"default","TTL":600}]},"RequestId":"r1"}`)
	case "AddDomainRecord":
		f.value = r.URL.Query().Get("Value")
		io.WriteString(w, `{"RecordId":"42","RequestId":"r2"}`)
	case "UpdateDomainRecord":
		f.value = r.URL.Query().Get("Value")
		io.WriteString(w, `{"RecordId":"42","RequestId":"r3"}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"Code":"InvalidAction","Message":"unknown action","RequestId":"r4"}`)
	}
}

func newTestProvider(t *testing.T, h http.Handler) *DNSProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewDNSProvider(&config.AliyunConfig{SecretID: "id", SecretKey: "secret"}, logr.Discard(), WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewDNSProvider() error: %v", err)
	}
	p.now = func() time.Time { return time.Unix(1698315752, 0) }
	return p
}

var www = domain.Domain{Apex: "example.com", Subdomain: "www"}

func TestEnsureRecordIdempotent(t *testing.T) {
	fake := &fakeAlidns{}
	p := newTestProvider(t, fake)
	addr := netip.MustParseAddr("203.0.113.5")

	for i, want := range []provider.Action{provider.ActionCreated, provider.ActionUnchanged} {
		action, err := provider.EnsureRecord(context.Background(), p, www, addr)
		if err != nil {
			t.Fatalf("call %d: EnsureRecord() error: %v", i, err)
		}
		if action != want {
			t.Errorf("call %d: action = %q, want %q", i, action, want)
		}
	}

	want := []string{"DescribeSubDomainRecords", "AddDomainRecord", "DescribeSubDomainRecords"}
	if strings.Join(fake.actions, ",") != strings.Join(want, ",") {
		t.Errorf("actions = %v, want %v", fake.actions, want)
	}
	if q := fake.queries[0]; q != "DomainName=example.com&PageSize=500&SubDomain=www.example.com&Type=A" {
		t.Errorf("query = %q", q)
	}
}

func TestEnsureRecordUpdates(t *testing.T) {
	fake := &fakeAlidns{value: "198.51.100.1"}
	p := newTestProvider(t, fake)

	action, err := provider.EnsureRecord(context.Background(), p, www, netip.MustParseAddr("203.0.113.5"))
	if err != nil || action != provider.ActionUpdated {
		t.Fatalf("EnsureRecord() = %q, %v", action, err)
	}
	if q := fake.queries[1]; q != "RR=www&RecordId=42&Type=A&Value=203.0.113.5" {
		t.Errorf("update query = %q", q)
	}
}

func TestAPIError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"Code":"InvalidDomainName.NoExist","Message":"The specified domain name does not exist.","RequestId":"r"}`)
	}))

	_, err := provider.EnsureRecord(context.Background(), p, www, netip.MustParseAddr("203.0.113.5"))

	var perr *provider.ProtocolError
	if !errors.As(err, &perr) || perr.Op != provider.OpQuery || perr.Provider != config.KindAliyun {
		t.Fatalf("error = %v, want query ProtocolError", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "InvalidDomainName.NoExist" {
		t.Errorf("error = %v, want APIError", err)
	}
}
