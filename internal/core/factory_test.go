package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
)

func TestFactoryCachesByConfig(t *testing.T) {
	f := NewFactory(logr.Discard())
	p := &config.Provider{Name: "cf", Cloudflare: &config.CloudflareConfig{APIKey: "one"}}

	first, err := f.GetDNSProvider(p)
	if err != nil {
		t.Fatalf("GetDNSProvider() error: %v", err)
	}
	again, _ := f.GetDNSProvider(&config.Provider{Name: "cf", Cloudflare: &config.CloudflareConfig{APIKey: "one"}})
	if first != again {
		t.Error("same config should reuse the cached provider")
	}

	changed, err := f.GetDNSProvider(&config.Provider{Name: "cf", Cloudflare: &config.CloudflareConfig{APIKey: "two"}})
	if err != nil {
		t.Fatalf("GetDNSProvider() error: %v", err)
	}
	if changed == first {
		t.Error("changed config should build a new provider")
	}
}

func TestFactoryDispatch(t *testing.T) {
	f := NewFactory(logr.Discard())
	tests := []struct {
		provider config.Provider
		want     string
	}{
		{config.Provider{Name: "a", Aliyun: &config.AliyunConfig{SecretID: "id", SecretKey: "key"}}, config.KindAliyun},
		{config.Provider{Name: "t", Tencent: &config.TencentConfig{SecretID: "id", SecretKey: "key"}}, config.KindTencent},
		{config.Provider{Name: "c", Cloudflare: &config.CloudflareConfig{APIKey: "token"}}, config.KindCloudflare},
	}
	for _, tt := range tests {
		dp, err := f.GetDNSProvider(&tt.provider)
		if err != nil {
			t.Fatalf("GetDNSProvider(%s) error: %v", tt.want, err)
		}
		if dp.Name() != tt.want {
			t.Errorf("Name() = %q, want %q", dp.Name(), tt.want)
		}
	}

	if _, err := f.GetDNSProvider(&config.Provider{Name: "empty"}); err == nil {
		t.Error("provider without credentials should fail")
	}
}

func TestFactoryHuaweiBuildFailureIsError(t *testing.T) {
	iam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":401,"message":"Unauthorized"}}`, http.StatusUnauthorized)
	}))
	defer iam.Close()
	t.Setenv("HUAWEICLOUD_SDK_IAM_ENDPOINT", iam.URL)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Ensure() panicked: %v", r)
		}
	}()

	f := NewFactory(logr.Discard())
	p := &config.Provider{Name: "hw", Huawei: &config.HuaweiConfig{AccessKey: "fake-ak", SecretKey: "fake-sk"}}
	_, err := f.Ensure(context.Background(), p, domain.Domain{Apex: "example.com", Subdomain: "www"}, netip.MustParseAddr("203.0.113.5"))

	var perr *provider.ProtocolError
	if !errors.As(err, &perr) || perr.Provider != config.KindHuawei {
		t.Fatalf("Ensure() error = %v, want huawei ProtocolError", err)
	}
}
