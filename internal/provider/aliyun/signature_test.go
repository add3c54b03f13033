package aliyun

import (
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	timestamp := time.Unix(1698315752, 0).UTC().Format(time.RFC3339)
	if timestamp != "2023-10-26T10:22:32Z" {
		t.Fatalf("timestamp = %s", timestamp)
	}

	got := Sign("YourAccessKeyId", "YourAccessKeySecret", timestamp, "RunInstances", "", "", "3156853299f313e23d1673dc12e1703d")
	want := "ACS3-HMAC-SHA256 Credential=YourAccessKeyId,SignedHeaders=host;x-acs-action;x-acs-content-sha256;x-acs-date;x-acs-signature-nonce;x-acs-version,Signature=a7537a2e570f3c1edb748445311eee3e3bf1e6cd30ea2dd8bdb5c8e45430b112"
	if got != want {
		t.Errorf("Sign() =\n%s\nwant\n%s", got, want)
	}
}

func TestCanonicalQuery(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{name: "empty", params: nil, want: ""},
		{
			name:   "sorted",
			params: map[string]string{"Type": "A", "DomainName": "example.com", "PageSize": "500"},
			want:   "DomainName=example.com&PageSize=500&Type=A",
		},
		{
			name:   "reserved characters",
			params: map[string]string{"SubDomain": "@.example.com", "Value": "a b+c/d*e~f_g-h"},
			want:   "SubDomain=%40.example.com&Value=a%20b%2Bc%2Fd%2Ae~f_g-h",
		},
		{
			name:   "ipv6 and utf-8",
			params: map[string]string{"Value": "2001:db8::1", "Line": "默认"},
			want:   "Line=%E9%BB%98%E8%AE%A4&Value=2001%3Adb8%3A%3A1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalQuery(tt.params); got != tt.want {
				t.Errorf("CanonicalQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
