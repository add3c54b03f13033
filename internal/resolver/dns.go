package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"

	"ddns-manager/internal/domain"
)

// 默认通过 OpenDNS 查询自身公网地址
const (
	DefaultDNSServer = "resolver1.opendns.com:53"
	DefaultDNSQuery  = "myip.opendns.com"
)

// fromDNS 向 DNS 服务器查询 query 的 A/AAAA 记录，服务器返回的即请求方地址
func fromDNS(ctx context.Context, server, query string, family domain.Family) ([]netip.Addr, error) {
	if server == "" {
		server = DefaultDNSServer
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	if query == "" {
		query = DefaultDNSQuery
	}

	qtype := dns.TypeA
	if family == domain.IPv6 {
		qtype = dns.TypeAAAA
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(query), qtype)

	c := new(dns.Client)
	resp, _, err := c.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("DNS 查询失败: %w", err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("DNS 查询返回 %s", dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			// A 记录可能是 16 字节形式
			if addr, ok := netip.AddrFromSlice(v.A.To4()); ok {
				addrs = append(addrs, addr)
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(v.AAAA.To16()); ok {
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs, nil
}
