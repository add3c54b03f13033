package domain

import "net/netip"

// Apex 表示主域名本身的主机记录
const Apex = "@"

// Domain 域名配置（主域名 + 主机记录）
type Domain struct {
	Apex      string `yaml:"domain"`
	Subdomain string `yaml:"subdomain"`
}

// RR 返回主机记录，空值视为 @
func (d Domain) RR() string {
	if d.Subdomain == "" {
		return Apex
	}
	return d.Subdomain
}

// FQDN 返回完整域名，主机记录为 @ 时即主域名
// 例如: {example.com, www} -> www.example.com, {example.com, @} -> example.com
func (d Domain) FQDN() string {
	rr := d.RR()
	if rr == Apex {
		return d.Apex
	}
	return rr + "." + d.Apex
}

// String 返回 "主机记录.主域名" 形式，用于日志和通知
func (d Domain) String() string {
	return d.RR() + "." + d.Apex
}

// Family 地址族
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// String 返回 ipv4 / ipv6
func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// RecordType 返回地址族对应的记录类型
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

// Match 检查地址是否属于该地址族，::ffff:a.b.c.d 属于 IPv6
func (f Family) Match(addr netip.Addr) bool {
	if f == IPv6 {
		return addr.Is6()
	}
	return addr.Is4()
}

// FamilyOf 返回地址所属的地址族
func FamilyOf(addr netip.Addr) Family {
	if addr.Is4() {
		return IPv4
	}
	return IPv6
}
