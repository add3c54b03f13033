package provider

import (
	"context"
	"net/netip"

	"ddns-manager/internal/domain"
)

// DNSProvider DNS提供商接口
type DNSProvider interface {
	// Name 返回提供商名称
	Name() string

	// FindRecord 查找主机记录和类型匹配的第一条记录，不存在时返回 nil
	FindRecord(ctx context.Context, d domain.Domain, recordType string) (*DNSRecord, error)

	// AddRecord 添加DNS记录
	AddRecord(ctx context.Context, d domain.Domain, recordType, value string) error

	// UpdateRecord 将已有记录的值修改为 value
	UpdateRecord(ctx context.Context, record *DNSRecord, value string) error
}

// EnsureRecord 确保记录值为 addr：不存在则添加，值不同则更新，相同则不写入
func EnsureRecord(ctx context.Context, p DNSProvider, d domain.Domain, addr netip.Addr) (Action, error) {
	recordType := domain.FamilyOf(addr).RecordType()
	value := addr.String()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	record, err := p.FindRecord(ctx, d, recordType)
	if err != nil {
		return "", Wrap(p.Name(), OpQuery, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if record == nil {
		if err := p.AddRecord(ctx, d, recordType, value); err != nil {
			return "", Wrap(p.Name(), OpCreate, err)
		}
		return ActionCreated, nil
	}

	if sameAddr(record.Value, addr) {
		return ActionUnchanged, nil
	}
	if err := p.UpdateRecord(ctx, record, value); err != nil {
		return "", Wrap(p.Name(), OpUpdate, err)
	}
	return ActionUpdated, nil
}

// sameAddr 按地址比较记录值，避免 IPv6 书写形式不同导致重复更新
func sameAddr(value string, addr netip.Addr) bool {
	current, err := netip.ParseAddr(value)
	if err != nil {
		return value == addr.String()
	}
	return current == addr
}
