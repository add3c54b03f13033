package huawei

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	dns "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2"
	dnsModel "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/model"
	dnsRegion "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/region"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
)

// DefaultRegion 未配置 region 时使用的区域
const DefaultRegion = "cn-north-4"

// DNSProvider 华为云DNS提供商
// SDK 不支持 context，取消只在两次请求之间生效
type DNSProvider struct {
	client *dns.DnsClient
	log    logr.Logger
}

// NewDNSProvider 创建华为云DNS提供商
func NewDNSProvider(cfg *config.HuaweiConfig, log logr.Logger) (*DNSProvider, error) {
	if cfg == nil || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("华为云凭证不完整")
	}

	auth, err := basic.NewCredentialsBuilder().
		WithAk(cfg.AccessKey).
		WithSk(cfg.SecretKey).
		SafeBuild()
	if err != nil {
		return nil, fmt.Errorf("华为云凭证无效: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	regionObj, err := dnsRegion.SafeValueOf(region)
	if err != nil {
		return nil, fmt.Errorf("无效的区域: %s", region)
	}

	// 未指定 project id 时 SDK 会请求 IAM 查询，失败返回错误
	hc, err := dns.DnsClientBuilder().
		WithRegion(regionObj).
		WithCredential(auth).
		SafeBuild()
	if err != nil {
		return nil, fmt.Errorf("创建华为云客户端失败: %w", err)
	}
	client := dns.NewDnsClient(hc)

	return &DNSProvider{client: client, log: log.WithName("huawei")}, nil
}

// Name 返回提供商名称
func (p *DNSProvider) Name() string {
	return config.KindHuawei
}

// getZoneID 获取主域名的 Zone ID
func (p *DNSProvider) getZoneID(apex string) (string, error) {
	response, err := p.client.ListPublicZones(&dnsModel.ListPublicZonesRequest{})
	if err != nil {
		return "", fmt.Errorf("获取Zone列表失败: %w", err)
	}

	if response.Zones != nil {
		for _, zone := range *response.Zones {
			if zone.Name != nil && zone.Id != nil && strings.TrimSuffix(*zone.Name, ".") == apex {
				return *zone.Id, nil
			}
		}
	}
	return "", fmt.Errorf("未找到域名 %s 的Zone", apex)
}

// FindRecord 查找DNS记录
func (p *DNSProvider) FindRecord(ctx context.Context, d domain.Domain, recordType string) (*provider.DNSRecord, error) {
	zoneID, err := p.getZoneID(d.Apex)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := recordName(d)
	response, err := p.client.ListRecordSetsByZone(&dnsModel.ListRecordSetsByZoneRequest{
		ZoneId: zoneID,
		Name:   &name,
		Type:   &recordType,
	})
	if err != nil {
		return nil, fmt.Errorf("查询DNS记录失败: %w", err)
	}

	if response.Recordsets == nil {
		return nil, nil
	}
	for _, rs := range *response.Recordsets {
		// name 参数是模糊匹配
		if rs.Id == nil || rs.Name == nil || *rs.Name != name || rs.Type == nil || *rs.Type != recordType {
			continue
		}
		record := &provider.DNSRecord{
			RecordID: *rs.Id,
			Domain:   d.Apex,
			ZoneID:   zoneID,
			RR:       name,
			Type:     recordType,
		}
		if rs.Records != nil && len(*rs.Records) > 0 {
			record.Value = (*rs.Records)[0]
		}
		if rs.Ttl != nil {
			record.TTL = int(*rs.Ttl)
		}
		return record, nil
	}
	return nil, nil
}

// AddRecord 添加DNS记录
func (p *DNSProvider) AddRecord(ctx context.Context, d domain.Domain, recordType, value string) error {
	zoneID, err := p.getZoneID(d.Apex)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.log.Info("添加记录", "name", recordName(d), "type", recordType, "value", value)

	_, err = p.client.CreateRecordSet(&dnsModel.CreateRecordSetRequest{
		ZoneId: zoneID,
		Body: &dnsModel.CreateRecordSetRequestBody{
			Name:    recordName(d),
			Type:    recordType,
			Records: []string{value},
		},
	})
	if err != nil {
		return fmt.Errorf("添加DNS记录失败: %w", err)
	}

	p.log.Info("记录已添加")
	return nil
}

// UpdateRecord 更新DNS记录
func (p *DNSProvider) UpdateRecord(ctx context.Context, record *provider.DNSRecord, value string) error {
	p.log.Info("更新记录", "id", record.RecordID, "name", record.RR, "from", record.Value, "to", value)

	name, recordType := record.RR, record.Type
	_, err := p.client.UpdateRecordSet(&dnsModel.UpdateRecordSetRequest{
		ZoneId:      record.ZoneID,
		RecordsetId: record.RecordID,
		Body: &dnsModel.UpdateRecordSetReq{
			Name:    &name,
			Type:    &recordType,
			Records: &[]string{value},
		},
	})
	if err != nil {
		return fmt.Errorf("更新DNS记录失败: %w", err)
	}
	return nil
}

// recordName 华为云记录名为以点结尾的完整域名
func recordName(d domain.Domain) string {
	return d.FQDN() + "."
}
