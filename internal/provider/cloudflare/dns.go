package cloudflare

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
)

// 新建记录的 TTL，1 表示自动
const autoTTL = 1

// DNSProvider Cloudflare DNS提供商
type DNSProvider struct {
	api *cloudflare.API
	log logr.Logger

	mu    sync.Mutex
	zones map[string]string // 主域名 -> zone id
}

// Option Cloudflare 客户端选项
type Option = cloudflare.Option

// WithBaseURL 指定接口地址
func WithBaseURL(u string) Option {
	return cloudflare.BaseURL(u)
}

// WithHTTPClient 指定 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return cloudflare.HTTPClient(wrapClient(c))
}

// NewDNSProvider 创建 Cloudflare DNS提供商，使用 API Token 认证
func NewDNSProvider(cfg *config.CloudflareConfig, log logr.Logger, opts ...Option) (*DNSProvider, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("Cloudflare api_key 为空")
	}

	opts = append([]Option{cloudflare.HTTPClient(wrapClient(nil))}, opts...)
	api, err := cloudflare.NewWithAPIToken(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建Cloudflare客户端失败: %w", err)
	}

	return &DNSProvider{
		api:   api,
		log:   log.WithName("cloudflare"),
		zones: make(map[string]string),
	}, nil
}

// Name 返回提供商名称
func (p *DNSProvider) Name() string {
	return config.KindCloudflare
}

// FindRecord 查找DNS记录
func (p *DNSProvider) FindRecord(ctx context.Context, d domain.Domain, recordType string) (*provider.DNSRecord, error) {
	zoneID, err := p.zoneID(ctx, d.Apex)
	if err != nil {
		return nil, err
	}

	ctx, c := withCapture(ctx)
	records, _, err := p.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type:       recordType,
		Name:       d.FQDN(),
		ResultInfo: cloudflare.ResultInfo{Page: 1, PerPage: 100},
	})
	if err != nil {
		return nil, describe(err, c)
	}
	if len(records) == 0 {
		return nil, nil
	}

	r := records[0]
	return &provider.DNSRecord{
		RecordID: r.ID,
		Domain:   d.Apex,
		ZoneID:   zoneID,
		RR:       r.Name,
		Type:     r.Type,
		Value:    r.Content,
		TTL:      r.TTL,
	}, nil
}

// AddRecord 添加DNS记录，不经过 Cloudflare 代理
func (p *DNSProvider) AddRecord(ctx context.Context, d domain.Domain, recordType, value string) error {
	zoneID, err := p.zoneID(ctx, d.Apex)
	if err != nil {
		return err
	}

	p.log.Info("添加记录", "name", d.FQDN(), "type", recordType, "value", value)

	proxied := false
	ctx, c := withCapture(ctx)
	record, err := p.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.CreateDNSRecordParams{
		Type:    recordType,
		Name:    d.FQDN(),
		Content: value,
		TTL:     autoTTL,
		Proxied: &proxied,
	})
	if err != nil {
		return describe(err, c)
	}

	p.log.Info("记录已添加", "id", record.ID)
	return nil
}

// UpdateRecord 更新DNS记录，保留原有的代理设置
func (p *DNSProvider) UpdateRecord(ctx context.Context, record *provider.DNSRecord, value string) error {
	p.log.Info("更新记录", "id", record.RecordID, "name", record.RR, "from", record.Value, "to", value)

	ctx, c := withCapture(ctx)
	_, err := p.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(record.ZoneID), cloudflare.UpdateDNSRecordParams{
		ID:      record.RecordID,
		Type:    record.Type,
		Name:    record.RR,
		Content: value,
	})
	if err != nil {
		return describe(err, c)
	}
	return nil
}

// zoneID 按主域名查找 zone
func (p *DNSProvider) zoneID(ctx context.Context, apex string) (string, error) {
	p.mu.Lock()
	id, ok := p.zones[apex]
	p.mu.Unlock()
	if ok {
		return id, nil
	}

	ctx, c := withCapture(ctx)
	zones, err := p.api.ListZones(ctx, apex)
	if err != nil {
		return "", describe(err, c)
	}
	for _, z := range zones {
		if strings.EqualFold(z.Name, apex) {
			p.mu.Lock()
			p.zones[apex] = z.ID
			p.mu.Unlock()
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("未找到域名 %s 对应的 zone", apex)
}
