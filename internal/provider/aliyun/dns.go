package aliyun

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
)

const (
	Host     = "alidns.aliyuncs.com"
	Version  = "2015-01-09"
	Endpoint = "https://alidns.aliyuncs.com"

	// 空请求体的 sha256
	hashedEmptyBody = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// APIError 阿里云返回的错误
type APIError struct {
	StatusCode int
	Code       string `json:"Code"`
	Message    string `json:"Message"`
	RequestID  string `json:"RequestId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Code: %s. Message: %s", e.Code, e.Message)
}

// DNSProvider 阿里云DNS提供商
type DNSProvider struct {
	cfg      *config.AliyunConfig
	endpoint string
	client   *http.Client
	log      logr.Logger
	now      func() time.Time
}

// Option 阿里云客户端选项
type Option func(*DNSProvider)

// WithEndpoint 指定接口地址，签名中的 host 始终为 alidns.aliyuncs.com
func WithEndpoint(endpoint string) Option {
	return func(p *DNSProvider) { p.endpoint = strings.TrimSuffix(endpoint, "/") }
}

// WithHTTPClient 指定 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(p *DNSProvider) { p.client = c }
}

// NewDNSProvider 创建阿里云DNS提供商
func NewDNSProvider(cfg *config.AliyunConfig, log logr.Logger, opts ...Option) (*DNSProvider, error) {
	if cfg == nil || cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("阿里云凭证不完整")
	}

	p := &DNSProvider{
		cfg:      cfg,
		endpoint: Endpoint,
		client:   http.DefaultClient,
		log:      log.WithName("aliyun"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name 返回提供商名称
func (p *DNSProvider) Name() string {
	return config.KindAliyun
}

// FindRecord 查找DNS记录
func (p *DNSProvider) FindRecord(ctx context.Context, d domain.Domain, recordType string) (*provider.DNSRecord, error) {
	var body alidns.DescribeSubDomainRecordsResponseBody
	err := p.send(ctx, "DescribeSubDomainRecords", map[string]string{
		"DomainName": d.Apex,
		"SubDomain":  d.String(),
		"Type":       recordType,
		"PageSize":   "500",
	}, &body)
	if err != nil {
		return nil, err
	}

	if body.DomainRecords == nil {
		return nil, nil
	}
	for _, record := range body.DomainRecords.Record {
		if record == nil {
			continue
		}
		return &provider.DNSRecord{
			RecordID: tea.StringValue(record.RecordId),
			Domain:   d.Apex,
			RR:       tea.StringValue(record.RR),
			Type:     recordType,
			Value:    tea.StringValue(record.Value),
			Line:     tea.StringValue(record.Line),
			TTL:      int(tea.Int64Value(record.TTL)),
		}, nil
	}
	return nil, nil
}

// AddRecord 添加DNS记录
func (p *DNSProvider) AddRecord(ctx context.Context, d domain.Domain, recordType, value string) error {
	p.log.Info("添加记录", "domain", d.String(), "type", recordType, "value", value)

	var body alidns.AddDomainRecordResponseBody
	err := p.send(ctx, "AddDomainRecord", map[string]string{
		"DomainName": d.Apex,
		"RR":         d.RR(),
		"Type":       recordType,
		"Value":      value,
	}, &body)
	if err != nil {
		return err
	}

	p.log.Info("记录已添加", "id", tea.StringValue(body.RecordId))
	return nil
}

// UpdateRecord 更新DNS记录
func (p *DNSProvider) UpdateRecord(ctx context.Context, record *provider.DNSRecord, value string) error {
	p.log.Info("更新记录", "id", record.RecordID, "rr", record.RR, "from", record.Value, "to", value)

	var body alidns.UpdateDomainRecordResponseBody
	return p.send(ctx, "UpdateDomainRecord", map[string]string{
		"RecordId": record.RecordID,
		"RR":       record.RR,
		"Type":     record.Type,
		"Value":    value,
	}, &body)
}

// send 发送签名请求，参数全部放在查询串中，请求体为空
func (p *DNSProvider) send(ctx context.Context, action string, params map[string]string, out any) error {
	query := CanonicalQuery(params)
	timestamp := p.now().UTC().Format(time.RFC3339)
	nonce, err := newNonce()
	if err != nil {
		return err
	}
	authorization := Sign(p.cfg.SecretID, p.cfg.SecretKey, timestamp, action, query, hashedEmptyBody, nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/?"+query, http.NoBody)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Host = Host
	req.Header["x-acs-action"] = []string{action}
	req.Header["x-acs-content-sha256"] = []string{hashedEmptyBody}
	req.Header["x-acs-date"] = []string{timestamp}
	req.Header["x-acs-signature-nonce"] = []string{nonce}
	req.Header["x-acs-version"] = []string{Version}
	req.Header.Set("Authorization", authorization)

	p.log.V(1).Info("发送请求", "action", action, "query", query)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// newNonce 32 字节随机数的十六进制
func newNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机数失败: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
