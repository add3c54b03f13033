package tencent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	tcerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
)

const (
	Host     = "dnspod.tencentcloudapi.com"
	Version  = "2021-03-23"
	Endpoint = "https://dnspod.tencentcloudapi.com"

	// 新建记录使用的默认线路
	defaultLine = "默认"

	// 查询结果为空时 DNSPod 返回的错误码
	codeNoDataOfRecord = "ResourceNotFound.NoDataOfRecord"
)

// describeRecordList DescribeRecordList 请求体，字段顺序影响签名
type describeRecordList struct {
	Domain     string `json:"Domain"`
	Subdomain  string `json:"Subdomain"`
	RecordType string `json:"RecordType"`
}

type createRecord struct {
	Domain     string `json:"Domain"`
	SubDomain  string `json:"SubDomain"`
	RecordType string `json:"RecordType"`
	RecordLine string `json:"RecordLine"`
	Value      string `json:"Value"`
}

type modifyRecord struct {
	Domain     string `json:"Domain"`
	SubDomain  string `json:"SubDomain"`
	RecordType string `json:"RecordType"`
	RecordLine string `json:"RecordLine"`
	Value      string `json:"Value"`
	RecordId   uint64 `json:"RecordId"`
}

// DNSProvider 腾讯云DNS提供商 (DNSPod)
type DNSProvider struct {
	cfg      *config.TencentConfig
	endpoint string
	client   *http.Client
	log      logr.Logger
	now      func() time.Time
}

// Option 腾讯云客户端选项
type Option func(*DNSProvider)

// WithEndpoint 指定接口地址，签名中的 host 始终为 dnspod.tencentcloudapi.com
func WithEndpoint(endpoint string) Option {
	return func(p *DNSProvider) { p.endpoint = endpoint }
}

// WithHTTPClient 指定 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(p *DNSProvider) { p.client = c }
}

// NewDNSProvider 创建腾讯云DNS提供商
func NewDNSProvider(cfg *config.TencentConfig, log logr.Logger, opts ...Option) (*DNSProvider, error) {
	if cfg == nil || cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("腾讯云凭证不完整")
	}

	p := &DNSProvider{
		cfg:      cfg,
		endpoint: Endpoint,
		client:   http.DefaultClient,
		log:      log.WithName("tencent"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name 返回提供商名称
func (p *DNSProvider) Name() string {
	return config.KindTencent
}

// FindRecord 查找DNS记录
func (p *DNSProvider) FindRecord(ctx context.Context, d domain.Domain, recordType string) (*provider.DNSRecord, error) {
	var resp dnspod.DescribeRecordListResponseParams
	err := p.send(ctx, "DescribeRecordList", describeRecordList{
		Domain:     d.Apex,
		Subdomain:  d.RR(),
		RecordType: recordType,
	}, &resp)
	if IsNoDataOfRecord(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, record := range resp.RecordList {
		if record == nil || record.RecordId == nil {
			continue
		}
		return &provider.DNSRecord{
			RecordID: strconv.FormatUint(*record.RecordId, 10),
			Domain:   d.Apex,
			RR:       d.RR(),
			Type:     recordType,
			Value:    stringValue(record.Value),
			Line:     stringValue(record.Line),
			TTL:      int(uint64Value(record.TTL)),
		}, nil
	}
	return nil, nil
}

// IsNoDataOfRecord 判断是否为“记录列表为空”错误
// DNSPod 查询不到记录时不返回空列表，而是返回 ResourceNotFound.NoDataOfRecord
func IsNoDataOfRecord(err error) bool {
	var sdkErr *tcerrors.TencentCloudSDKError
	return errors.As(err, &sdkErr) && sdkErr.GetCode() == codeNoDataOfRecord
}

// AddRecord 添加DNS记录
func (p *DNSProvider) AddRecord(ctx context.Context, d domain.Domain, recordType, value string) error {
	p.log.Info("添加记录", "domain", d.String(), "type", recordType, "value", value)

	var resp dnspod.CreateRecordResponseParams
	err := p.send(ctx, "CreateRecord", createRecord{
		Domain:     d.Apex,
		SubDomain:  d.RR(),
		RecordType: recordType,
		RecordLine: defaultLine,
		Value:      value,
	}, &resp)
	if err != nil {
		return err
	}

	p.log.Info("记录已添加", "id", uint64Value(resp.RecordId))
	return nil
}

// UpdateRecord 更新DNS记录，沿用记录原有的线路
func (p *DNSProvider) UpdateRecord(ctx context.Context, record *provider.DNSRecord, value string) error {
	p.log.Info("更新记录", "id", record.RecordID, "rr", record.RR, "from", record.Value, "to", value)

	id, err := strconv.ParseUint(record.RecordID, 10, 64)
	if err != nil {
		return fmt.Errorf("无效的记录ID %q: %w", record.RecordID, err)
	}
	line := record.Line
	if line == "" {
		line = defaultLine
	}

	var resp dnspod.ModifyRecordResponseParams
	return p.send(ctx, "ModifyRecord", modifyRecord{
		Domain:     record.Domain,
		SubDomain:  record.RR,
		RecordType: record.Type,
		RecordLine: line,
		Value:      value,
		RecordId:   id,
	}, &resp)
}

// send 发送签名请求，out 为 Response 中除 Error 外的内容
func (p *DNSProvider) send(ctx context.Context, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}
	timestamp := p.now().Unix()
	authorization := Sign(p.cfg.SecretID, p.cfg.SecretKey, timestamp, action, string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Host = Host
	req.Header.Set("Content-Type", contentType)
	req.Header["X-TC-Action"] = []string{action}
	req.Header["X-TC-Version"] = []string{Version}
	req.Header["X-TC-Timestamp"] = []string{strconv.FormatInt(timestamp, 10)}
	req.Header.Set("Authorization", authorization)

	p.log.V(1).Info("发送请求", "action", action, "body", string(body))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	var envelope struct {
		Response json.RawMessage `json:"Response"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Response) == 0 {
		return fmt.Errorf("HTTP %d: 无效的响应: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var status struct {
		RequestId string `json:"RequestId"`
		Error     *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	}
	if err := json.Unmarshal(envelope.Response, &status); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if status.Error != nil {
		return tcerrors.NewTencentCloudSDKError(status.Error.Code, status.Error.Message, status.RequestId)
	}

	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func uint64Value(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}
