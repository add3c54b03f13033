package config

import (
	"net/netip"
	"time"

	"ddns-manager/internal/domain"
)

// Config 配置结构
type Config struct {
	// 日志级别，数值越大输出越详细
	LogVerbosity int `yaml:"log_verbosity,omitempty"`
	// 监控指标监听地址，为空时不启用
	MetricsListen string `yaml:"metrics_listen,omitempty"`

	DDNS      []DnsConfig `yaml:"ddns,omitempty"`
	Providers []Provider  `yaml:"providers,omitempty"`
	Webhooks  []Webhook   `yaml:"webhooks,omitempty"`
}

// DnsConfig DDNS 任务配置
type DnsConfig struct {
	Name     string        `yaml:"name"`
	Domain   domain.Domain `yaml:",inline"`
	Interval uint64        `yaml:"interval"` // 更新间隔（秒）
	IPv4     *AddrConfig   `yaml:"ipv4,omitempty"`
	IPv6     *AddrConfig   `yaml:"ipv6,omitempty"`
	Provider string        `yaml:"provider"`
	Webhook  string        `yaml:"webhook,omitempty"`
}

// Slot 返回指定地址族的配置
func (c *DnsConfig) Slot(family domain.Family) *AddrConfig {
	if family == domain.IPv6 {
		return c.IPv6
	}
	return c.IPv4
}

// Clone 深拷贝，任务循环持有自己的副本
func (c DnsConfig) Clone() DnsConfig {
	c.IPv4 = c.IPv4.clone()
	c.IPv6 = c.IPv6.clone()
	return c
}

// MethodKind 地址获取方式
type MethodKind string

const (
	MethodAPI MethodKind = "api" // 请求 HTTP 接口
	MethodNIC MethodKind = "nic" // 读取本机网卡
	MethodCmd MethodKind = "cmd" // 执行命令
	MethodDNS MethodKind = "dns" // 向 DNS 服务器查询自身地址
)

// Method 地址获取方式及其参数
type Method struct {
	Kind      MethodKind `yaml:"method"`
	Endpoint  string     `yaml:"endpoint,omitempty"`
	Interface string     `yaml:"interface,omitempty"`
	Command   string     `yaml:"command,omitempty"`
	Server    string     `yaml:"server,omitempty"`
	Query     string     `yaml:"query,omitempty"`
}

// AddrConfig 单个地址族的配置和最近一次更新状态
type AddrConfig struct {
	Enabled bool `yaml:"enabled"`
	Method  `yaml:",inline"`
	State   *DnsState `yaml:"state,omitempty"`
}

func (a *AddrConfig) clone() *AddrConfig {
	if a == nil {
		return nil
	}
	c := *a
	if a.State != nil {
		s := *a.State
		c.State = &s
	}
	return &c
}

// StateKind 更新结果类型
type StateKind string

const (
	StateSucceed StateKind = "succeed"
	StateFailed  StateKind = "failed"
)

// DnsState 最近一次更新的结果
type DnsState struct {
	Kind      StateKind `yaml:"kind"`
	Timestamp int64     `yaml:"timestamp"` // Unix 秒
	Addr      string    `yaml:"addr,omitempty"`
	Message   string    `yaml:"message,omitempty"`
}

// Succeeded 构建成功状态
func Succeeded(at time.Time, addr netip.Addr) *DnsState {
	return &DnsState{Kind: StateSucceed, Timestamp: at.Unix(), Addr: addr.String()}
}

// Failed 构建失败状态
func Failed(at time.Time, message string) *DnsState {
	return &DnsState{Kind: StateFailed, Timestamp: at.Unix(), Message: message}
}

// Provider DNS 服务商配置，四种凭证有且只有一种
type Provider struct {
	Name       string            `yaml:"name"`
	Aliyun     *AliyunConfig     `yaml:"aliyun,omitempty"`
	Tencent    *TencentConfig    `yaml:"tencent,omitempty"`
	Cloudflare *CloudflareConfig `yaml:"cloudflare,omitempty"`
	Huawei     *HuaweiConfig     `yaml:"huawei,omitempty"`
}

// 服务商类型
const (
	KindAliyun     = "aliyun"
	KindTencent    = "tencent"
	KindCloudflare = "cloudflare"
	KindHuawei     = "huawei"
)

// Kind 返回服务商类型，未配置凭证时返回空字符串
func (p *Provider) Kind() string {
	switch {
	case p.Aliyun != nil:
		return KindAliyun
	case p.Tencent != nil:
		return KindTencent
	case p.Cloudflare != nil:
		return KindCloudflare
	case p.Huawei != nil:
		return KindHuawei
	}
	return ""
}

func (p *Provider) variants() int {
	n := 0
	if p.Aliyun != nil {
		n++
	}
	if p.Tencent != nil {
		n++
	}
	if p.Cloudflare != nil {
		n++
	}
	if p.Huawei != nil {
		n++
	}
	return n
}

// AliyunConfig 阿里云配置
type AliyunConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
}

// TencentConfig 腾讯云配置
type TencentConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
}

// CloudflareConfig Cloudflare 配置
type CloudflareConfig struct {
	APIKey string `yaml:"api_key"`
}

// HuaweiConfig 华为云配置
type HuaweiConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region,omitempty"`
}

// Webhook 通知配置，Value 为请求模板
type Webhook struct {
	Name    string `yaml:"name"`
	Value   string `yaml:"value"`
	Timeout int    `yaml:"timeout,omitempty"` // 请求超时时间（秒），默认30
}
