package core

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"reflect"
	"sync"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/provider"
	"ddns-manager/internal/provider/aliyun"
	"ddns-manager/internal/provider/cloudflare"
	"ddns-manager/internal/provider/huawei"
	"ddns-manager/internal/provider/tencent"
)

// Factory 提供商工厂，按服务商类型创建协议客户端
type Factory struct {
	log    logr.Logger
	client *http.Client

	endpoints         map[string]string
	cloudflareOptions []cloudflare.Option

	// 缓存已创建的提供商实例，配置变化后重新创建
	mu        sync.Mutex
	providers map[string]cachedProvider
}

type cachedProvider struct {
	config   config.Provider
	provider provider.DNSProvider
}

// FactoryOption 工厂选项
type FactoryOption func(*Factory)

// WithHTTPClient 指定协议客户端使用的 HTTP 客户端
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.client = c }
}

// WithEndpoint 覆盖某类服务商的接口地址
func WithEndpoint(kind, endpoint string) FactoryOption {
	return func(f *Factory) { f.endpoints[kind] = endpoint }
}

// WithCloudflareOptions 附加 Cloudflare 客户端选项
func WithCloudflareOptions(opts ...cloudflare.Option) FactoryOption {
	return func(f *Factory) { f.cloudflareOptions = append(f.cloudflareOptions, opts...) }
}

// NewFactory 创建工厂
func NewFactory(log logr.Logger, opts ...FactoryOption) *Factory {
	f := &Factory{
		log:       log,
		endpoints: make(map[string]string),
		providers: make(map[string]cachedProvider),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetDNSProvider 获取DNS提供商
func (f *Factory) GetDNSProvider(p *config.Provider) (provider.DNSProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// 检查缓存
	if c, ok := f.providers[p.Name]; ok && reflect.DeepEqual(c.config, *p) {
		return c.provider, nil
	}

	// 创建新实例
	var dp provider.DNSProvider
	var err error

	switch p.Kind() {
	case config.KindAliyun:
		var opts []aliyun.Option
		if f.client != nil {
			opts = append(opts, aliyun.WithHTTPClient(f.client))
		}
		if ep := f.endpoints[config.KindAliyun]; ep != "" {
			opts = append(opts, aliyun.WithEndpoint(ep))
		}
		dp, err = aliyun.NewDNSProvider(p.Aliyun, f.log, opts...)

	case config.KindTencent:
		var opts []tencent.Option
		if f.client != nil {
			opts = append(opts, tencent.WithHTTPClient(f.client))
		}
		if ep := f.endpoints[config.KindTencent]; ep != "" {
			opts = append(opts, tencent.WithEndpoint(ep))
		}
		dp, err = tencent.NewDNSProvider(p.Tencent, f.log, opts...)

	case config.KindCloudflare:
		opts := append([]cloudflare.Option(nil), f.cloudflareOptions...)
		if f.client != nil {
			opts = append(opts, cloudflare.WithHTTPClient(f.client))
		}
		if ep := f.endpoints[config.KindCloudflare]; ep != "" {
			opts = append(opts, cloudflare.WithBaseURL(ep))
		}
		dp, err = cloudflare.NewDNSProvider(p.Cloudflare, f.log, opts...)

	case config.KindHuawei:
		dp, err = huawei.NewDNSProvider(p.Huawei, f.log)

	default:
		return nil, fmt.Errorf("提供商 %s 未配置凭证", p.Name)
	}

	if err != nil {
		return nil, fmt.Errorf("创建提供商 %s 失败: %w", p.Name, err)
	}

	// 缓存实例
	f.providers[p.Name] = cachedProvider{config: *p, provider: dp}
	return dp, nil
}

// Ensure 通过服务商确保记录值为 addr
func (f *Factory) Ensure(ctx context.Context, p *config.Provider, d domain.Domain, addr netip.Addr) (provider.Action, error) {
	dp, err := f.GetDNSProvider(p)
	if err != nil {
		return "", provider.Wrap(p.Kind(), provider.OpQuery, err)
	}
	return provider.EnsureRecord(ctx, dp, d, addr)
}
