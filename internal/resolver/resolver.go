package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
)

// 请求公网地址接口时使用的 User-Agent，部分接口据此返回纯文本
const userAgent = "curl/0.0.0"

// 接口响应体上限，正常响应只有一个 IP 地址
const maxBodySize = 4096

// ErrNoAddress 没有找到匹配地址族的地址
var ErrNoAddress = errors.New("未找到有效的 IP 地址")

// ResolutionError 地址获取失败
type ResolutionError struct {
	Method config.MethodKind
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("获取地址失败 [%s]: %v", e.Method, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver 地址解析器
type Resolver struct {
	client *http.Client
	log    logr.Logger
}

// New 创建地址解析器，client 为空时使用 http.DefaultClient
func New(client *http.Client, log logr.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{client: client, log: log}
}

// Resolve 按配置的方式获取地址，返回第一个属于 family 的地址
// 没有匹配的地址时 ok 为 false 且 err 为 nil
func (r *Resolver) Resolve(ctx context.Context, m config.Method, family domain.Family) (addr netip.Addr, ok bool, err error) {
	var candidates []netip.Addr
	switch m.Kind {
	case config.MethodAPI:
		candidates, err = r.fromAPI(ctx, m.Endpoint)
	case config.MethodNIC:
		candidates, err = fromInterface(m.Interface)
	case config.MethodCmd:
		candidates, err = fromCommand(ctx, m.Command)
	case config.MethodDNS:
		candidates, err = fromDNS(ctx, m.Server, m.Query, family)
	default:
		err = fmt.Errorf("不支持的 method: %s", m.Kind)
	}
	if err != nil {
		return netip.Addr{}, false, &ResolutionError{Method: m.Kind, Err: err}
	}

	r.log.V(1).Info("获取到候选地址", "method", m.Kind, "family", family.String(), "candidates", candidates)
	addr, ok = First(candidates, family)
	return addr, ok, nil
}

// First 返回第一个属于 family 的地址
func First(candidates []netip.Addr, family domain.Family) (netip.Addr, bool) {
	for _, addr := range candidates {
		if family.Match(addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// fromAPI 请求接口，整个响应体即 IP 地址
func (r *Resolver) fromAPI(ctx context.Context, endpoint string) ([]netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("请求返回 %s", resp.Status)
	}

	addr, err := parseAddr(string(body))
	if err != nil {
		return nil, err
	}
	return []netip.Addr{addr}, nil
}

// fromInterface 列出指定网卡上的所有地址，网卡不存在时返回空
func fromInterface(name string) ([]netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("获取网卡列表失败: %w", err)
	}

	var addrs []netip.Addr
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		ifaddrs, err := iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("获取网卡 %s 地址失败: %w", name, err)
		}
		for _, a := range ifaddrs {
			prefix, err := netip.ParsePrefix(a.String())
			if err != nil {
				continue
			}
			addrs = append(addrs, prefix.Addr())
		}
	}
	return addrs, nil
}

func parseAddr(text string) (netip.Addr, error) {
	text = strings.TrimSpace(text)
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("无效的 IP 地址 %q: %w", text, err)
	}
	return addr, nil
}
