package notification

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ddns-manager/internal/config"
)

// Request 解析后的请求模板
//
// 模板格式：
//
//	POST https://example.com/hook?ip=#{ipv4.addr}
//	Content-Type: application/json
//
//	{"domain": "#{domain}"}
type Request struct {
	Method  string
	URL     string
	Headers [][2]string
	Body    string
}

// ParseRequest 解析请求模板：请求行、请求头，空行之后为请求体
func ParseRequest(template string) (*Request, error) {
	lines := strings.Split(strings.ReplaceAll(template, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, fmt.Errorf("请求模板为空")
	}

	method, target, ok := strings.Cut(strings.TrimSpace(lines[i]), " ")
	if !ok && (method == http.MethodGet || method == http.MethodPost) {
		return nil, fmt.Errorf("第 %d 行: 缺少请求地址", i+1)
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("第 %d 行: 请求方法只能是 GET 或 POST", i+1)
	}
	req := &Request{Method: method, URL: strings.TrimSpace(target)}
	if req.URL == "" {
		return nil, fmt.Errorf("第 %d 行: 缺少请求地址", i+1)
	}
	i++

	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || !isToken(name) {
			return nil, fmt.Errorf("第 %d 行: 请求头格式应为 \"名称: 值\"", i+1)
		}
		req.Headers = append(req.Headers, [2]string{name, strings.TrimSpace(value)})
	}

	// 跳过请求头和请求体之间的空行
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) {
		req.Body = strings.TrimLeft(strings.Join(lines[i:], "\n"), " \t")
	}
	return req, nil
}

// isToken 请求头名称只能包含 RFC 7230 token 字符
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// Variables 构建模板变量，未产生结果的地址族不提供对应变量
func Variables(cfg *config.DnsConfig) map[string]string {
	vars := map[string]string{
		"name":   cfg.Name,
		"domain": cfg.Domain.String(),
	}
	for _, slot := range []struct {
		prefix string
		addr   *config.AddrConfig
	}{{"ipv4", cfg.IPv4}, {"ipv6", cfg.IPv6}} {
		if slot.addr == nil || slot.addr.State == nil {
			continue
		}
		state := slot.addr.State
		vars[slot.prefix+".state"] = string(state.Kind)
		vars[slot.prefix+".timestamp"] = strconv.FormatInt(state.Timestamp, 10)
		switch state.Kind {
		case config.StateSucceed:
			vars[slot.prefix+".addr"] = state.Addr
		case config.StateFailed:
			vars[slot.prefix+".message"] = state.Message
		}
	}
	return vars
}

// Replace 替换模板中所有 #{变量}，未知变量保持原样
func Replace(template string, vars map[string]string) string {
	if !strings.Contains(template, "#{") {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "#{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
