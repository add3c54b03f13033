package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"

	"ddns-manager/internal/config"
	"ddns-manager/internal/provider"
)

// 错误响应体上限
const maxErrorBody = 1 << 20

// apiError 响应中的错误项，error_chain 可以嵌套
type apiError struct {
	Code       int        `json:"code"`
	Message    string     `json:"message"`
	ErrorChain []apiError `json:"error_chain"`
}

type errorEnvelope struct {
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

type captureKey struct{}

// capture 保存一次调用中最后一个错误响应的响应体
type capture struct {
	mu   sync.Mutex
	body []byte
}

func (c *capture) set(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = body
}

func (c *capture) get() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

// withCapture 返回记录错误响应体的 context
func withCapture(ctx context.Context) (context.Context, *capture) {
	c := &capture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// captureTransport 保留非 2xx 响应的响应体，SDK 解码时会丢弃 error_chain
type captureTransport struct {
	base http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < 300 {
		return resp, err
	}
	c, ok := req.Context().Value(captureKey{}).(*capture)
	if !ok {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("读取错误响应失败: %w", err)
	}
	c.set(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// wrapClient 返回使用 captureTransport 的客户端副本
func wrapClient(c *http.Client) *http.Client {
	if c == nil {
		c = &http.Client{}
	}
	wrapped := *c
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if _, ok := base.(*captureTransport); !ok {
		wrapped.Transport = &captureTransport{base: base}
	}
	return &wrapped
}

// describe 将 Cloudflare 返回的错误（含嵌套的 error_chain）拼接为一条错误信息
func describe(err error, c *capture) error {
	var msg string
	if c != nil {
		msg = chainMessage(c.get())
	}
	if msg == "" {
		msg = sdkMessage(err)
	}
	if msg == "" {
		return err
	}
	return &provider.ProtocolError{
		Provider: config.KindCloudflare,
		Message:  msg,
		Err:      err,
	}
}

// chainMessage 解析错误响应体，无法解析时返回空字符串
func chainMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	for _, e := range env.Errors {
		writeAPIError(&b, e)
	}
	return strings.TrimSpace(b.String())
}

func writeAPIError(b *strings.Builder, e apiError) {
	fmt.Fprintf(b, "%d: %s. ", e.Code, strings.TrimSuffix(e.Message, "."))
	for _, chained := range e.ErrorChain {
		writeAPIError(b, chained)
	}
}

// sdkMessage 从 SDK 错误中取出顶层错误项
func sdkMessage(err error) string {
	var infos []cloudflare.ResponseInfo

	var withErrors interface {
		Errors() []cloudflare.ResponseInfo
	}
	var cfErr *cloudflare.Error
	switch {
	case errors.As(err, &withErrors):
		infos = withErrors.Errors()
	case errors.As(err, &cfErr):
		infos = cfErr.Errors
	}

	var b strings.Builder
	for _, info := range infos {
		writeAPIError(&b, apiError{Code: info.Code, Message: info.Message})
	}
	return strings.TrimSpace(b.String())
}
