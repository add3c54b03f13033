package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
)

// 未配置超时时的默认值
const defaultTimeout = 30 * time.Second

// 响应体上限
const maxResponseSize = 64 << 10

// WebhookNotifier Webhook 通知器
type WebhookNotifier struct {
	client *http.Client
	log    logr.Logger
}

// NewWebhookNotifier 创建 Webhook 通知器，client 为空时使用默认客户端
func NewWebhookNotifier(client *http.Client, log logr.Logger) *WebhookNotifier {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookNotifier{client: client, log: log.WithName("webhook")}
}

// Notify 按模板发送通知，返回响应内容
func (w *WebhookNotifier) Notify(ctx context.Context, cfg *config.DnsConfig, webhook *config.Webhook) (string, error) {
	tmpl, err := ParseRequest(webhook.Value)
	if err != nil {
		return "", fmt.Errorf("解析 webhook %s 失败: %w", webhook.Name, err)
	}

	timeout := defaultTimeout
	if webhook.Timeout > 0 {
		timeout = time.Duration(webhook.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vars := Variables(cfg)
	target := Replace(tmpl.URL, vars)

	var body io.Reader = http.NoBody
	if tmpl.Body != "" {
		body = strings.NewReader(Replace(tmpl.Body, vars))
	}

	req, err := http.NewRequestWithContext(ctx, tmpl.Method, target, body)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	for _, h := range tmpl.Headers {
		req.Header.Add(h[0], Replace(h[1], vars))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	text := string(data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return text, fmt.Errorf("Webhook 返回错误状态码: %d", resp.StatusCode)
	}

	w.log.V(1).Info("Webhook 通知发送成功", "webhook", webhook.Name, "task", cfg.Name, "response", text)
	return text, nil
}
