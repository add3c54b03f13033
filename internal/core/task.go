package core

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/metrics"
	"ddns-manager/internal/provider"
	"ddns-manager/internal/resolver"
)

// DefaultInterval 未配置 interval 时的更新间隔
const DefaultInterval = 300 * time.Second

// 依次更新的地址族
var families = []domain.Family{domain.IPv4, domain.IPv6}

// interval 返回任务的更新间隔
func interval(cfg *config.DnsConfig) time.Duration {
	if cfg.Interval == 0 {
		return DefaultInterval
	}
	return time.Duration(cfg.Interval) * time.Second
}

// run 任务循环：立即执行一次，之后按间隔执行，直到被取消或没有启用的地址族
func (m *Manager) run(ctx context.Context, h *handle, cfg config.DnsConfig) {
	defer m.wg.Done()
	defer close(h.done)

	metrics.TasksRunning.Inc()
	defer metrics.TasksRunning.Dec()

	log := m.log.WithValues("task", cfg.Name)
	log.Info("任务已启动", "domain", cfg.Domain.String(), "interval", interval(&cfg).String())

	ticker := time.NewTicker(interval(&cfg))
	defer ticker.Stop()

	for {
		if !m.tick(ctx, &cfg, log) {
			log.Info("没有启用的地址族，任务结束")
			m.unregister(cfg.Name, h)
			return
		}

		select {
		case <-ctx.Done():
			log.V(1).Info("任务已停止")
			return
		case <-ticker.C:
		}
	}
}

// tick 执行一次更新，没有启用的地址族时返回 false
func (m *Manager) tick(ctx context.Context, cfg *config.DnsConfig, log logr.Logger) bool {
	// 每次重新获取服务商，修改服务商配置后下一次更新即生效
	p, err := m.store.GetProvider(ctx, cfg.Provider)
	if err != nil {
		log.Error(err, "获取服务商失败，跳过本次更新", "provider", cfg.Provider)
		p = nil
	}

	var enabled []domain.Family
	for _, family := range families {
		if slot := cfg.Slot(family); slot != nil && slot.Enabled {
			enabled = append(enabled, family)
		}
	}
	if len(enabled) == 0 {
		return false
	}

	if p != nil {
		for _, family := range enabled {
			if ctx.Err() != nil {
				return true
			}
			m.update(ctx, cfg, p, family, log)
		}
	}

	// 已取消的任务不再保存和通知
	if ctx.Err() != nil {
		return true
	}

	if err := m.store.SaveConfig(ctx, *cfg); err != nil {
		log.Error(err, "保存任务状态失败")
	}

	if cfg.Webhook != "" {
		m.notify(ctx, cfg, log)
	}
	return true
}

// update 更新单个地址族并记录结果
func (m *Manager) update(ctx context.Context, cfg *config.DnsConfig, p *config.Provider, family domain.Family, log logr.Logger) {
	slot := cfg.Slot(family)
	log = log.WithValues("family", family.String())

	var (
		state  *config.DnsState
		result string
	)

	addr, ok, err := m.resolver.Resolve(ctx, slot.Method, family)
	switch {
	case err != nil:
		state, result = config.Failed(m.now(), err.Error()), metrics.ResultFailed
	case !ok:
		state, result = config.Failed(m.now(), resolver.ErrNoAddress.Error()), metrics.ResultFailed
	default:
		action, err := m.updater.Ensure(ctx, p, cfg.Domain, addr)
		if err != nil {
			state, result = config.Failed(m.now(), err.Error()), metrics.ResultFailed
		} else {
			state, result = config.Succeeded(m.now(), addr), actionResult(action)
		}
	}

	if ctx.Err() != nil {
		return
	}

	slot.State = state
	metrics.ObserveUpdate(cfg.Name, p.Kind(), family.String(), result, time.Unix(state.Timestamp, 0))

	if state.Kind == config.StateFailed {
		log.Error(nil, "更新失败", "message", state.Message)
		return
	}
	log.V(1).Info("更新成功", "addr", state.Addr, "result", result)
}

func actionResult(a provider.Action) string {
	switch a {
	case provider.ActionCreated:
		return metrics.ResultCreated
	case provider.ActionUpdated:
		return metrics.ResultUpdated
	default:
		return metrics.ResultUnchanged
	}
}

// notify 发送 webhook 通知，失败只记录日志
func (m *Manager) notify(ctx context.Context, cfg *config.DnsConfig, log logr.Logger) {
	webhook, err := m.store.GetWebhook(ctx, cfg.Webhook)
	if err != nil {
		log.Error(err, "获取 webhook 失败", "webhook", cfg.Webhook)
		return
	}

	text, err := m.notifier.Notify(ctx, cfg, webhook)
	if err != nil {
		log.Error(err, "发送通知失败", "webhook", webhook.Name)
		return
	}
	log.V(1).Info("通知已发送", "webhook", webhook.Name, "response", text)
}
