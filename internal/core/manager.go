package core

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
	"ddns-manager/internal/domain"
	"ddns-manager/internal/metrics"
	"ddns-manager/internal/notification"
	"ddns-manager/internal/provider"
	"ddns-manager/internal/resolver"
)

// ErrDuplicateTask 同名任务已在运行
var ErrDuplicateTask = errors.New("任务已存在")

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("任务管理器已关闭")

// Store 任务配置、服务商和 webhook 的存储
type Store interface {
	GetConfig(ctx context.Context, name string) (*config.DnsConfig, error)
	ListConfigs(ctx context.Context) ([]config.DnsConfig, error)
	SaveConfig(ctx context.Context, cfg config.DnsConfig) error
	DeleteConfig(ctx context.Context, name string) error
	GetProvider(ctx context.Context, name string) (*config.Provider, error)
	GetWebhook(ctx context.Context, name string) (*config.Webhook, error)
}

// Resolver 获取当前地址
type Resolver interface {
	Resolve(ctx context.Context, m config.Method, family domain.Family) (netip.Addr, bool, error)
}

// Updater 按服务商配置更新记录
type Updater interface {
	Ensure(ctx context.Context, p *config.Provider, d domain.Domain, addr netip.Addr) (provider.Action, error)
}

// Notifier 发送更新通知，返回响应内容
type Notifier interface {
	Notify(ctx context.Context, cfg *config.DnsConfig, webhook *config.Webhook) (string, error)
}

// handle 运行中的任务
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager DDNS 任务管理器，每个任务一个独立的循环
type Manager struct {
	store    Store
	resolver Resolver
	updater  Updater
	notifier Notifier
	log      logr.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*handle
	closed bool
}

// Option 管理器选项
type Option func(*Manager)

// WithResolver 指定地址解析器
func WithResolver(r Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithUpdater 指定记录更新器，默认使用 Factory
func WithUpdater(u Updater) Option {
	return func(m *Manager) { m.updater = u }
}

// WithNotifier 指定通知器
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// NewManager 创建管理器
func NewManager(store Store, log logr.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		resolver: resolver.New(nil, log.WithName("resolver")),
		updater:  NewFactory(log.WithName("provider")),
		notifier: notification.NewWebhookNotifier(nil, log),
		log:      log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartAll 启动存储中的所有任务
func (m *Manager) StartAll(ctx context.Context) error {
	configs, err := m.store.ListConfigs(ctx)
	if err != nil {
		return fmt.Errorf("读取任务列表失败: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, cfg := range configs {
		if h, ok := m.tasks[cfg.Name]; ok {
			h.cancel()
		}
		m.spawnLocked(cfg)
	}
	m.log.Info("已启动全部任务", "count", len(configs))
	return nil
}

// CreateTask 启动任务，同名任务已存在时返回 ErrDuplicateTask
func (m *Manager) CreateTask(cfg config.DnsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.tasks[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, cfg.Name)
	}
	m.spawnLocked(cfg)
	return nil
}

// DeleteTask 立即取消任务，任务不存在时不做任何事
func (m *Manager) DeleteTask(name string) {
	m.mu.Lock()
	h, ok := m.tasks[name]
	delete(m.tasks, name)
	m.mu.Unlock()

	if ok {
		h.cancel()
		metrics.Forget(name)
		m.log.Info("任务已删除", "task", name)
	}
}

// Restart 按存储中的配置重新启动任务，新任务立即执行一次更新
func (m *Manager) Restart(ctx context.Context, name string) error {
	cfg, err := m.store.GetConfig(ctx, name)
	if err != nil {
		return fmt.Errorf("读取任务 %s 失败: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if h, ok := m.tasks[name]; ok {
		h.cancel()
	}
	m.spawnLocked(*cfg)
	return nil
}

// Running 任务是否在运行
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[name]
	return ok
}

// Names 返回所有运行中的任务名称
func (m *Manager) Names() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	m.mu.Unlock()

	sort.Strings(names)
	return names
}

// Statuses 返回存储中所有任务的状态
func (m *Manager) Statuses(ctx context.Context) ([]TaskStatus, error) {
	configs, err := m.store.ListConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取任务列表失败: %w", err)
	}

	statuses := make([]TaskStatus, 0, len(configs))
	for i := range configs {
		st := Status(&configs[i])
		st.Running = m.Running(configs[i].Name)
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// RunOnce 依次对存储中的每个任务执行一次更新，不启动循环
func (m *Manager) RunOnce(ctx context.Context) error {
	configs, err := m.store.ListConfigs(ctx)
	if err != nil {
		return fmt.Errorf("读取任务列表失败: %w", err)
	}

	for i := range configs {
		cfg := configs[i].Clone()
		log := m.log.WithValues("task", cfg.Name)
		if !m.tick(ctx, &cfg, log) {
			log.Info("没有启用的地址族，跳过")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close 取消所有任务并等待退出
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.tasks = make(map[string]*handle)
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// spawnLocked 启动任务循环，调用方持有 m.mu
func (m *Manager) spawnLocked(cfg config.DnsConfig) {
	ctx, cancel := context.WithCancel(m.ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	m.tasks[cfg.Name] = h

	m.wg.Add(1)
	go m.run(ctx, h, cfg.Clone())
}

// unregister 任务自然结束时移除自己，已被替换的条目保持不变
func (m *Manager) unregister(name string, h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[name] == h {
		delete(m.tasks, name)
	}
	h.cancel()
}
