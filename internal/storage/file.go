package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"

	"ddns-manager/internal/config"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// FileStorage 基于配置文件的存储，所有修改都会立即写回文件
type FileStorage struct {
	path   string
	log    logr.Logger
	mu     sync.RWMutex
	config *config.Config
}

// NewFileStorage 创建文件存储，文件不存在时写入空配置
func NewFileStorage(path string, log logr.Logger) (*FileStorage, error) {
	s := &FileStorage{path: path, log: log}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
		log.Info("已加载配置", "path", path)
		s.config = cfg
		return s, nil
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	s.config = &config.Config{}
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	log.Info("已创建初始配置", "path", path)
	return s, nil
}

// Path 返回配置文件路径
func (s *FileStorage) Path() string {
	return s.path
}

// Settings 返回全局设置（不含任务、服务商和 webhook）
func (s *FileStorage) Settings() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.Config{
		LogVerbosity:  s.config.LogVerbosity,
		MetricsListen: s.config.MetricsListen,
	}
}

// ListConfigs 列出所有 DDNS 任务
func (s *FileStorage) ListConfigs(ctx context.Context) ([]config.DnsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]config.DnsConfig, 0, len(s.config.DDNS))
	for _, c := range s.config.DDNS {
		configs = append(configs, c.Clone())
	}
	return configs, nil
}

// GetConfig 获取 DDNS 任务
func (s *FileStorage) GetConfig(ctx context.Context, name string) (*config.DnsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.config.DDNS {
		if c.Name == name {
			cfg := c.Clone()
			return &cfg, nil
		}
	}
	return nil, fmt.Errorf("DDNS 任务 %s: %w", name, ErrNotFound)
}

// SaveConfig 新增或覆盖 DDNS 任务
func (s *FileStorage) SaveConfig(ctx context.Context, cfg config.DnsConfig) error {
	if err := config.ValidateTask(&cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 已取消的调用不写入
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg = cfg.Clone()
	replaced := false
	for i := range s.config.DDNS {
		if s.config.DDNS[i].Name == cfg.Name {
			s.config.DDNS[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		s.config.DDNS = append(s.config.DDNS, cfg)
	}
	return s.flushLocked()
}

// DeleteConfig 删除 DDNS 任务
func (s *FileStorage) DeleteConfig(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.config.DDNS[:0]
	for _, c := range s.config.DDNS {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	s.config.DDNS = kept
	return s.flushLocked()
}

// ListProviders 列出所有服务商
func (s *FileStorage) ListProviders(ctx context.Context) ([]config.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]config.Provider(nil), s.config.Providers...), nil
}

// GetProvider 获取服务商
func (s *FileStorage) GetProvider(ctx context.Context, name string) (*config.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.config.Providers {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("提供商 %s: %w", name, ErrNotFound)
}

// SaveProvider 新增或覆盖服务商，下一个周期生效
func (s *FileStorage) SaveProvider(ctx context.Context, p config.Provider) error {
	if err := config.ValidateProvider(&p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.config.Providers {
		if s.config.Providers[i].Name == p.Name {
			s.config.Providers[i] = p
			return s.flushLocked()
		}
	}
	s.config.Providers = append(s.config.Providers, p)
	return s.flushLocked()
}

// DeleteProvider 删除服务商
func (s *FileStorage) DeleteProvider(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.config.Providers[:0]
	for _, p := range s.config.Providers {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	s.config.Providers = kept
	return s.flushLocked()
}

// GetWebhook 获取 webhook
func (s *FileStorage) GetWebhook(ctx context.Context, name string) (*config.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.config.Webhooks {
		if w.Name == name {
			return &w, nil
		}
	}
	return nil, fmt.Errorf("webhook %s: %w", name, ErrNotFound)
}

// SaveWebhook 新增或覆盖 webhook
func (s *FileStorage) SaveWebhook(ctx context.Context, w config.Webhook) error {
	if w.Name == "" {
		return fmt.Errorf("webhook 缺少 name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.config.Webhooks {
		if s.config.Webhooks[i].Name == w.Name {
			s.config.Webhooks[i] = w
			return s.flushLocked()
		}
	}
	s.config.Webhooks = append(s.config.Webhooks, w)
	return s.flushLocked()
}

// DeleteWebhook 删除 webhook
func (s *FileStorage) DeleteWebhook(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.config.Webhooks[:0]
	for _, w := range s.config.Webhooks {
		if w.Name != name {
			kept = append(kept, w)
		}
	}
	s.config.Webhooks = kept
	return s.flushLocked()
}

// flushLocked 原子写回配置文件（临时文件 + rename），调用方需持有写锁
func (s *FileStorage) flushLocked() error {
	data, err := config.Marshal(s.config)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ddns-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	// 配置中包含凭证
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("保存配置文件失败: %w", err)
	}

	s.log.V(1).Info("配置已写回", "path", s.path)
	return nil
}
