package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析配置内容（YAML，兼容 JSON）
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Marshal 序列化配置
func Marshal(config *Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("序列化配置失败: %w", err)
	}
	return data, nil
}

// Validate 验证配置
func Validate(config *Config) error {
	providers := make(map[string]bool, len(config.Providers))
	for i := range config.Providers {
		p := &config.Providers[i]
		if p.Name == "" {
			return fmt.Errorf("第 %d 个提供商缺少 name", i+1)
		}
		if providers[p.Name] {
			return fmt.Errorf("提供商名称重复: %s", p.Name)
		}
		providers[p.Name] = true
		if err := ValidateProvider(p); err != nil {
			return err
		}
	}

	webhooks := make(map[string]bool, len(config.Webhooks))
	for _, w := range config.Webhooks {
		if w.Name == "" {
			return fmt.Errorf("webhook 缺少 name")
		}
		if webhooks[w.Name] {
			return fmt.Errorf("webhook 名称重复: %s", w.Name)
		}
		webhooks[w.Name] = true
	}

	tasks := make(map[string]bool, len(config.DDNS))
	for i := range config.DDNS {
		task := &config.DDNS[i]
		if task.Name == "" {
			return fmt.Errorf("第 %d 个 DDNS 任务缺少 name", i+1)
		}
		if tasks[task.Name] {
			return fmt.Errorf("DDNS 任务名称重复: %s", task.Name)
		}
		tasks[task.Name] = true
		if err := ValidateTask(task); err != nil {
			return err
		}
	}

	return nil
}

// ValidateTask 验证单个 DDNS 任务；服务商和 webhook 的引用在运行时解析
func ValidateTask(task *DnsConfig) error {
	if task.Domain.Apex == "" {
		return fmt.Errorf("任务 %s: 未配置 domain", task.Name)
	}
	if task.Provider == "" {
		return fmt.Errorf("任务 %s: 未配置 provider", task.Name)
	}
	for _, slot := range []struct {
		name string
		addr *AddrConfig
	}{{"ipv4", task.IPv4}, {"ipv6", task.IPv6}} {
		if slot.addr == nil {
			continue
		}
		if err := validateMethod(slot.addr.Method); err != nil {
			return fmt.Errorf("任务 %s: %s: %w", task.Name, slot.name, err)
		}
	}
	return nil
}

func validateMethod(m Method) error {
	switch m.Kind {
	case MethodAPI, MethodNIC, MethodCmd, MethodDNS:
		return nil
	case "":
		return fmt.Errorf("未配置 method")
	default:
		return fmt.Errorf("不支持的 method: %s", m.Kind)
	}
}

// ValidateProvider 验证服务商凭证
func ValidateProvider(p *Provider) error {
	switch p.variants() {
	case 0:
		return fmt.Errorf("提供商 %s 未配置凭证", p.Name)
	case 1:
	default:
		return fmt.Errorf("提供商 %s 只能配置一种凭证", p.Name)
	}

	switch p.Kind() {
	case KindAliyun:
		if p.Aliyun.SecretID == "" || p.Aliyun.SecretKey == "" {
			return fmt.Errorf("提供商 %s: aliyun 凭证不完整", p.Name)
		}
	case KindTencent:
		if p.Tencent.SecretID == "" || p.Tencent.SecretKey == "" {
			return fmt.Errorf("提供商 %s: tencent 凭证不完整", p.Name)
		}
	case KindCloudflare:
		if p.Cloudflare.APIKey == "" {
			return fmt.Errorf("提供商 %s: cloudflare api_key 为空", p.Name)
		}
	case KindHuawei:
		if p.Huawei.AccessKey == "" || p.Huawei.SecretKey == "" {
			return fmt.Errorf("提供商 %s: huawei 凭证不完整", p.Name)
		}
	}
	return nil
}
