package core

import (
	"ddns-manager/internal/config"
)

// State 地址族的更新状态
type State string

const (
	StateDisabled State = "disabled" // 未启用
	StatePending  State = "pending"  // 已启用，尚未更新
	StateSuccess  State = "success"
	StateFailure  State = "failure"
)

// FamilyStatus 单个地址族的状态
type FamilyStatus struct {
	State     State  `json:"state" yaml:"state"`
	Timestamp int64  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

// TaskStatus 任务状态
type TaskStatus struct {
	Name     string       `json:"name" yaml:"name"`
	Domain   string       `json:"domain" yaml:"domain"`
	Provider string       `json:"provider" yaml:"provider"`
	Running  bool         `json:"running" yaml:"running"`
	IPv4     FamilyStatus `json:"ipv4" yaml:"ipv4"`
	IPv6     FamilyStatus `json:"ipv6" yaml:"ipv6"`
}

// Status 根据任务配置计算状态，Running 由调用方填写
func Status(cfg *config.DnsConfig) TaskStatus {
	return TaskStatus{
		Name:     cfg.Name,
		Domain:   cfg.Domain.String(),
		Provider: cfg.Provider,
		IPv4:     SlotStatus(cfg.IPv4),
		IPv6:     SlotStatus(cfg.IPv6),
	}
}

// SlotStatus 未配置或未启用时为 Disabled，忽略已保存的状态
func SlotStatus(slot *config.AddrConfig) FamilyStatus {
	if slot == nil || !slot.Enabled {
		return FamilyStatus{State: StateDisabled}
	}
	st := slot.State
	if st == nil {
		return FamilyStatus{State: StatePending}
	}
	switch st.Kind {
	case config.StateSucceed:
		return FamilyStatus{State: StateSuccess, Timestamp: st.Timestamp, Addr: st.Addr}
	case config.StateFailed:
		return FamilyStatus{State: StateFailure, Timestamp: st.Timestamp, Message: st.Message}
	}
	return FamilyStatus{State: StatePending}
}
