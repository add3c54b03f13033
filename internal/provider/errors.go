package provider

import (
	"errors"
	"fmt"
)

// 出错的操作
const (
	OpQuery  = "query"
	OpCreate = "create"
	OpUpdate = "update"
)

// ProtocolError 服务商接口调用失败（网络错误、服务商拒绝、签名错误等）
type ProtocolError struct {
	Provider string // 服务商类型
	Op       string // query / create / update
	Message  string // 服务商返回的错误信息
	Err      error  // 底层错误
}

func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("[%s] %s 失败: %s", e.Provider, e.Op, msg)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Wrap 将错误包装为 ProtocolError，已经是 ProtocolError 时补全缺失的字段
func Wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *ProtocolError
	if errors.As(err, &perr) {
		if perr.Provider == "" {
			perr.Provider = provider
		}
		if perr.Op == "" {
			perr.Op = op
		}
		return err
	}
	return &ProtocolError{Provider: provider, Op: op, Err: err}
}
