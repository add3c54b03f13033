package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"strings"
)

// fromCommand 通过 sh 执行命令，标准输出即 IP 地址
func fromCommand(ctx context.Context, command string) ([]netip.Addr, error) {
	if command == "" {
		return nil, fmt.Errorf("未配置 command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return nil, fmt.Errorf("执行命令失败: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("执行命令失败: %w", err)
	}

	addr, err := parseAddr(stdout.String())
	if err != nil {
		return nil, err
	}
	return []netip.Addr{addr}, nil
}
