package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// EnvDaemonized 子进程的环境变量，值为 1 表示已在后台运行
const EnvDaemonized = "DDNS_MANAGER_DAEMONIZED"

const (
	pidFileName = "ddns-manager.pid"
	logFileName = "ddns-manager.log"

	pollInterval = 100 * time.Millisecond
)

// ErrNotRunning 守护进程未运行
var ErrNotRunning = errors.New("守护进程未运行")

// Daemon 后台进程控制，PID 和日志文件与配置文件放在同一目录
type Daemon struct {
	PidFile    string
	LogFile    string
	ConfigPath string

	// StopTimeout SIGTERM 之后等待的时间，超时发送 SIGKILL
	StopTimeout time.Duration

	// Out 提示信息输出
	Out io.Writer
}

// NewDaemon 创建守护进程控制
func NewDaemon(configPath string) *Daemon {
	dir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		dir = filepath.Dir(configPath)
	}

	return &Daemon{
		PidFile:     filepath.Join(dir, pidFileName),
		LogFile:     filepath.Join(dir, logFileName),
		ConfigPath:  configPath,
		StopTimeout: 3 * time.Second,
		Out:         os.Stdout,
	}
}

func (d *Daemon) printf(format string, args ...any) {
	fmt.Fprintf(d.Out, format+"\n", args...)
}

// Start 在后台启动 start 子进程
// 在子进程中调用时直接返回 nil，由调用方运行服务
func (d *Daemon) Start() error {
	if IsDaemonized() {
		return nil
	}
	if pid, ok := d.IsRunning(); ok {
		return fmt.Errorf("守护进程已在运行，PID: %d", pid)
	}

	pid, err := d.spawn()
	if err != nil {
		return err
	}

	d.printf("守护进程已启动，PID: %d", pid)
	d.printf("日志文件: %s", d.LogFile)
	d.printf("PID文件: %s", d.PidFile)
	return nil
}

// spawn 启动脱离终端的子进程，标准输出和错误写入日志文件
func (d *Daemon) spawn() (int, error) {
	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	out, err := os.OpenFile(d.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("打开日志文件 %s 失败: %w", d.LogFile, err)
	}
	defer out.Close()

	child := exec.Command(self, d.ConfigPath, "start")
	child.Env = append(os.Environ(), EnvDaemonized+"=1")
	child.Stdout, child.Stderr = out, out
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("启动守护进程失败: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()
	return pid, nil
}

// Stop 停止守护进程
func (d *Daemon) Stop() error {
	pid, ok := d.IsRunning()
	if !ok {
		return ErrNotRunning
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("向进程 %d 发送 SIGTERM 失败: %w", pid, err)
	}
	d.printf("已向进程 %d 发送 SIGTERM", pid)

	if d.waitExit(pid, d.StopTimeout) {
		d.printf("守护进程已停止")
		return nil
	}

	d.printf("%s 内未退出，发送 SIGKILL", d.StopTimeout)
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("向进程 %d 发送 SIGKILL 失败: %w", pid, err)
	}
	d.RemovePid()
	d.printf("守护进程已强制停止")
	return nil
}

// waitExit 等待进程退出，超时返回 false
func (d *Daemon) waitExit(pid int, timeout time.Duration) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			if !alive(pid) {
				return true
			}
		case <-deadline:
			return !alive(pid)
		}
	}
}

// Restart 停止正在运行的守护进程后重新启动
func (d *Daemon) Restart() error {
	if err := d.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return fmt.Errorf("停止守护进程失败: %w", err)
	}
	return d.Start()
}

// Status 输出守护进程状态
func (d *Daemon) Status() {
	pid, ok := d.IsRunning()
	if !ok {
		d.printf("守护进程未运行")
		return
	}
	d.printf("守护进程运行中，PID: %d", pid)
	d.printf("PID文件: %s", d.PidFile)
	d.printf("日志文件: %s", d.LogFile)
}

// IsRunning 返回 PID 文件记录的进程及其是否存活
func (d *Daemon) IsRunning() (int, bool) {
	pid, err := d.readPid()
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

func (d *Daemon) readPid() (int, error) {
	data, err := os.ReadFile(d.PidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("PID 文件内容无效: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("PID 文件内容无效: %d", pid)
	}
	return pid, nil
}

// alive 用信号 0 探测进程
func alive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// WritePid 写入当前进程的 PID
func (d *Daemon) WritePid() error {
	return os.WriteFile(d.PidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// RemovePid 删除 PID 文件
func (d *Daemon) RemovePid() {
	_ = os.Remove(d.PidFile)
}

// IsDaemonized 当前进程是否为 Start 启动的子进程
func IsDaemonized() bool {
	return os.Getenv(EnvDaemonized) == "1"
}
