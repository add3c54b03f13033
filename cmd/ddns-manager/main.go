package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"ddns-manager/internal/core"
	"ddns-manager/internal/daemon"
	"ddns-manager/internal/metrics"
	"ddns-manager/internal/storage"
)

func printUsage() {
	fmt.Println(`DDNS 自动更新工具 (支持阿里云、腾讯云、Cloudflare、华为云)

用法:
  ddns-manager [config.yaml]           # 对所有任务执行一次更新
  ddns-manager [config.yaml] once      # 同上
  ddns-manager [config.yaml] start     # 启动守护进程（后台运行）
  ddns-manager [config.yaml] stop      # 停止守护进程
  ddns-manager [config.yaml] restart   # 重启守护进程
  ddns-manager [config.yaml] status    # 查看运行状态和各任务的更新结果
  ddns-manager [config.yaml] daemon    # 前台守护进程模式（调试用）

配置文件示例:
  log_verbosity: 0
  metrics_listen: "127.0.0.1:9300"

  providers:
    - name: cf
      cloudflare:
        api_key: "xxx"
    - name: ali
      aliyun:
        secret_id: "xxx"
        secret_key: "xxx"

  webhooks:
    - name: notify
      value: |
        POST https://example.com/hook
        Content-Type: application/json

        {"domain": "#{domain}", "ip": "#{ipv4.addr}", "state": "#{ipv4.state}"}

  ddns:
    - name: home
      domain: example.com
      subdomain: www          # @ 或留空表示主域名
      interval: 300           # 秒，0 表示默认 300
      provider: cf
      webhook: notify
      ipv4:
        enabled: true
        method: api           # api / nic / cmd / dns
        endpoint: https://api.ipify.org
      ipv6:
        enabled: true
        method: nic
        interface: eth0`)
}

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		if os.Args[1] == "-h" || os.Args[1] == "--help" {
			printUsage()
			return
		}
		configPath = os.Args[1]
	}

	command := ""
	if len(os.Args) > 2 {
		command = os.Args[2]
	}

	logger := stdr.New(stdlog.New(os.Stderr, "", stdlog.LstdFlags))

	switch command {
	case "start":
		handleStart(configPath, logger)
	case "stop":
		handleStop(configPath)
	case "restart":
		handleRestart(configPath)
	case "status":
		handleStatus(configPath, logger)
	case "daemon":
		runService(configPath, logger)
	case "", "once":
		runOnce(configPath, logger)
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}
}

func handleStart(configPath string, logger logr.Logger) {
	d := daemon.NewDaemon(configPath)

	// 非后台进程启动子进程后直接返回
	if err := d.Start(); err != nil {
		stdlog.Fatalf("启动失败: %v", err)
	}
	if !daemon.IsDaemonized() {
		return
	}

	if err := d.WritePid(); err != nil {
		stdlog.Fatalf("写入PID失败: %v", err)
	}
	defer d.RemovePid()

	runService(configPath, logger)
}

func handleStop(configPath string) {
	if err := daemon.NewDaemon(configPath).Stop(); err != nil {
		stdlog.Fatalf("停止失败: %v", err)
	}
}

func handleRestart(configPath string) {
	if err := daemon.NewDaemon(configPath).Restart(); err != nil {
		stdlog.Fatalf("重启失败: %v", err)
	}
}

func handleStatus(configPath string, logger logr.Logger) {
	daemon.NewDaemon(configPath).Status()

	store, err := storage.NewFileStorage(configPath, logr.Discard())
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}
	statuses, err := core.NewManager(store, logger).Statuses(context.Background())
	if err != nil {
		stdlog.Fatalf("读取任务失败: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\n任务\t域名\t服务商\tIPv4\tIPv6")
	for _, st := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", st.Name, st.Domain, st.Provider, describe(st.IPv4), describe(st.IPv6))
	}
	_ = w.Flush()
}

// describe 状态的单行描述
func describe(st core.FamilyStatus) string {
	at := time.Unix(st.Timestamp, 0).Format("2006-01-02 15:04:05")
	switch st.State {
	case core.StateSuccess:
		return fmt.Sprintf("%s (%s)", st.Addr, at)
	case core.StateFailure:
		return fmt.Sprintf("失败: %s (%s)", st.Message, at)
	}
	return string(st.State)
}

// openStore 加载配置并按配置设置日志级别
func openStore(configPath string, logger logr.Logger) *storage.FileStorage {
	store, err := storage.NewFileStorage(configPath, logger.WithName("storage"))
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}
	stdr.SetVerbosity(store.Settings().LogVerbosity)
	return store
}

func runService(configPath string, logger logr.Logger) {
	store := openStore(configPath, logger)

	ctx, cancel := daemon.SignalContext(context.Background(), logger)
	defer cancel()

	if addr := store.Settings().MetricsListen; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, logger.WithName("metrics")); err != nil {
				logger.Error(err, "监控指标服务异常退出", "addr", addr)
			}
		}()
	}

	manager := core.NewManager(store, logger)
	if err := manager.StartAll(ctx); err != nil {
		stdlog.Fatalf("启动任务失败: %v", err)
	}
	logger.Info("守护进程已启动", "pid", os.Getpid(), "tasks", len(manager.Names()))

	<-ctx.Done()
	logger.Info("守护进程正在退出...")
	manager.Close()
}

func runOnce(configPath string, logger logr.Logger) {
	store := openStore(configPath, logger)

	ctx, cancel := daemon.SignalContext(context.Background(), logger)
	defer cancel()

	manager := core.NewManager(store, logger)
	defer manager.Close()

	if err := manager.RunOnce(ctx); err != nil {
		stdlog.Fatalf("运行出错: %v", err)
	}
}
