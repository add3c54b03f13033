// Package metrics DDNS 更新相关的 Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ddns"

// 更新结果
const (
	ResultCreated   = "created"
	ResultUpdated   = "updated"
	ResultUnchanged = "unchanged"
	ResultFailed    = "failed"
)

// UpdateTotal 每个地址族的更新尝试次数
var UpdateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "update_total",
	Help:      "Counter of DNS record update attempts by provider, family and result.",
}, []string{"provider", "family", "result"})

// TasksRunning 正在运行的任务数
var TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "tasks_running",
	Help:      "Current number of running DDNS tasks.",
})

// LastUpdate 每个任务各地址族最近一次更新完成的时间
var LastUpdate = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "last_update_timestamp_seconds",
	Help:      "Unix time of the last completed update attempt.",
}, []string{"task", "family"})

// ObserveUpdate 记录一次更新尝试
func ObserveUpdate(task, provider, family, result string, at time.Time) {
	UpdateTotal.WithLabelValues(provider, family, result).Inc()
	LastUpdate.WithLabelValues(task, family).Set(float64(at.Unix()))
}

// Forget 删除任务对应的时间序列
func Forget(task string) {
	LastUpdate.DeletePartialMatch(prometheus.Labels{"task": task})
}

// Serve 在 addr 上提供 /metrics，直到 ctx 结束
func Serve(ctx context.Context, addr string, log logr.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("监控指标服务已启动", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
