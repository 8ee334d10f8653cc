// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	TotalScans = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dgssviewer_scans_total",
		Help: "文件夹扫描总数",
	})
	TotalActions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dgssviewer_actions_total",
		Help: "已执行的数据库动作总数",
	})
	FailActions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dgssviewer_actions_failed",
		Help: "执行失败的数据库动作批次数",
	})
	AssistantReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dgssviewer_assistant_requests_total",
		Help: "转发给语言模型服务的请求总数",
	})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(TotalScans, TotalActions, FailActions, AssistantReq)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }
