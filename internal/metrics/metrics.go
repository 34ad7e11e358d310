package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	HubConnects      *prometheus.CounterVec // labels: result=ok|error
	HubCommands      *prometheus.CounterVec // labels: cmd, result=ok|timeout|bad_frame|error
	HubBytesSent     prometheus.Counter
	HubBytesReceived prometheus.Counter
	LinkUp           prometheus.Gauge // 当前命令通道状态 0/1

	PollCycles   *prometheus.CounterVec // labels: mode, result=ok|error
	PollDuration prometheus.Histogram

	ScanProbes        *prometheus.CounterVec // labels: result=found|silent|error
	DevicesRegistered prometheus.Gauge

	NotifyPushes *prometheus.CounterVec // labels: result=ok|error
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		HubConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_connect_total",
			Help: "Hub connection attempts.",
		}, []string{"result"}),
		HubCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_command_total",
			Help: "Commands issued over the hub link.",
		}, []string{"cmd", "result"}),
		HubBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_bytes_sent_total",
			Help: "Total bytes written to the hub.",
		}),
		HubBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_bytes_received_total",
			Help: "Total bytes read from the hub.",
		}),
		LinkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_link_up",
			Help: "Whether the command channel is currently connected.",
		}),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_poll_total",
			Help: "Telemetry poll cycles by mode.",
		}, []string{"mode", "result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telemetry_poll_duration_seconds",
			Help:    "Telemetry poll cycle duration.",
			Buckets: prometheus.DefBuckets,
		}),
		ScanProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scan_probe_total",
			Help: "CAN discovery probes by outcome.",
		}, []string{"result"}),
		DevicesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devices_registered",
			Help: "Devices currently known to the registry.",
		}),
		NotifyPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_push_total",
			Help: "Webhook push attempts.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.HubConnects, m.HubCommands, m.HubBytesSent, m.HubBytesReceived, m.LinkUp,
		m.PollCycles, m.PollDuration, m.ScanProbes, m.DevicesRegistered, m.NotifyPushes,
	)
	return m
}
