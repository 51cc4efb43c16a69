package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 全局 Registry，HTTP 层通过 Handler 暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RequestTotal, RequestDuration,
		FramesDecoded, FrameDecodeFailures,
		PredictDuration, PredictFailures,
	)
}

// RequestTotal HTTP 请求总数（按路由与状态码）
var RequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signsense_http_requests_total",
		Help: "HTTP 请求总数",
	},
	[]string{"route", "status"},
)

// RequestDuration HTTP 请求耗时（秒）
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "signsense_http_request_duration_seconds",
		Help:    "HTTP 请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"},
)

// FramesDecoded 成功解码的帧数（按图片格式）
var FramesDecoded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signsense_frames_decoded_total",
		Help: "成功解码的帧数",
	},
	[]string{"format"},
)

// FrameDecodeFailures 解码或校验失败的帧数
var FrameDecodeFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signsense_frame_decode_failures_total",
		Help: "解码或校验失败的帧数",
	},
	[]string{"kind"}, // invalid_request | unsupported_media_type
)

// PredictDuration 预测器调用耗时（秒）
var PredictDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "signsense_predict_duration_seconds",
		Help:    "预测器调用耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"predictor"},
)

// PredictFailures 预测器失败次数
var PredictFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "signsense_predict_failures_total",
		Help: "预测器失败次数",
	},
	[]string{"predictor"},
)

// Handler 返回 Prometheus 文本格式的 http.Handler
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
