// Package metrics 定义预测服务的 Prometheus 指标。
//
// 用法：
//
//	metrics.RecordPrediction(result.Tier.String(), string(result.Source), time.Since(start))
//	metrics.RecordPipelineError("validate")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal 按置信度档位和概率来源统计成功预测数
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survkit_predictions_total",
			Help: "Total number of successful predictions",
		},
		[]string{"tier", "source"},
	)

	// DegradedTotal 退化概率（仅标签可信）的预测数，用于告警
	DegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "survkit_degraded_predictions_total",
			Help: "Total number of predictions that fell back to degenerate probabilities",
		},
	)

	// PipelineErrorsTotal 按失败阶段统计错误
	PipelineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survkit_pipeline_errors_total",
			Help: "Total number of pipeline failures by stage",
		},
		[]string{"stage"},
	)

	// PredictionDuration 单次预测（validate → score）耗时
	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "survkit_prediction_duration_seconds",
			Help:    "Duration of a single prediction in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	// HistoryWritesTotal 历史记录写入结果
	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survkit_history_writes_total",
			Help: "Total number of history store writes by backend and result",
		},
		[]string{"backend", "result"},
	)

	// EnrichmentsTotal 在线特征补全结果
	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survkit_enrichments_total",
			Help: "Total number of online feature enrichment calls by result",
		},
		[]string{"result"},
	)
)

// RecordPrediction 记录一次成功预测
func RecordPrediction(tier, source string, d time.Duration) {
	PredictionsTotal.WithLabelValues(tier, source).Inc()
	PredictionDuration.Observe(d.Seconds())
	if source == "degenerate" {
		DegradedTotal.Inc()
	}
}

// RecordPipelineError 记录某阶段失败
func RecordPipelineError(stage string) {
	PipelineErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordHistoryWrite 记录历史写入结果
func RecordHistoryWrite(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	HistoryWritesTotal.WithLabelValues(backend, result).Inc()
}

// RecordEnrichment 记录特征补全结果：ok / miss / error
func RecordEnrichment(result string) {
	EnrichmentsTotal.WithLabelValues(result).Inc()
}
