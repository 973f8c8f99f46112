package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		StageDuration, DecisionTotal, FindingTotal,
		RetrievalResultCount, LLMTokensTotal, RateLimitWaitSeconds,
		AuditPersistFailTotal, AuditRetryQueueDepth, FaultTotal, DecisionQualityScore,
	)
}

// StageDuration 校验流水线各阶段耗时（秒）
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "claimguard_stage_duration_seconds",
		Help:    "流水线各阶段耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"}, // retrieval | generation | validation | document | persist
)

// DecisionTotal 决策总数（按最终状态）
var DecisionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "claimguard_decision_total",
		Help: "决策总数（按最终状态）",
	},
	[]string{"status"}, // covered | not_covered | manual_review | error
)

// FindingTotal 护栏问题总数（与 DecisionTotal 配合可算 finding_rate）
var FindingTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "claimguard_finding_total",
		Help: "护栏问题总数（按严重级别）",
	},
	[]string{"severity"}, // critical | high | medium | low
)

// RetrievalResultCount 单次检索返回的条款数
var RetrievalResultCount = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "claimguard_retrieval_result_count",
		Help:    "单次检索返回的条款数",
		Buckets: []float64{0, 1, 2, 5, 10, 20},
	},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "claimguard_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"provider"},
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "claimguard_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// AuditPersistFailTotal 审计记录落库失败总数
var AuditPersistFailTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "claimguard_audit_persist_fail_total",
		Help: "审计记录落库失败总数",
	},
)

// AuditRetryQueueDepth 审计重试队列当前深度
var AuditRetryQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "claimguard_audit_retry_queue_depth",
		Help: "审计重试队列当前深度",
	},
)

// FaultTotal 传输级故障总数（按故障分类）
var FaultTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "claimguard_fault_total",
		Help: "传输级故障总数（按故障分类）",
	},
	[]string{"kind"}, // evidence_unavailable | generation_failure | generation_parse_failure | persistence_failure
)

// DecisionQualityScore 决策质量综合分（0-100）
var DecisionQualityScore = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "claimguard_decision_quality_score",
		Help:    "决策质量综合分（0-100）",
		Buckets: []float64{20, 40, 60, 70, 80, 90, 95, 100},
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
